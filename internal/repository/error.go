package repository

import "errors"

var (
	ErrChatRoomNotFound = errors.New("chat room not found")
	ErrVideoNotFound    = errors.New("video not found")
	ErrAPIKeyNotFound   = errors.New("api key not found")
)
