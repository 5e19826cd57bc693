package chatroom

import (
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/slices"
)

var (
	ErrInvalidVideoTime = errors.New("invalid video time")
	ErrRoomNotFound     = errors.New("chat room not found")
)

const SeedMessage = "Ask me anything about this frame!"

type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

type Message struct {
	ID        int       `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatRoom is a conversation anchored to one captured frame of a video.
// Rooms are matched by the truncated second of VideoCurrentTime; a room
// with no VideoCurrentTime never matches.
type ChatRoom struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Messages         []Message  `json:"messages"`
	CapturedFrame    string     `json:"captured_frame,omitempty"`
	FrameTime        *time.Time `json:"frame_time,omitempty"`
	VideoCurrentTime *float64   `json:"video_current_time,omitempty"`
}

// Bucket returns the truncated-second key used to match rooms.
func Bucket(seconds float64) int64 {
	return int64(math.Floor(seconds))
}

func ValidVideoTime(seconds float64) bool {
	return !math.IsNaN(seconds) && !math.IsInf(seconds, 0) && seconds >= 0
}

// FormatVideoTime renders seconds as MM:SS.
func FormatVideoTime(seconds float64) string {
	minutes := int64(math.Floor(seconds / 60))
	rest := int64(math.Floor(math.Mod(seconds, 60)))
	return fmt.Sprintf("%02d:%02d", minutes, rest)
}

func FindByBucket(rooms []ChatRoom, videoCurrentTime float64) (ChatRoom, bool) {
	target := Bucket(videoCurrentTime)
	i := slices.IndexFunc(rooms, func(r ChatRoom) bool {
		return r.VideoCurrentTime != nil && Bucket(*r.VideoCurrentTime) == target
	})
	if i < 0 {
		return ChatRoom{}, false
	}

	return rooms[i], true
}

func FindByID(rooms []ChatRoom, id string) (ChatRoom, bool) {
	i := slices.IndexFunc(rooms, func(r ChatRoom) bool { return r.ID == id })
	if i < 0 {
		return ChatRoom{}, false
	}

	return rooms[i], true
}

// AppendMessage returns a copy of rooms where the room with roomID has one
// more message. The message id is its position in the room, starting at 1.
func AppendMessage(rooms []ChatRoom, roomID, text string, sender Sender, ts time.Time) ([]ChatRoom, Message, error) {
	i := slices.IndexFunc(rooms, func(r ChatRoom) bool { return r.ID == roomID })
	if i < 0 {
		return rooms, Message{}, ErrRoomNotFound
	}

	room := rooms[i]
	msg := Message{
		ID:        len(room.Messages) + 1,
		Text:      text,
		Sender:    sender,
		Timestamp: ts,
	}

	messages := make([]Message, 0, len(room.Messages)+1)
	messages = append(messages, room.Messages...)
	room.Messages = append(messages, msg)

	updated := slices.Clone(rooms)
	updated[i] = room

	return updated, msg, nil
}

// DeleteByID returns a copy of rooms without the room with id.
func DeleteByID(rooms []ChatRoom, id string) []ChatRoom {
	return slices.DeleteFunc(slices.Clone(rooms), func(r ChatRoom) bool {
		return r.ID == id
	})
}
