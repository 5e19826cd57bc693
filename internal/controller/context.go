package controller

import "context"

type contextKey int

const (
	userIDCtxKey contextKey = iota
	playerIDCtxKey
)

func (c controller) getUserIDFromCtx(ctx context.Context) string {
	userID, ok := ctx.Value(userIDCtxKey).(string)
	if !ok {
		return ""
	}

	return userID
}

func (c controller) getPlayerIDFromCtx(ctx context.Context) string {
	playerID, ok := ctx.Value(playerIDCtxKey).(string)
	if !ok {
		return ""
	}

	return playerID
}
