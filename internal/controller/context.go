package controller

import "context"

type contextKey int

const (
	roomIDCtxKey contextKey = iota
	userIDCtxKey
)

func (c *controller) getRoomIDFromCtx(ctx context.Context) string {
	roomID, ok := ctx.Value(roomIDCtxKey).(string)
	if !ok {
		return ""
	}

	return roomID
}

func (c *controller) getUserIDFromCtx(ctx context.Context) string {
	userID, ok := ctx.Value(userIDCtxKey).(string)
	if !ok {
		return ""
	}

	return userID
}
