package controller

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sharetube/jukebox/pkg/ctxlogger"
	"github.com/sharetube/jukebox/pkg/wsrouter"
)

func (c *controller) wsRequestIdMw(next wsrouter.HandlerFunc) wsrouter.HandlerFunc {
	return func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
		ctx = ctxlogger.AppendCtx(ctx, slog.String("request_id", uuid.NewString()))
		return next(ctx, conn, payload)
	}
}

func (c *controller) wsLoggerMw(next wsrouter.HandlerFunc) wsrouter.HandlerFunc {
	return func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
		start := time.Now()
		err := next(ctx, conn, payload)

		c.logger.DebugContext(ctx, "ws request",
			"type", wsrouter.GetMessageTypeFromCtx(ctx),
			"payload_bytes", len(payload),
			"duration_us", time.Since(start).Microseconds(),
			"failed", err != nil,
		)

		return err
	}
}
