package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/sharetube/jukebox/pkg/ctxlogger"
	"github.com/sharetube/jukebox/pkg/rest"
)

func (c *controller) requestIdMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = ctxlogger.AppendCtx(ctx, slog.String("request_id", uuid.NewString()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c *controller) requestLoggingMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		c.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"url", r.URL.String(),
			"remote_addr", r.RemoteAddr,
			"status", ww.Status(),
			"duration_us", time.Since(start).Microseconds(),
		)
	})
}

// userIdMw requires the caller's user id header and stores it in the
// request context.
func (c *controller) userIdMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := c.MustHeader(r, userIDHeader)
		if err != nil {
			rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
			return
		}

		ctx := context.WithValue(r.Context(), userIDCtxKey, userID)
		ctx = ctxlogger.AppendCtx(ctx, slog.String("user_id", userID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
