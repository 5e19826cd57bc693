package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/framechat/server/pkg/ctxlogger"
	"github.com/go-chi/chi/v5/middleware"
)

func (c controller) requestIdMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = ctxlogger.AppendCtx(ctx, slog.String("request_id", c.generateTimeBasedId()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c controller) requestLoggingMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		c.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"url", r.URL.String(),
			"remote_addr", r.RemoteAddr,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// userMw requires the user id header, or the user-id query param for
// websocket upgrades that cannot set headers.
func (c controller) userMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(userIDHeader)
		if userID == "" {
			userID = r.URL.Query().Get("user-id")
		}
		if userID == "" {
			c.writeError(w, r, http.StatusUnauthorized, errMissingUserID)
			return
		}

		ctx := context.WithValue(r.Context(), userIDCtxKey, userID)
		ctx = ctxlogger.AppendCtx(ctx, slog.String("user_id", userID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
