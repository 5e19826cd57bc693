package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/framechat/server/internal/service/chat"
	"github.com/framechat/server/pkg/ctxlogger"
)

// connectPlayer upgrades the request and serves player events until the
// client goes away.
func (c controller) connectPlayer(w http.ResponseWriter, r *http.Request) {
	userID := c.getUserIDFromCtx(r.Context())
	videoID := r.URL.Query().Get("video-id")
	videoName := r.URL.Query().Get("video-name")

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	connectResp, err := c.chatService.Connect(r.Context(), &chat.ConnectParams{
		Conn:      conn,
		UserID:    userID,
		VideoID:   videoID,
		VideoName: videoName,
	})
	if err != nil {
		c.logger.ErrorContext(r.Context(), "failed to connect player", "error", err)
		// nothing else writes to the connection yet
		if err := conn.WriteJSON(&Output{
			Type:    "ERROR",
			Payload: map[string]any{"message": "failed to connect player"},
		}); err != nil {
			c.logger.WarnContext(r.Context(), "failed to write json", "error", err)
		}
		return
	}
	defer func() {
		if err := c.chatService.Disconnect(context.WithoutCancel(r.Context()), connectResp.PlayerID); err != nil {
			c.logger.WarnContext(r.Context(), "failed to disconnect player", "error", err)
		}
	}()

	ctx := context.WithValue(r.Context(), playerIDCtxKey, connectResp.PlayerID)
	ctx = ctxlogger.AppendCtx(ctx, slog.String("player_id", connectResp.PlayerID))

	if err := c.writeToPlayer(ctx, &Output{
		Type: chat.EventRoomsLoaded,
		Payload: map[string]any{
			"player_id": connectResp.PlayerID,
			"rooms":     connectResp.Rooms,
		},
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to write rooms", "error", err)
		return
	}

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.InfoContext(ctx, "connection closed", "error", err)
	}
}
