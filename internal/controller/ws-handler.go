package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/framechat/server/internal/chatroom"
	"github.com/framechat/server/internal/service/chat"
	"github.com/framechat/server/pkg/validator"
	"github.com/framechat/server/pkg/wsrouter"
	"github.com/gorilla/websocket"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type EmptyInput struct{}

type validationError struct {
	errs []validator.ValidationError
}

func (e validationError) Error() string {
	return "invalid payload"
}

func (c controller) validateInput(input any) error {
	if errs, ok := c.validate.Validate(input); !ok {
		return validationError{errs: errs}
	}

	return nil
}

func (c controller) writeToPlayer(ctx context.Context, output *Output) error {
	return c.sender.Send(c.getPlayerIDFromCtx(ctx), output)
}

// handleWSError reports a failed message to the client. Errors the client
// cannot act on are logged and sent without details.
func (c controller) handleWSError(ctx context.Context, _ *websocket.Conn, err error) {
	payload := map[string]any{"message": err.Error()}

	var vErr validationError
	switch {
	case errors.As(err, &vErr):
		payload["errors"] = vErr.errs
	case errors.Is(err, wsrouter.ErrInvalidPayload),
		errors.Is(err, wsrouter.ErrUnknownMessageType),
		errors.Is(err, chat.ErrNoActiveRoom),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrRoomNotFound):
		c.logger.InfoContext(ctx, "websocket message rejected", "error", err)
	default:
		c.logger.ErrorContext(ctx, "failed to handle websocket message", "error", err)
		payload["message"] = "internal error"
	}
	if t := wsrouter.GetMessageTypeFromCtx(ctx); t != "" {
		payload["message_type"] = t
	}

	if err := c.writeToPlayer(ctx, &Output{Type: "ERROR", Payload: payload}); err != nil {
		c.logger.WarnContext(ctx, "failed to write error", "error", err)
	}
}

func (c controller) handleAlive(_ context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return nil
}

type PlaybackInput struct {
	CurrentTime float64 `json:"current_time" validate:"gte=0"`
}

func (c controller) handleSeeking(ctx context.Context, _ *websocket.Conn, input PlaybackInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	if err := c.chatService.SeekStart(ctx, &chat.SeekParams{
		PlayerID:    c.getPlayerIDFromCtx(ctx),
		CurrentTime: input.CurrentTime,
	}); err != nil {
		return fmt.Errorf("failed to start seek: %w", err)
	}

	return nil
}

func (c controller) handleSeeked(ctx context.Context, _ *websocket.Conn, input PlaybackInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	if err := c.chatService.SeekSettled(ctx, &chat.SeekParams{
		PlayerID:    c.getPlayerIDFromCtx(ctx),
		CurrentTime: input.CurrentTime,
	}); err != nil {
		return fmt.Errorf("failed to settle seek: %w", err)
	}

	return nil
}

type PauseInput struct {
	CurrentTime float64 `json:"current_time" validate:"gte=0"`
	// data URL of the paused frame
	Frame string `json:"frame" validate:"omitempty,startswith=data:image/"`
}

func (c controller) handlePause(ctx context.Context, _ *websocket.Conn, input PauseInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	if _, err := c.chatService.Pause(ctx, &chat.PauseParams{
		PlayerID:    c.getPlayerIDFromCtx(ctx),
		CurrentTime: input.CurrentTime,
		Frame:       input.Frame,
	}); err != nil {
		return fmt.Errorf("failed to handle pause: %w", err)
	}

	return nil
}

func (c controller) handlePlay(ctx context.Context, _ *websocket.Conn, input PlaybackInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	if err := c.chatService.Play(ctx, &chat.PlayParams{
		PlayerID:    c.getPlayerIDFromCtx(ctx),
		CurrentTime: input.CurrentTime,
	}); err != nil {
		return fmt.Errorf("failed to handle play: %w", err)
	}

	return nil
}

type LoadVideoInput struct {
	VideoID   string `json:"video_id" validate:"max=64"`
	VideoName string `json:"video_name" validate:"max=256"`
}

func (c controller) handleLoadVideo(ctx context.Context, _ *websocket.Conn, input LoadVideoInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	rooms, err := c.chatService.LoadVideo(ctx, &chat.LoadVideoParams{
		PlayerID:  c.getPlayerIDFromCtx(ctx),
		VideoID:   input.VideoID,
		VideoName: input.VideoName,
	})
	if err != nil {
		return fmt.Errorf("failed to load video: %w", err)
	}

	return c.writeToPlayer(ctx, &Output{
		Type: chat.EventRoomsLoaded,
		Payload: map[string]any{
			"video_id": input.VideoID,
			"rooms":    rooms,
		},
	})
}

type SendMessageInput struct {
	Text string `json:"text" validate:"required,max=4000"`
}

func (c controller) handleSendMessage(ctx context.Context, _ *websocket.Conn, input SendMessageInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	if _, err := c.chatService.SendMessage(ctx, &chat.SendMessageParams{
		PlayerID: c.getPlayerIDFromCtx(ctx),
		Text:     input.Text,
	}); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

type RoomInput struct {
	RoomID string `json:"room_id" validate:"required"`
}

func (c controller) handleSwitchRoom(ctx context.Context, _ *websocket.Conn, input RoomInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	room, err := c.chatService.SwitchRoom(ctx, &chat.SwitchRoomParams{
		PlayerID: c.getPlayerIDFromCtx(ctx),
		RoomID:   input.RoomID,
	})
	if err != nil {
		return fmt.Errorf("failed to switch room: %w", err)
	}

	return c.writeToPlayer(ctx, &Output{
		Type: chat.EventActiveRoomChanged,
		Payload: map[string]any{
			"room_id": room.ID,
			"room":    room,
		},
	})
}

func (c controller) handleDeleteRoom(ctx context.Context, _ *websocket.Conn, input RoomInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	resp, err := c.chatService.DeletePlayerRoom(ctx, &chat.DeletePlayerRoomParams{
		PlayerID: c.getPlayerIDFromCtx(ctx),
		RoomID:   input.RoomID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}

	rooms := resp.Rooms
	if rooms == nil {
		rooms = []chatroom.ChatRoom{}
	}

	return c.writeToPlayer(ctx, &Output{
		Type: chat.EventRoomDeleted,
		Payload: map[string]any{
			"room_id":        input.RoomID,
			"active_room_id": resp.ActiveRoomID,
			"rooms":          rooms,
		},
	})
}
