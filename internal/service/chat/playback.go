package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/framechat/server/internal/chatroom"
	"github.com/framechat/server/internal/player"
)

type SeekParams struct {
	PlayerID    string
	CurrentTime float64
}

func (s *service) SeekStart(_ context.Context, params *SeekParams) error {
	p, err := s.getPlayer(params.PlayerID)
	if err != nil {
		return err
	}

	p.media.seek(params.CurrentTime)
	p.Session().OnSeekStart()

	return nil
}

func (s *service) SeekSettled(_ context.Context, params *SeekParams) error {
	p, err := s.getPlayer(params.PlayerID)
	if err != nil {
		return err
	}

	p.media.seek(params.CurrentTime)
	p.Session().OnSeekSettled()

	return nil
}

type PauseParams struct {
	PlayerID    string
	CurrentTime float64
	// Frame is the paused frame as a data URL; empty when the client could
	// not capture it.
	Frame string
}

func (s *service) Pause(ctx context.Context, params *PauseParams) (player.PauseDecision, error) {
	p, err := s.getPlayer(params.PlayerID)
	if err != nil {
		return 0, err
	}

	p.media.pause(params.CurrentTime, params.Frame)
	decision := p.Session().OnPause()
	s.logger.DebugContext(ctx, "pause observed", "current_time", params.CurrentTime, "decision", decision.String())

	return decision, nil
}

type PlayParams struct {
	PlayerID    string
	CurrentTime float64
}

func (s *service) Play(_ context.Context, params *PlayParams) error {
	p, err := s.getPlayer(params.PlayerID)
	if err != nil {
		return err
	}

	p.media.play(params.CurrentTime)
	p.Session().OnPlay()

	return nil
}

// handleDeliberatePause captures the frame, finds or creates the chat room
// for the paused second and makes it the active one.
func (s *service) handleDeliberatePause(p *Player, media player.Media) {
	ctx := p.ctx

	frame, ok := p.capturer.Capture(media)
	if !ok {
		s.logger.DebugContext(ctx, "no frame captured, pause ignored")
		return
	}

	res, err := chatroom.Resolve(p.rooms.Rooms(), frame, s.clock.Now(), media.CurrentTime())
	if err != nil {
		s.logger.WarnContext(ctx, "failed to resolve chat room", "current_time", media.CurrentTime(), "error", err)
		return
	}

	if res.IsNew {
		p.rooms.AppendOrUpdateRoom(res.Room)
		s.logger.InfoContext(ctx, "chat room created", "room_id", res.Room.ID, "frame_kb", len(frame)/1024)
		s.notify(ctx, p.ID, Event{
			Type: EventRoomCreated,
			Payload: map[string]any{
				"room":  res.Room,
				"rooms": p.rooms.Rooms(),
			},
		})

		roomID := res.Room.ID
		s.background(ctx, "persist new chat room", func(ctx context.Context) error {
			s.persistPlayerRoom(ctx, p, roomID)
			return nil
		})
	} else {
		s.logger.InfoContext(ctx, "moved to existing chat room", "room_id", res.Room.ID, "name", res.Room.Name)
	}

	p.rooms.SetActiveRoom(res.Room.ID)
	s.notify(ctx, p.ID, Event{
		Type: EventActiveRoomChanged,
		Payload: map[string]any{
			"room_id": res.Room.ID,
			"room":    res.Room,
		},
	})
}

func (s *service) persistRoom(ctx context.Context, userID, videoID string, room chatroom.ChatRoom) error {
	params, err := toSaveChatRoomParams(userID, videoID, room, s.clock.Now())
	if err != nil {
		return err
	}

	if _, err := s.chatRoomRepo.SaveChatRoom(ctx, params); err != nil {
		return fmt.Errorf("failed to save chat room %s: %w", room.ID, err)
	}

	return nil
}

// persistPlayerRoom saves the current state of one of the player's rooms.
// Rooms of players without a video stay local. Failures are logged and the
// local room is kept.
func (s *service) persistPlayerRoom(ctx context.Context, p *Player, roomID string) {
	p.storeMu.Lock()
	defer p.storeMu.Unlock()

	videoID, _ := p.Video()
	if videoID == "" {
		return
	}

	room, ok := p.rooms.Room(roomID)
	if !ok {
		s.logger.InfoContext(ctx, "room deleted before it was saved", "room_id", roomID)
		return
	}

	if err := s.persistRoom(ctx, p.UserID, videoID, room); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.ErrorContext(ctx, "failed to persist chat room", "room_id", roomID, "error", err)
	}
}
