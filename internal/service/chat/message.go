package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/framechat/server/internal/assistant"
	"github.com/framechat/server/internal/chatroom"
	"github.com/framechat/server/internal/repository"
)

type SendMessageParams struct {
	PlayerID string
	Text     string
}

type SendMessageResponse struct {
	RoomID  string
	Message chatroom.Message
}

// SendMessage adds the user's message to the active room and asks the
// assistant in the background. The answer arrives as a MESSAGE_ADDED event.
func (s *service) SendMessage(ctx context.Context, params *SendMessageParams) (SendMessageResponse, error) {
	p, err := s.getPlayer(params.PlayerID)
	if err != nil {
		return SendMessageResponse{}, err
	}

	text := strings.TrimSpace(params.Text)
	if text == "" {
		return SendMessageResponse{}, ErrEmptyMessage
	}

	roomID := p.rooms.ActiveRoomID()
	if roomID == "" {
		return SendMessageResponse{}, ErrNoActiveRoom
	}

	room, msg, err := p.rooms.AddMessage(roomID, text, chatroom.SenderUser, s.clock.Now())
	if err != nil {
		return SendMessageResponse{}, fmt.Errorf("failed to add message: %w", err)
	}

	s.notify(ctx, p.ID, Event{
		Type: EventMessageAdded,
		Payload: map[string]any{
			"room_id": roomID,
			"message": msg,
		},
	})

	s.background(p.ctx, "persist chat room", func(ctx context.Context) error {
		s.persistPlayerRoom(ctx, p, roomID)
		return nil
	})
	s.background(p.ctx, "answer message", func(ctx context.Context) error {
		return s.answer(ctx, p, room, text)
	})

	return SendMessageResponse{RoomID: roomID, Message: msg}, nil
}

func (s *service) answer(ctx context.Context, p *Player, room chatroom.ChatRoom, question string) error {
	apiKey, ok := s.apiKey(ctx, p.UserID)
	if !ok {
		s.addAssistantMessage(ctx, p, room.ID, NoAPIKeyMessage)
		return nil
	}

	s.notify(ctx, p.ID, Event{Type: EventAssistantTyping, Payload: map[string]any{"room_id": room.ID}})

	videoID, videoName := p.Video()
	answer, err := s.assistant.Ask(ctx, apiKey, assistant.Question{
		Text:      question,
		VideoName: videoName,
		Frame:     room.CapturedFrame,
	})
	if err != nil {
		s.addAssistantMessage(ctx, p, room.ID, AssistantFailure)
		return fmt.Errorf("failed to ask assistant: %w", err)
	}

	if !s.addAssistantMessage(ctx, p, room.ID, answer) {
		return nil
	}

	var timestamp float64
	if room.VideoCurrentTime != nil {
		timestamp = *room.VideoCurrentTime
	}
	if _, err := s.conversationRepo.SaveConversation(ctx, &repository.SaveConversationParams{
		UserID:        p.UserID,
		VideoID:       videoID,
		Question:      question,
		Answer:        answer,
		QuestionImage: room.CapturedFrame,
		Timestamp:     timestamp,
		Embedding:     s.embedConversation(ctx, apiKey, question, answer),
	}); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}

	return nil
}

// addAssistantMessage appends an assistant message to the room, tells the
// player and saves the room. It reports false when the room is gone.
func (s *service) addAssistantMessage(ctx context.Context, p *Player, roomID, text string) bool {
	_, msg, err := p.rooms.AddMessage(roomID, text, chatroom.SenderAI, s.clock.Now())
	if err != nil {
		// the room was deleted while the assistant was answering
		s.logger.InfoContext(ctx, "dropping assistant message", "room_id", roomID, "error", err)
		return false
	}

	s.notify(ctx, p.ID, Event{
		Type: EventMessageAdded,
		Payload: map[string]any{
			"room_id": roomID,
			"message": msg,
		},
	})
	s.persistPlayerRoom(ctx, p, roomID)

	return true
}

type SwitchRoomParams struct {
	PlayerID string
	RoomID   string
}

func (s *service) SwitchRoom(_ context.Context, params *SwitchRoomParams) (chatroom.ChatRoom, error) {
	p, err := s.getPlayer(params.PlayerID)
	if err != nil {
		return chatroom.ChatRoom{}, err
	}

	room, ok := p.rooms.Room(params.RoomID)
	if !ok {
		return chatroom.ChatRoom{}, ErrRoomNotFound
	}

	p.rooms.SetActiveRoom(room.ID)

	return room, nil
}

type DeletePlayerRoomParams struct {
	PlayerID string
	RoomID   string
}

type DeletePlayerRoomResponse struct {
	ActiveRoomID string
	Rooms        []chatroom.ChatRoom
}

// DeletePlayerRoom removes a room from the player and, in the background,
// from storage and from the other players of the same user.
func (s *service) DeletePlayerRoom(ctx context.Context, params *DeletePlayerRoomParams) (DeletePlayerRoomResponse, error) {
	p, err := s.getPlayer(params.PlayerID)
	if err != nil {
		return DeletePlayerRoomResponse{}, err
	}

	activeID, err := p.rooms.DeleteRoom(params.RoomID)
	if err != nil {
		if errors.Is(err, chatroom.ErrRoomNotFound) {
			return DeletePlayerRoomResponse{}, ErrRoomNotFound
		}
		return DeletePlayerRoomResponse{}, err
	}

	s.background(p.ctx, "delete stored chat room", func(ctx context.Context) error {
		p.storeMu.Lock()
		defer p.storeMu.Unlock()

		_, err := s.deleteStoredChatRoom(ctx, p.UserID, params.RoomID, p.ID)
		if errors.Is(err, repository.ErrChatRoomNotFound) {
			return nil
		}
		return err
	})

	return DeletePlayerRoomResponse{
		ActiveRoomID: activeID,
		Rooms:        p.rooms.Rooms(),
	}, nil
}
