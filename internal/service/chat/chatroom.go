package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/framechat/server/internal/chatroom"
	"github.com/framechat/server/internal/repository"
)

// StoredChatRoom is a chat room as kept in storage.
type StoredChatRoom struct {
	chatroom.ChatRoom
	VideoID   string    `json:"video_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toSaveChatRoomParams(userID, videoID string, room chatroom.ChatRoom, now time.Time) (*repository.SaveChatRoomParams, error) {
	messages := room.Messages
	if messages == nil {
		messages = []chatroom.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to encode messages: %w", err)
	}

	var frameTime int64
	if room.FrameTime != nil {
		frameTime = room.FrameTime.UnixMilli()
	}

	return &repository.SaveChatRoomParams{
		RoomID:           room.ID,
		UserID:           userID,
		VideoID:          videoID,
		Name:             room.Name,
		Messages:         string(data),
		MessageCount:     len(room.Messages),
		CapturedFrame:    room.CapturedFrame,
		FrameTime:        frameTime,
		VideoCurrentTime: room.VideoCurrentTime,
		UpdatedAt:        now.UnixMilli(),
	}, nil
}

func fromRepoChatRoom(r repository.ChatRoom) (chatroom.ChatRoom, error) {
	room := chatroom.ChatRoom{
		ID:            r.RoomID,
		Name:          r.Name,
		Messages:      []chatroom.Message{},
		CapturedFrame: r.CapturedFrame,
	}

	if r.Messages != "" {
		if err := json.Unmarshal([]byte(r.Messages), &room.Messages); err != nil {
			return chatroom.ChatRoom{}, fmt.Errorf("failed to decode messages: %w", err)
		}
	}
	if r.FrameTime != 0 {
		t := time.UnixMilli(r.FrameTime)
		room.FrameTime = &t
	}
	if r.HasVideoTime {
		seconds := r.VideoCurrentTime
		room.VideoCurrentTime = &seconds
	}

	return room, nil
}

func toStoredChatRoom(r repository.ChatRoom) (StoredChatRoom, error) {
	room, err := fromRepoChatRoom(r)
	if err != nil {
		return StoredChatRoom{}, err
	}

	return StoredChatRoom{
		ChatRoom:  room,
		VideoID:   r.VideoID,
		CreatedAt: time.UnixMilli(r.CreatedAt),
		UpdatedAt: time.UnixMilli(r.UpdatedAt),
	}, nil
}

func toStoredChatRooms(rooms []repository.ChatRoom) ([]StoredChatRoom, error) {
	result := make([]StoredChatRoom, 0, len(rooms))
	for _, r := range rooms {
		room, err := toStoredChatRoom(r)
		if err != nil {
			return nil, fmt.Errorf("chat room %s: %w", r.RoomID, err)
		}
		result = append(result, room)
	}

	return result, nil
}

type SaveChatRoomParams struct {
	UserID  string
	VideoID string
	Room    chatroom.ChatRoom
}

const (
	SaveStatusCreated = "created"
	SaveStatusUpdated = "updated"
)

type SaveChatRoomResponse struct {
	RoomID string `json:"room_id"`
	Status string `json:"status"`
}

func (s *service) SaveChatRoom(ctx context.Context, params *SaveChatRoomParams) (SaveChatRoomResponse, error) {
	if params.Room.VideoCurrentTime != nil && !chatroom.ValidVideoTime(*params.Room.VideoCurrentTime) {
		return SaveChatRoomResponse{}, chatroom.ErrInvalidVideoTime
	}

	saveParams, err := toSaveChatRoomParams(params.UserID, params.VideoID, params.Room, s.clock.Now())
	if err != nil {
		return SaveChatRoomResponse{}, err
	}

	created, err := s.chatRoomRepo.SaveChatRoom(ctx, saveParams)
	if err != nil {
		return SaveChatRoomResponse{}, fmt.Errorf("failed to save chat room: %w", err)
	}

	status := SaveStatusUpdated
	if created {
		status = SaveStatusCreated
	}

	return SaveChatRoomResponse{RoomID: params.Room.ID, Status: status}, nil
}

func (s *service) GetChatRoom(ctx context.Context, userID, roomID string) (StoredChatRoom, error) {
	r, err := s.chatRoomRepo.GetChatRoom(ctx, userID, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrChatRoomNotFound) {
			return StoredChatRoom{}, ErrRoomNotFound
		}
		return StoredChatRoom{}, fmt.Errorf("failed to get chat room: %w", err)
	}

	return toStoredChatRoom(r)
}

func (s *service) GetChatRoomsByVideo(ctx context.Context, userID, videoID string) ([]StoredChatRoom, error) {
	rooms, err := s.chatRoomRepo.GetChatRoomsByVideo(ctx, userID, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat rooms by video: %w", err)
	}

	return toStoredChatRooms(rooms)
}

type ListChatRoomsParams struct {
	UserID string
	Limit  int
	Offset int
}

type ListChatRoomsResponse struct {
	Rooms []StoredChatRoom `json:"chatrooms"`
	Total int              `json:"total"`
}

func (s *service) ListChatRooms(ctx context.Context, params *ListChatRoomsParams) (ListChatRoomsResponse, error) {
	rooms, total, err := s.chatRoomRepo.ListChatRooms(ctx, &repository.ListChatRoomsParams{
		UserID: params.UserID,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		return ListChatRoomsResponse{}, fmt.Errorf("failed to list chat rooms: %w", err)
	}

	stored, err := toStoredChatRooms(rooms)
	if err != nil {
		return ListChatRoomsResponse{}, err
	}

	return ListChatRoomsResponse{Rooms: stored, Total: total}, nil
}

// DeleteChatRoom deletes a stored room with its conversations and removes it
// from every connected player of the user.
func (s *service) DeleteChatRoom(ctx context.Context, userID, roomID string) error {
	_, err := s.deleteStoredChatRoom(ctx, userID, roomID, "")
	if errors.Is(err, repository.ErrChatRoomNotFound) {
		return ErrRoomNotFound
	}

	return err
}

// deleteStoredChatRoom deletes the room from storage and from the players of
// the user, except the player with exceptPlayerID.
func (s *service) deleteStoredChatRoom(ctx context.Context, userID, roomID, exceptPlayerID string) (repository.ChatRoom, error) {
	deleted, err := s.chatRoomRepo.DeleteChatRoom(ctx, userID, roomID)
	if err != nil {
		if !errors.Is(err, repository.ErrChatRoomNotFound) {
			err = fmt.Errorf("failed to delete chat room: %w", err)
		}
		return repository.ChatRoom{}, err
	}

	if deleted.VideoID != "" && deleted.HasVideoTime {
		n, err := s.conversationRepo.DeleteAtTimestamp(ctx, &repository.DeleteConversationsParams{
			UserID:    userID,
			VideoID:   deleted.VideoID,
			Timestamp: deleted.VideoCurrentTime,
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to delete conversations: %w", err)
		}
		s.logger.DebugContext(ctx, "conversations deleted", "room_id", roomID, "count", n)
	}

	for _, playerID := range s.connRepo.GetPlayerIDsByUser(userID) {
		if playerID == exceptPlayerID {
			continue
		}

		p, err := s.getPlayer(playerID)
		if err != nil {
			continue
		}

		activeID, err := p.rooms.DeleteRoom(roomID)
		if err != nil {
			continue
		}

		s.notify(ctx, playerID, Event{
			Type: EventRoomDeleted,
			Payload: map[string]any{
				"room_id":        roomID,
				"active_room_id": activeID,
				"rooms":          p.rooms.Rooms(),
			},
		})
	}

	return deleted, nil
}
