package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/framechat/server/internal/repository"
	"github.com/redis/go-redis/v9"
)

func (r repo) getChatRoomKey(userID, roomID string) string {
	return "user:" + userID + ":chatroom:" + roomID
}

func (r repo) getChatRoomListKey(userID string) string {
	return "user:" + userID + ":chatrooms"
}

func (r repo) getVideoChatRoomListKey(userID, videoID string) string {
	return "user:" + userID + ":video:" + videoID + ":chatrooms"
}

// SaveChatRoom creates the room or replaces its content, keeping the
// original creation time. It reports whether the room was created.
func (r repo) SaveChatRoom(ctx context.Context, params *repository.SaveChatRoomParams) (bool, error) {
	funcName := "chatroom.redis.SaveChatRoom"
	r.logger.DebugContext(ctx, funcName, "params", params.RoomID)

	roomKey := r.getChatRoomKey(params.UserID, params.RoomID)

	createdAt := params.UpdatedAt
	created := true
	existing, err := r.rc.HGet(ctx, roomKey, "created_at").Int64()
	switch {
	case err == nil:
		createdAt = existing
		created = false
	case !errors.Is(err, redis.Nil):
		return false, fmt.Errorf("failed to check chat room: %w", err)
	}

	room := repository.ChatRoom{
		RoomID:        params.RoomID,
		UserID:        params.UserID,
		VideoID:       params.VideoID,
		Name:          params.Name,
		Messages:      params.Messages,
		MessageCount:  params.MessageCount,
		CapturedFrame: params.CapturedFrame,
		FrameTime:     params.FrameTime,
		CreatedAt:     createdAt,
		UpdatedAt:     params.UpdatedAt,
	}
	if params.VideoCurrentTime != nil {
		room.HasVideoTime = true
		room.VideoCurrentTime = *params.VideoCurrentTime
	}

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, roomKey, room)

	listKey := r.getChatRoomListKey(params.UserID)
	pipe.ZAdd(ctx, listKey, redis.Z{Score: float64(params.UpdatedAt), Member: params.RoomID})
	r.expire(ctx, pipe, roomKey, listKey)

	if params.VideoID != "" {
		videoListKey := r.getVideoChatRoomListKey(params.UserID, params.VideoID)
		pipe.ZAddNX(ctx, videoListKey, redis.Z{Score: float64(createdAt), Member: params.RoomID})
		r.expire(ctx, pipe, videoListKey)
	}

	if err := r.executePipe(ctx, pipe); err != nil {
		return false, fmt.Errorf("failed to save chat room: %w", err)
	}

	r.logger.DebugContext(ctx, funcName, "result", "OK", "created", created)
	return created, nil
}

func (r repo) GetChatRoom(ctx context.Context, userID, roomID string) (repository.ChatRoom, error) {
	roomKey := r.getChatRoomKey(userID, roomID)

	var room repository.ChatRoom
	if err := r.rc.HGetAll(ctx, roomKey).Scan(&room); err != nil {
		return repository.ChatRoom{}, fmt.Errorf("failed to get chat room: %w", err)
	}

	if room.RoomID == "" {
		return repository.ChatRoom{}, repository.ErrChatRoomNotFound
	}

	r.expire(ctx, r.rc, roomKey)

	return room, nil
}

// getChatRooms loads rooms in the given order. Ids whose room expired are
// dropped from indexKey.
func (r repo) getChatRooms(ctx context.Context, userID, indexKey string, roomIDs []string) ([]repository.ChatRoom, error) {
	if len(roomIDs) == 0 {
		return []repository.ChatRoom{}, nil
	}

	pipe := r.rc.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		cmds = append(cmds, pipe.HGetAll(ctx, r.getChatRoomKey(userID, roomID)))
	}

	if err := r.executePipe(ctx, pipe); err != nil {
		return nil, fmt.Errorf("failed to get chat rooms: %w", err)
	}

	rooms := make([]repository.ChatRoom, 0, len(roomIDs))
	stale := make([]any, 0)
	for i, cmd := range cmds {
		var room repository.ChatRoom
		if err := cmd.Scan(&room); err != nil {
			return nil, fmt.Errorf("failed to scan chat room: %w", err)
		}

		if room.RoomID == "" {
			stale = append(stale, roomIDs[i])
			continue
		}

		rooms = append(rooms, room)
	}

	if len(stale) > 0 {
		r.logger.InfoContext(ctx, "removing expired chat rooms from index", "index", indexKey, "count", len(stale))
		if err := r.rc.ZRem(ctx, indexKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to clean chat room index: %w", err)
		}
	}

	return rooms, nil
}

// GetChatRoomsByVideo returns the rooms of a video in creation order.
func (r repo) GetChatRoomsByVideo(ctx context.Context, userID, videoID string) ([]repository.ChatRoom, error) {
	videoListKey := r.getVideoChatRoomListKey(userID, videoID)
	roomIDs, err := r.rc.ZRange(ctx, videoListKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get video chat room ids: %w", err)
	}

	return r.getChatRooms(ctx, userID, videoListKey, roomIDs)
}

// ListChatRooms returns the rooms of a user, most recently updated first,
// along with the total number of rooms.
func (r repo) ListChatRooms(ctx context.Context, params *repository.ListChatRoomsParams) ([]repository.ChatRoom, int, error) {
	listKey := r.getChatRoomListKey(params.UserID)

	total, err := r.rc.ZCard(ctx, listKey).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count chat rooms: %w", err)
	}

	if params.Limit <= 0 || int64(params.Offset) >= total {
		return []repository.ChatRoom{}, int(total), nil
	}

	start := int64(params.Offset)
	stop := start + int64(params.Limit) - 1
	roomIDs, err := r.rc.ZRevRange(ctx, listKey, start, stop).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get chat room ids: %w", err)
	}

	rooms, err := r.getChatRooms(ctx, params.UserID, listKey, roomIDs)
	if err != nil {
		return nil, 0, err
	}

	return rooms, int(total) - (len(roomIDs) - len(rooms)), nil
}

// DeleteChatRoom removes the room and returns what was stored.
func (r repo) DeleteChatRoom(ctx context.Context, userID, roomID string) (repository.ChatRoom, error) {
	funcName := "chatroom.redis.DeleteChatRoom"

	room, err := r.GetChatRoom(ctx, userID, roomID)
	if err != nil {
		r.logger.InfoContext(ctx, funcName, "error", err)
		return repository.ChatRoom{}, err
	}

	pipe := r.rc.TxPipeline()
	pipe.Del(ctx, r.getChatRoomKey(userID, roomID))
	pipe.ZRem(ctx, r.getChatRoomListKey(userID), roomID)
	if room.VideoID != "" {
		pipe.ZRem(ctx, r.getVideoChatRoomListKey(userID, room.VideoID), roomID)
	}

	if err := r.executePipe(ctx, pipe); err != nil {
		return repository.ChatRoom{}, fmt.Errorf("failed to delete chat room: %w", err)
	}

	r.logger.DebugContext(ctx, funcName, "result", "OK", "room_id", roomID)
	return room, nil
}
