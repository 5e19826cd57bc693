package controller

import (
	"net/http"
	"time"

	"github.com/framechat/server/internal/chatroom"
	"github.com/framechat/server/internal/service/chat"
	"github.com/framechat/server/pkg/rest"
	"github.com/go-chi/chi/v5"
)

type messageRequest struct {
	ID        int             `json:"id" validate:"gte=1"`
	Text      string          `json:"text" validate:"required"`
	Sender    chatroom.Sender `json:"sender" validate:"required,oneof=user ai"`
	Timestamp time.Time       `json:"timestamp"`
}

type saveChatRoomRequest struct {
	ID               string           `json:"id" validate:"required,max=64"`
	VideoID          string           `json:"video_id" validate:"max=64"`
	Name             string           `json:"name" validate:"required,max=64"`
	Messages         []messageRequest `json:"messages" validate:"dive"`
	CapturedFrame    string           `json:"captured_frame"`
	FrameTime        *time.Time       `json:"frame_time"`
	VideoCurrentTime *float64         `json:"video_current_time" validate:"omitempty,gte=0"`
}

func (c controller) saveChatRoom(w http.ResponseWriter, r *http.Request) {
	var req saveChatRoomRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.writeError(w, r, http.StatusUnprocessableEntity, err)
		return
	}

	if errs, ok := c.validate.Validate(req); !ok {
		c.writeValidationErrors(w, r, errs)
		return
	}

	messages := make([]chatroom.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, chatroom.Message{
			ID:        m.ID,
			Text:      m.Text,
			Sender:    m.Sender,
			Timestamp: m.Timestamp,
		})
	}

	resp, err := c.chatService.SaveChatRoom(r.Context(), &chat.SaveChatRoomParams{
		UserID:  c.getUserIDFromCtx(r.Context()),
		VideoID: req.VideoID,
		Room: chatroom.ChatRoom{
			ID:               req.ID,
			Name:             req.Name,
			Messages:         messages,
			CapturedFrame:    req.CapturedFrame,
			FrameTime:        req.FrameTime,
			VideoCurrentTime: req.VideoCurrentTime,
		},
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if resp.Status == chat.SaveStatusCreated {
		status = http.StatusCreated
	}

	c.writeJSON(w, r, status, resp)
}

func (c controller) listChatRooms(w http.ResponseWriter, r *http.Request) {
	limit, err := c.getQueryInt(r, "limit", 20)
	if err != nil {
		c.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	offset, err := c.getQueryInt(r, "offset", 0)
	if err != nil {
		c.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	req := paginationRequest{Limit: limit, Offset: offset}
	if errs, ok := c.validate.Validate(req); !ok {
		c.writeValidationErrors(w, r, errs)
		return
	}

	resp, err := c.chatService.ListChatRooms(r.Context(), &chat.ListChatRoomsParams{
		UserID: c.getUserIDFromCtx(r.Context()),
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	c.writeJSON(w, r, http.StatusOK, resp)
}

func (c controller) getChatRoomsByVideo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "video-id")

	rooms, err := c.chatService.GetChatRoomsByVideo(r.Context(), c.getUserIDFromCtx(r.Context()), videoID)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	c.writeJSON(w, r, http.StatusOK, rest.Envelope{"chatrooms": rooms})
}

func (c controller) getChatRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room-id")

	room, err := c.chatService.GetChatRoom(r.Context(), c.getUserIDFromCtx(r.Context()), roomID)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	c.writeJSON(w, r, http.StatusOK, rest.Envelope{"chatroom": room})
}

func (c controller) deleteChatRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room-id")

	if err := c.chatService.DeleteChatRoom(r.Context(), c.getUserIDFromCtx(r.Context()), roomID); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
