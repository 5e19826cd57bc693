package controller

import (
	"net/http"

	"github.com/framechat/server/internal/service/chat"
	"github.com/framechat/server/pkg/rest"
)

type paginationRequest struct {
	Limit  int `json:"limit" validate:"gte=1,lte=100"`
	Offset int `json:"offset" validate:"gte=0"`
}

type saveConversationRequest struct {
	VideoID       string  `json:"video_id" validate:"max=64"`
	Question      string  `json:"question" validate:"required"`
	Answer        string  `json:"answer" validate:"required"`
	QuestionImage string  `json:"question_image"`
	Timestamp     float64 `json:"timestamp" validate:"gte=0"`
}

func (c controller) saveConversation(w http.ResponseWriter, r *http.Request) {
	var req saveConversationRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.writeError(w, r, http.StatusUnprocessableEntity, err)
		return
	}

	if errs, ok := c.validate.Validate(req); !ok {
		c.writeValidationErrors(w, r, errs)
		return
	}

	id, err := c.chatService.SaveConversation(r.Context(), &chat.SaveConversationParams{
		UserID:        c.getUserIDFromCtx(r.Context()),
		VideoID:       req.VideoID,
		Question:      req.Question,
		Answer:        req.Answer,
		QuestionImage: req.QuestionImage,
		Timestamp:     req.Timestamp,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	c.writeJSON(w, r, http.StatusCreated, rest.Envelope{"id": id})
}

func (c controller) getHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := c.getQueryInt(r, "limit", 50)
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

	resp, err := c.chatService.History(r.Context(), &chat.HistoryParams{
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

type searchRequest struct {
	Query string `json:"query" validate:"required,max=256"`
	TopK  int    `json:"top_k" validate:"omitempty,gte=1,lte=50"`
}

func (c controller) searchConversations(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.writeError(w, r, http.StatusUnprocessableEntity, err)
		return
	}

	if errs, ok := c.validate.Validate(req); !ok {
		c.writeValidationErrors(w, r, errs)
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = 5
	}

	results, err := c.chatService.Search(r.Context(), &chat.SearchParams{
		UserID: c.getUserIDFromCtx(r.Context()),
		Query:  req.Query,
		TopK:   topK,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	c.writeJSON(w, r, http.StatusOK, rest.Envelope{"results": results})
}
