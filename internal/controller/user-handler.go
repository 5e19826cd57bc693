package controller

import (
	"net/http"

	"github.com/framechat/server/internal/service/chat"
	"github.com/framechat/server/pkg/rest"
)

type openAIKeyRequest struct {
	APIKey string `json:"api_key" validate:"required,max=512"`
}

type testOpenAIKeyRequest struct {
	APIKey      string `json:"api_key" validate:"required,max=512"`
	TestMessage string `json:"test_message" validate:"max=500"`
}

func (c controller) testOpenAIKey(w http.ResponseWriter, r *http.Request) {
	var req testOpenAIKeyRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.writeError(w, r, http.StatusUnprocessableEntity, err)
		return
	}

	if errs, ok := c.validate.Validate(req); !ok {
		c.writeValidationErrors(w, r, errs)
		return
	}

	res := c.chatService.TestOpenAIKey(r.Context(), &chat.TestOpenAIKeyParams{
		APIKey:  req.APIKey,
		Message: req.TestMessage,
	})

	c.writeJSON(w, r, http.StatusOK, res)
}

func (c controller) saveOpenAIKey(w http.ResponseWriter, r *http.Request) {
	var req openAIKeyRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.writeError(w, r, http.StatusUnprocessableEntity, err)
		return
	}

	if errs, ok := c.validate.Validate(req); !ok {
		c.writeValidationErrors(w, r, errs)
		return
	}

	if err := c.chatService.SaveOpenAIKey(r.Context(), &chat.SaveOpenAIKeyParams{
		UserID: c.getUserIDFromCtx(r.Context()),
		APIKey: req.APIKey,
	}); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	c.writeJSON(w, r, http.StatusOK, rest.Envelope{
		"message": "OpenAI API key saved successfully",
		"status":  "success",
	})
}

func (c controller) getOpenAIKeyStatus(w http.ResponseWriter, r *http.Request) {
	status, err := c.chatService.OpenAIKeyStatus(r.Context(), c.getUserIDFromCtx(r.Context()))
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	c.writeJSON(w, r, http.StatusOK, status)
}

func (c controller) deleteOpenAIKey(w http.ResponseWriter, r *http.Request) {
	if err := c.chatService.DeleteOpenAIKey(r.Context(), c.getUserIDFromCtx(r.Context())); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	c.writeJSON(w, r, http.StatusOK, rest.Envelope{
		"message": "OpenAI API key deleted successfully",
		"status":  "success",
	})
}
