package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/framechat/server/internal/chatroom"
	"github.com/framechat/server/internal/service/chat"
	"github.com/framechat/server/pkg/rest"
	"github.com/framechat/server/pkg/validator"
	"github.com/google/uuid"
)

const userIDHeader = "X-User-Id"

var errMissingUserID = fmt.Errorf("%s header was not provided", userIDHeader)

func (c controller) generateTimeBasedId() string {
	id, err := uuid.NewV7()
	if err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}

	return id.String()
}

func (c controller) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	if err := rest.WriteJSON(w, status, data); err != nil {
		c.logger.WarnContext(r.Context(), "failed to write response", "error", err)
	}
}

func (c controller) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	c.writeJSON(w, r, status, rest.Envelope{"error": err.Error()})
}

func (c controller) writeValidationErrors(w http.ResponseWriter, r *http.Request, errs []validator.ValidationError) {
	c.writeJSON(w, r, http.StatusBadRequest, rest.Envelope{"errors": errs})
}

// writeServiceError maps service errors to a status. Unknown errors are
// logged and hidden from the client.
func (c controller) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chat.ErrRoomNotFound), errors.Is(err, chat.ErrAPIKeyNotFound):
		c.writeError(w, r, http.StatusNotFound, err)
	case errors.Is(err, chatroom.ErrInvalidVideoTime), errors.Is(err, chat.ErrNotVideo):
		c.writeError(w, r, http.StatusBadRequest, err)
	default:
		c.logger.ErrorContext(r.Context(), "request failed", "error", err)
		c.writeError(w, r, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

func (c controller) getQueryInt(r *http.Request, key string, defaultValue int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}

	return n, nil
}
