package controller

import (
	"errors"
	"net/http"

	"github.com/framechat/server/internal/service/chat"
)

const maxUploadBytes = 2 << 30

func (c controller) uploadVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		c.writeError(w, r, http.StatusBadRequest, errors.New("file is required"))
		return
	}
	defer file.Close()

	resp, err := c.chatService.UploadVideo(r.Context(), &chat.UploadVideoParams{
		UserID:      c.getUserIDFromCtx(r.Context()),
		Title:       r.FormValue("title"),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	c.writeJSON(w, r, http.StatusCreated, resp)
}
