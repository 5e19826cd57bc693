package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/framechat/server/internal/repository"
	"github.com/google/uuid"
)

type UploadVideoParams struct {
	UserID      string
	Title       string
	Filename    string
	ContentType string
	Body        io.Reader
}

type UploadVideoResponse struct {
	VideoID string `json:"video_id"`
	Title   string `json:"title"`
	Size    int64  `json:"size"`
}

// UploadVideo stores the file in the upload directory and registers it, so
// chat rooms can be saved against the returned video id.
func (s *service) UploadVideo(ctx context.Context, params *UploadVideoParams) (UploadVideoResponse, error) {
	if !strings.HasPrefix(params.ContentType, "video/") {
		return UploadVideoResponse{}, ErrNotVideo
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return UploadVideoResponse{}, fmt.Errorf("failed to create upload dir: %w", err)
	}

	videoID := uuid.NewString()
	path := filepath.Join(s.cfg.UploadDir, videoID+filepath.Ext(params.Filename))

	size, err := writeFile(path, params.Body)
	if err != nil {
		return UploadVideoResponse{}, fmt.Errorf("failed to store video: %w", err)
	}

	title := params.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(params.Filename), filepath.Ext(params.Filename))
	}

	if err := s.chatRoomRepo.SetVideo(ctx, &repository.SetVideoParams{
		VideoID:     videoID,
		UserID:      params.UserID,
		Title:       title,
		Filename:    params.Filename,
		FilePath:    path,
		ContentType: params.ContentType,
		Size:        size,
		CreatedAt:   s.clock.Now().UnixMilli(),
	}); err != nil {
		_ = os.Remove(path)
		return UploadVideoResponse{}, fmt.Errorf("failed to register video: %w", err)
	}

	s.logger.InfoContext(ctx, "video uploaded", "video_id", videoID, "size", size)

	return UploadVideoResponse{VideoID: videoID, Title: title, Size: size}, nil
}

func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}

	return n, nil
}

// videoName returns name, falling back to the title of the registered video.
func (s *service) videoName(ctx context.Context, videoID, name string) string {
	if name != "" || videoID == "" {
		return name
	}

	video, err := s.chatRoomRepo.GetVideo(ctx, videoID)
	if err != nil {
		if !errors.Is(err, repository.ErrVideoNotFound) {
			s.logger.WarnContext(ctx, "failed to get video", "video_id", videoID, "error", err)
		}
		return ""
	}

	return video.Title
}
