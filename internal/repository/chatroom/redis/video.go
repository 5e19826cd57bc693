package redis

import (
	"context"
	"fmt"

	"github.com/framechat/server/internal/repository"
)

func (r repo) getVideoKey(videoID string) string {
	return "video:" + videoID
}

func (r repo) SetVideo(ctx context.Context, params *repository.SetVideoParams) error {
	video := repository.Video{
		UserID:      params.UserID,
		Title:       params.Title,
		Filename:    params.Filename,
		FilePath:    params.FilePath,
		ContentType: params.ContentType,
		Size:        params.Size,
		CreatedAt:   params.CreatedAt,
	}

	videoKey := r.getVideoKey(params.VideoID)
	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, videoKey, video)
	r.expire(ctx, pipe, videoKey)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set video: %w", err)
	}

	return nil
}

func (r repo) GetVideo(ctx context.Context, videoID string) (repository.Video, error) {
	videoKey := r.getVideoKey(videoID)

	var video repository.Video
	if err := r.rc.HGetAll(ctx, videoKey).Scan(&video); err != nil {
		return repository.Video{}, fmt.Errorf("failed to get video: %w", err)
	}

	if video.FilePath == "" {
		return repository.Video{}, repository.ErrVideoNotFound
	}

	r.expire(ctx, r.rc, videoKey)

	return video, nil
}
