package redis

import (
	"context"
	"fmt"

	"github.com/framechat/server/internal/repository"
)

func (r repo) getUserKey(userID string) string {
	return "user:" + userID
}

// SetOpenAIKey stores the user's api key. User keys never expire.
func (r repo) SetOpenAIKey(ctx context.Context, params *repository.SetOpenAIKeyParams) error {
	key := repository.OpenAIKey{
		APIKey:    params.APIKey,
		Validated: params.Validated,
		UpdatedAt: params.UpdatedAt,
	}

	if err := r.rc.HSet(ctx, r.getUserKey(params.UserID), key).Err(); err != nil {
		return fmt.Errorf("failed to set openai key: %w", err)
	}

	return nil
}

// GetOpenAIKey returns the stored key state. APIKey is empty when the user
// has no key.
func (r repo) GetOpenAIKey(ctx context.Context, userID string) (repository.OpenAIKey, error) {
	var key repository.OpenAIKey
	if err := r.rc.HGetAll(ctx, r.getUserKey(userID)).Scan(&key); err != nil {
		return repository.OpenAIKey{}, fmt.Errorf("failed to get openai key: %w", err)
	}

	return key, nil
}

func (r repo) DeleteOpenAIKey(ctx context.Context, userID string, updatedAt int64) error {
	funcName := "chatroom.redis.DeleteOpenAIKey"
	userKey := r.getUserKey(userID)

	exists, err := r.rc.HExists(ctx, userKey, "openai_api_key").Result()
	if err != nil {
		return fmt.Errorf("failed to check openai key: %w", err)
	}
	if !exists {
		return repository.ErrAPIKeyNotFound
	}

	pipe := r.rc.TxPipeline()
	pipe.HDel(ctx, userKey, "openai_api_key")
	pipe.HSet(ctx, userKey, "api_key_validated", false, "updated_at", updatedAt)
	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to delete openai key: %w", err)
	}

	r.logger.DebugContext(ctx, funcName, "result", "OK")
	return nil
}
