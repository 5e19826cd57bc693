package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/framechat/server/internal/assistant"
	"github.com/framechat/server/internal/repository"
)

const defaultKeyTestMessage = "Hello"

// apiKey returns the key to ask the assistant with. The user's own key wins;
// otherwise ok reports whether a server wide key can answer instead.
func (s *service) apiKey(ctx context.Context, userID string) (string, bool) {
	key, err := s.userRepo.GetOpenAIKey(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read user api key", "error", err)
	} else if key.APIKey != "" {
		return key.APIKey, true
	}

	return "", s.assistant.Configured()
}

type SaveOpenAIKeyParams struct {
	UserID string
	APIKey string
}

func (s *service) SaveOpenAIKey(ctx context.Context, params *SaveOpenAIKeyParams) error {
	if err := s.userRepo.SetOpenAIKey(ctx, &repository.SetOpenAIKeyParams{
		UserID:    params.UserID,
		APIKey:    strings.TrimSpace(params.APIKey),
		Validated: true,
		UpdatedAt: s.clock.Now().UnixMilli(),
	}); err != nil {
		return fmt.Errorf("failed to save openai key: %w", err)
	}

	s.logger.InfoContext(ctx, "openai key saved")
	return nil
}

type OpenAIKeyStatus struct {
	HasAPIKey       bool       `json:"has_api_key"`
	APIKeyValidated bool       `json:"api_key_validated"`
	LastUpdated     *time.Time `json:"last_updated,omitempty"`
}

// OpenAIKeyStatus never exposes the key itself.
func (s *service) OpenAIKeyStatus(ctx context.Context, userID string) (OpenAIKeyStatus, error) {
	key, err := s.userRepo.GetOpenAIKey(ctx, userID)
	if err != nil {
		return OpenAIKeyStatus{}, fmt.Errorf("failed to get openai key: %w", err)
	}

	status := OpenAIKeyStatus{
		HasAPIKey:       key.APIKey != "",
		APIKeyValidated: key.Validated,
	}
	if key.UpdatedAt > 0 {
		updatedAt := time.UnixMilli(key.UpdatedAt).UTC()
		status.LastUpdated = &updatedAt
	}

	return status, nil
}

func (s *service) DeleteOpenAIKey(ctx context.Context, userID string) error {
	err := s.userRepo.DeleteOpenAIKey(ctx, userID, s.clock.Now().UnixMilli())
	if errors.Is(err, repository.ErrAPIKeyNotFound) {
		return ErrAPIKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete openai key: %w", err)
	}

	s.logger.InfoContext(ctx, "openai key deleted")
	return nil
}

type TestOpenAIKeyParams struct {
	APIKey  string
	Message string
}

func (s *service) TestOpenAIKey(ctx context.Context, params *TestOpenAIKeyParams) assistant.KeyTestResult {
	message := strings.TrimSpace(params.Message)
	if message == "" {
		message = defaultKeyTestMessage
	}

	res := s.assistant.TestKey(ctx, strings.TrimSpace(params.APIKey), message)
	s.logger.InfoContext(ctx, "openai key tested", "valid", res.Valid)

	return res
}
