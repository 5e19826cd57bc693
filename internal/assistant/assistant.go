package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

var (
	ErrNotConfigured = errors.New("assistant api key is not set")
	ErrEmptyAnswer   = errors.New("assistant returned no answer")
	ErrNoEmbedding   = errors.New("assistant returned no embedding")
)

type Config struct {
	// APIKey is used for users that did not save a key of their own.
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	MaxTokens      int
	Timeout        time.Duration
}

type Question struct {
	Text      string
	VideoName string
	// Frame is the paused frame as a data URL, empty when there is none.
	Frame string
}

// KeyTestResult reports whether an api key can be used for chat completions.
type KeyTestResult struct {
	Valid        bool   `json:"valid"`
	Message      string `json:"message"`
	TestResponse string `json:"test_response,omitempty"`
	Warning      string `json:"warning,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Assistant answers questions about a video frame. Every call takes the api
// key of the asking user; an empty key falls back to Config.APIKey.
type Assistant struct {
	cfg Config
}

func New(cfg Config) *Assistant {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = string(openai.SmallEmbedding3)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Assistant{cfg: cfg}
}

// Configured reports whether a server wide key is set.
func (a *Assistant) Configured() bool {
	return a != nil && a.cfg.APIKey != ""
}

func (a *Assistant) client(apiKey string) (*openai.Client, error) {
	if apiKey == "" {
		apiKey = a.cfg.APIKey
	}
	if apiKey == "" {
		return nil, ErrNotConfigured
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if a.cfg.BaseURL != "" {
		clientConfig.BaseURL = a.cfg.BaseURL
	}

	return openai.NewClientWithConfig(clientConfig), nil
}

func (a *Assistant) Ask(ctx context.Context, apiKey string, q Question) (string, error) {
	cli, err := a.client(apiKey)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	resp, err := cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     a.cfg.Model,
		Messages:  buildMessages(q),
		MaxTokens: a.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyAnswer
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", ErrEmptyAnswer
	}

	return answer, nil
}

// Embed returns the embedding vector of text.
func (a *Assistant) Embed(ctx context.Context, apiKey, text string) ([]float32, error) {
	cli, err := a.client(apiKey)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	resp, err := cli.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(a.cfg.EmbeddingModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings failed: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrNoEmbedding
	}

	return resp.Data[0].Embedding, nil
}

// TestKey sends message with apiKey. A rate limited key still counts as
// valid.
func (a *Assistant) TestKey(ctx context.Context, apiKey, message string) KeyTestResult {
	if apiKey == "" {
		return KeyTestResult{Message: "API key test failed", Error: ErrNotConfigured.Error()}
	}

	cli, _ := a.client(apiKey)

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	resp, err := cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     a.cfg.Model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: message}},
		MaxTokens: 50,
	})
	if err != nil {
		switch statusCode(err) {
		case http.StatusUnauthorized:
			return KeyTestResult{Message: "Invalid API key", Error: "Authentication failed"}
		case http.StatusTooManyRequests:
			return KeyTestResult{Valid: true, Message: "API key is valid but rate limited", Warning: "Rate limit reached"}
		default:
			return KeyTestResult{Message: "API key test failed", Error: err.Error()}
		}
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	return KeyTestResult{
		Valid:        true,
		Message:      "API key is valid",
		TestResponse: truncate(content, 100),
	}
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}

	return 0
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[:n]) + "..."
}

func buildMessages(q Question) []openai.ChatCompletionMessage {
	videoName := q.VideoName
	if videoName == "" {
		videoName = "none"
	}

	system := "You are an assistant that analyses videos. Answer the user's questions about the uploaded video helpfully. Current video: " + videoName
	if q.Frame != "" {
		system += ". A screenshot of the paused frame is attached."
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		},
	}

	if q.Frame == "" {
		return append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: q.Text,
		})
	}

	return append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: q.Text,
			},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    q.Frame,
					Detail: openai.ImageURLDetailAuto,
				},
			},
		},
	})
}
