package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/framechat/server/internal/repository"
)

type Conversation struct {
	ID            int64     `json:"id"`
	VideoID       string    `json:"video_id"`
	Question      string    `json:"question"`
	Answer        string    `json:"answer"`
	QuestionImage string    `json:"question_image,omitempty"`
	Timestamp     float64   `json:"timestamp"`
	CreatedAt     time.Time `json:"created_at"`
	Score         float64   `json:"score,omitempty"`
}

// searchMinScore drops weak matches from similarity search.
const searchMinScore = 0.4

func toConversations(list []repository.Conversation) []Conversation {
	result := make([]Conversation, 0, len(list))
	for _, c := range list {
		result = append(result, Conversation{
			ID:            c.ID,
			VideoID:       c.VideoID,
			Question:      c.Question,
			Answer:        c.Answer,
			QuestionImage: c.QuestionImage,
			Timestamp:     c.Timestamp,
			CreatedAt:     c.CreatedAt,
			Score:         c.Score,
		})
	}

	return result
}

type SaveConversationParams struct {
	UserID        string
	VideoID       string
	Question      string
	Answer        string
	QuestionImage string
	Timestamp     float64
}

// embedConversation returns the embedding of question and answer, or nil when
// it cannot be computed. Such conversations are only found by text search.
func (s *service) embedConversation(ctx context.Context, apiKey, question, answer string) []float32 {
	embedding, err := s.assistant.Embed(ctx, apiKey, strings.TrimSpace(question)+"\n"+strings.TrimSpace(answer))
	if err != nil {
		s.logger.WarnContext(ctx, "failed to embed conversation", "error", err)
		return nil
	}

	return embedding
}

func (s *service) SaveConversation(ctx context.Context, params *SaveConversationParams) (int64, error) {
	var embedding []float32
	if apiKey, ok := s.apiKey(ctx, params.UserID); ok {
		embedding = s.embedConversation(ctx, apiKey, params.Question, params.Answer)
	}

	id, err := s.conversationRepo.SaveConversation(ctx, &repository.SaveConversationParams{
		UserID:        params.UserID,
		VideoID:       params.VideoID,
		Question:      params.Question,
		Answer:        params.Answer,
		QuestionImage: params.QuestionImage,
		Timestamp:     params.Timestamp,
		Embedding:     embedding,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save conversation: %w", err)
	}

	return id, nil
}

type HistoryParams struct {
	UserID string
	Limit  int
	Offset int
}

type HistoryResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}

func (s *service) History(ctx context.Context, params *HistoryParams) (HistoryResponse, error) {
	list, total, err := s.conversationRepo.History(ctx, params.UserID, params.Limit, params.Offset)
	if err != nil {
		return HistoryResponse{}, fmt.Errorf("failed to get history: %w", err)
	}

	return HistoryResponse{Conversations: toConversations(list), Total: total}, nil
}

type SearchParams struct {
	UserID string
	Query  string
	TopK   int
}

// Search ranks the user's conversations by similarity to the query. Without
// an api key, or when the query cannot be embedded, it falls back to text
// search.
func (s *service) Search(ctx context.Context, params *SearchParams) ([]Conversation, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return []Conversation{}, nil
	}

	if apiKey, ok := s.apiKey(ctx, params.UserID); ok {
		embedding, err := s.assistant.Embed(ctx, apiKey, query)
		if err == nil {
			list, err := s.conversationRepo.SearchSimilar(ctx, &repository.SearchSimilarParams{
				UserID:    params.UserID,
				Embedding: embedding,
				TopK:      params.TopK,
				MinScore:  searchMinScore,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to search conversations: %w", err)
			}

			return toConversations(list), nil
		}
		s.logger.WarnContext(ctx, "failed to embed search query, using text search", "error", err)
	}

	list, err := s.conversationRepo.Search(ctx, params.UserID, query, params.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to search conversations: %w", err)
	}

	return toConversations(list), nil
}
