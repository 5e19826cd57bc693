package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/framechat/server/internal/repository"
	_ "modernc.org/sqlite"
)

const conversationColumns = `id, user_id, video_id, question, answer, question_image, timestamp, embedding, created_at`

// Store keeps the question/answer log of every chat room.
type Store struct {
	db     *sql.DB
	now    func() time.Time
	logger *slog.Logger
}

func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now, logger: logger}
	if err := s.MigrateSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveConversation(ctx context.Context, params *repository.SaveConversationParams) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (user_id, video_id, question, answer, question_image, timestamp, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		params.UserID,
		params.VideoID,
		strings.TrimSpace(params.Question),
		strings.TrimSpace(params.Answer),
		nullString(params.QuestionImage),
		params.Timestamp,
		encodeEmbedding(params.Embedding),
		s.now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save conversation: %w", err)
	}

	return res.LastInsertId()
}

// History returns the newest conversations of a user first, with the total
// count.
func (s *Store) History(ctx context.Context, userID string, limit, offset int) ([]repository.Conversation, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE user_id = ?`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query conversations: %w", err)
	}

	conversations, err := scanConversations(rows)
	if err != nil {
		return nil, 0, err
	}

	return conversations, total, nil
}

// Search matches query against questions and answers, case-insensitively,
// newest first. Matching runs in Go since sqlite's LOWER only folds ASCII.
func (s *Store) Search(ctx context.Context, userID, query string, topK int) ([]repository.Conversation, error) {
	needle := strings.ToLower(strings.TrimSpace(query))

	all, err := s.userConversations(ctx, userID)
	if err != nil {
		return nil, err
	}

	found := make([]repository.Conversation, 0, topK)
	for _, c := range all {
		if len(found) == topK {
			break
		}
		if strings.Contains(strings.ToLower(c.Question), needle) || strings.Contains(strings.ToLower(c.Answer), needle) {
			found = append(found, c)
		}
	}

	return found, nil
}

// SearchSimilar ranks the user's conversations by cosine similarity to the
// query embedding. Conversations without an embedding or scoring below
// MinScore are left out.
func (s *Store) SearchSimilar(ctx context.Context, params *repository.SearchSimilarParams) ([]repository.Conversation, error) {
	all, err := s.userConversations(ctx, params.UserID)
	if err != nil {
		return nil, err
	}

	found := make([]repository.Conversation, 0)
	for _, c := range all {
		if len(c.Embedding) == 0 {
			continue
		}

		score := cosineSimilarity(params.Embedding, c.Embedding)
		if score < params.MinScore {
			continue
		}

		c.Score = score
		found = append(found, c)
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Score > found[j].Score
	})
	if len(found) > params.TopK {
		found = found[:params.TopK]
	}

	s.logger.DebugContext(ctx, "conversation.sqlite.SearchSimilar", "candidates", len(all), "found", len(found))
	return found, nil
}

func (s *Store) userConversations(ctx context.Context, userID string) ([]repository.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search conversations: %w", err)
	}

	return scanConversations(rows)
}

// DeleteAtTimestamp removes the conversations asked at one video time and
// returns how many were removed.
func (s *Store) DeleteAtTimestamp(ctx context.Context, params *repository.DeleteConversationsParams) (int64, error) {
	query := `DELETE FROM conversations WHERE user_id = ? AND timestamp = ?`
	args := []any{params.UserID, params.Timestamp}
	if params.VideoID != "" {
		query += ` AND video_id = ?`
		args = append(args, params.VideoID)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete conversations: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	s.logger.DebugContext(ctx, "conversation.sqlite.DeleteAtTimestamp", "deleted", n)
	return n, nil
}

func scanConversations(rows *sql.Rows) ([]repository.Conversation, error) {
	defer rows.Close()

	conversations := make([]repository.Conversation, 0)
	for rows.Next() {
		var (
			c         repository.Conversation
			image     sql.NullString
			embedding []byte
			createdAt int64
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.VideoID, &c.Question, &c.Answer, &image, &c.Timestamp, &embedding, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		c.QuestionImage = image.String
		c.Embedding = decodeEmbedding(embedding)
		c.CreatedAt = time.UnixMilli(createdAt)
		conversations = append(conversations, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return conversations, nil
}

func nullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}

	return sql.NullString{String: value, Valid: true}
}
