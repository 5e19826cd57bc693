package sqlite

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/framechat/server/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(":memory:", slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	current := time.UnixMilli(1_000)
	store.now = func() time.Time {
		current = current.Add(time.Second)
		return current
	}

	return store
}

func save(t *testing.T, s *Store, userID, question, answer string, ts float64) int64 {
	t.Helper()

	id, err := s.SaveConversation(context.Background(), &repository.SaveConversationParams{
		UserID:    userID,
		VideoID:   "video1",
		Question:  question,
		Answer:    answer,
		Timestamp: ts,
	})
	require.NoError(t, err)

	return id
}

func TestSaveAndHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	save(t, s, "u1", "  what is on screen?  ", "a cat", 10.5)
	save(t, s, "u1", "and now?", "a dog", 20)
	save(t, s, "u2", "other user", "hidden", 1)

	history, total, err := s.History(ctx, "u1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, history, 2)
	assert.Equal(t, "and now?", history[0].Question)
	assert.Equal(t, "what is on screen?", history[1].Question)
	assert.Equal(t, 10.5, history[1].Timestamp)
	assert.Empty(t, history[1].QuestionImage)

	history, total, err = s.History(ctx, "u1", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, history, 1)
	assert.Equal(t, "a cat", history[0].Answer)
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	save(t, s, "u1", "Who is the SPEAKER?", "a professor", 1)
	save(t, s, "u1", "what color?", "blue 100%", 2)
	save(t, s, "u2", "speaker again", "hidden", 3)

	found, err := s.Search(ctx, "u1", "speaker", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Who is the SPEAKER?", found[0].Question)

	found, err = s.Search(ctx, "u1", "100%", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)

	found, err = s.Search(ctx, "u1", "_", 10)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestSearchFoldsUnicodeCase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	save(t, s, "u1", "Qui est l'ÉLÈVE ?", "un étudiant", 1)
	save(t, s, "u1", "Что это?", "ПРОФЕССОР", 2)

	found, err := s.Search(ctx, "u1", "élève", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Qui est l'ÉLÈVE ?", found[0].Question)

	found, err = s.Search(ctx, "u1", "профессор", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)

	found, err = s.Search(ctx, "u1", "É", 1)
	require.NoError(t, err)
	require.Len(t, found, 1)
}

func TestSearchSimilar(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, c := range []struct {
		question  string
		embedding []float32
	}{
		{"close", []float32{1, 0.1, 0}},
		{"closest", []float32{1, 0, 0}},
		{"orthogonal", []float32{0, 1, 0}},
		{"no embedding", nil},
	} {
		_, err := s.SaveConversation(ctx, &repository.SaveConversationParams{
			UserID:    "u1",
			Question:  c.question,
			Answer:    "answer",
			Embedding: c.embedding,
		})
		require.NoError(t, err)
	}
	_, err := s.SaveConversation(ctx, &repository.SaveConversationParams{
		UserID:    "u2",
		Question:  "other user",
		Answer:    "hidden",
		Embedding: []float32{1, 0, 0},
	})
	require.NoError(t, err)

	found, err := s.SearchSimilar(ctx, &repository.SearchSimilarParams{
		UserID:    "u1",
		Embedding: []float32{2, 0, 0},
		TopK:      5,
		MinScore:  0.4,
	})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "closest", found[0].Question)
	assert.InDelta(t, 1.0, found[0].Score, 1e-6)
	assert.Equal(t, "close", found[1].Question)
	assert.Equal(t, []float32{1, 0.1, 0}, found[1].Embedding)

	found, err = s.SearchSimilar(ctx, &repository.SearchSimilarParams{
		UserID:    "u1",
		Embedding: []float32{2, 0, 0},
		TopK:      1,
		MinScore:  0.4,
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "closest", found[0].Question)
}

func TestMigrateSchemaIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.db")

	s, err := Open(path, slog.Default())
	require.NoError(t, err)
	save(t, s, "u1", "q", "a", 1)
	require.NoError(t, s.Close())

	s, err = Open(path, slog.Default())
	require.NoError(t, err)
	defer s.Close()

	var version int
	require.NoError(t, s.db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version))
	assert.Equal(t, len(migrations), version)

	_, total, err := s.History(context.Background(), "u1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestDeleteAtTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	save(t, s, "u1", "q1", "a1", 42.5)
	save(t, s, "u1", "q2", "a2", 42.5)
	save(t, s, "u1", "q3", "a3", 43)

	n, err := s.DeleteAtTimestamp(ctx, &repository.DeleteConversationsParams{
		UserID:    "u1",
		VideoID:   "video1",
		Timestamp: 42.5,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, total, err := s.History(ctx, "u1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
