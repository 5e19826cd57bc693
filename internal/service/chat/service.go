package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/framechat/server/internal/assistant"
	"github.com/framechat/server/internal/player"
	"github.com/framechat/server/internal/repository"
	"github.com/gorilla/websocket"
)

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrNoActiveRoom   = errors.New("no active chat room")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrRoomNotFound   = errors.New("chat room not found")
	ErrNotVideo       = errors.New("only video files can be uploaded")
	ErrAPIKeyNotFound = errors.New("openai api key not found")
)

const (
	NoAPIKeyMessage  = "Please enter your OpenAI API key so I can answer questions about the video."
	AssistantFailure = "Sorry, something went wrong while generating the answer."
)

type iChatRoomRepo interface {
	SaveChatRoom(context.Context, *repository.SaveChatRoomParams) (bool, error)
	GetChatRoom(ctx context.Context, userID, roomID string) (repository.ChatRoom, error)
	GetChatRoomsByVideo(ctx context.Context, userID, videoID string) ([]repository.ChatRoom, error)
	ListChatRooms(context.Context, *repository.ListChatRoomsParams) ([]repository.ChatRoom, int, error)
	DeleteChatRoom(ctx context.Context, userID, roomID string) (repository.ChatRoom, error)
	SetVideo(context.Context, *repository.SetVideoParams) error
	GetVideo(ctx context.Context, videoID string) (repository.Video, error)
}

type iConversationRepo interface {
	SaveConversation(context.Context, *repository.SaveConversationParams) (int64, error)
	History(ctx context.Context, userID string, limit, offset int) ([]repository.Conversation, int, error)
	Search(ctx context.Context, userID, query string, topK int) ([]repository.Conversation, error)
	SearchSimilar(context.Context, *repository.SearchSimilarParams) ([]repository.Conversation, error)
	DeleteAtTimestamp(context.Context, *repository.DeleteConversationsParams) (int64, error)
}

type iUserRepo interface {
	SetOpenAIKey(context.Context, *repository.SetOpenAIKeyParams) error
	GetOpenAIKey(ctx context.Context, userID string) (repository.OpenAIKey, error)
	DeleteOpenAIKey(ctx context.Context, userID string, updatedAt int64) error
}

type iConnRepo interface {
	Add(conn *websocket.Conn, playerID, userID string) error
	RemoveByPlayerID(playerID string) error
	GetPlayerIDsByUser(userID string) []string
	Send(playerID string, v any) error
}

type iAssistant interface {
	Configured() bool
	Ask(ctx context.Context, apiKey string, q assistant.Question) (string, error)
	Embed(ctx context.Context, apiKey, text string) ([]float32, error)
	TestKey(ctx context.Context, apiKey, message string) assistant.KeyTestResult
}

type Config struct {
	Player    player.Config
	UploadDir string
}

type service struct {
	chatRoomRepo     iChatRoomRepo
	conversationRepo iConversationRepo
	userRepo         iUserRepo
	connRepo         iConnRepo
	assistant        iAssistant
	clock            clock.Clock
	cfg              Config
	logger           *slog.Logger

	mu      sync.RWMutex
	players map[string]*Player
	wg      sync.WaitGroup
}

func NewService(
	chatRoomRepo iChatRoomRepo,
	conversationRepo iConversationRepo,
	userRepo iUserRepo,
	connRepo iConnRepo,
	assistant iAssistant,
	clk clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *service {
	return &service{
		chatRoomRepo:     chatRoomRepo,
		conversationRepo: conversationRepo,
		userRepo:         userRepo,
		connRepo:         connRepo,
		assistant:        assistant,
		clock:            clk,
		cfg:              cfg,
		logger:           logger,
		players:          make(map[string]*Player),
	}
}

// Wait blocks until background persistence and assistant calls finish.
func (s *service) Wait() {
	s.wg.Wait()
}

// background runs fn detached from the caller's cancellation. Failures are
// only logged.
func (s *service) background(ctx context.Context, name string, fn func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := fn(ctx); err != nil {
			s.logger.ErrorContext(ctx, "background task failed", "task", name, "error", err)
		}
	}()
}

type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const (
	EventRoomsLoaded       = "ROOMS_LOADED"
	EventRoomCreated       = "ROOM_CREATED"
	EventActiveRoomChanged = "ACTIVE_ROOM_CHANGED"
	EventMessageAdded      = "MESSAGE_ADDED"
	EventRoomDeleted       = "ROOM_DELETED"
	EventAssistantTyping   = "ASSISTANT_TYPING"
)

func (s *service) notify(ctx context.Context, playerID string, event Event) {
	if err := s.connRepo.Send(playerID, &event); err != nil {
		s.logger.WarnContext(ctx, "failed to notify player", "event", event.Type, "error", err)
	}
}
