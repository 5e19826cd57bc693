package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/framechat/server/internal/assistant"
	"github.com/framechat/server/internal/chatroom"
	"github.com/framechat/server/internal/player"
	"github.com/framechat/server/internal/service/chat"
	"github.com/framechat/server/pkg/validator"
	"github.com/framechat/server/pkg/wsrouter"
	"github.com/gorilla/websocket"
)

type iChatService interface {
	Connect(context.Context, *chat.ConnectParams) (chat.ConnectResponse, error)
	Disconnect(ctx context.Context, playerID string) error
	LoadVideo(context.Context, *chat.LoadVideoParams) ([]chatroom.ChatRoom, error)

	SeekStart(context.Context, *chat.SeekParams) error
	SeekSettled(context.Context, *chat.SeekParams) error
	Pause(context.Context, *chat.PauseParams) (player.PauseDecision, error)
	Play(context.Context, *chat.PlayParams) error

	SendMessage(context.Context, *chat.SendMessageParams) (chat.SendMessageResponse, error)
	SwitchRoom(context.Context, *chat.SwitchRoomParams) (chatroom.ChatRoom, error)
	DeletePlayerRoom(context.Context, *chat.DeletePlayerRoomParams) (chat.DeletePlayerRoomResponse, error)

	SaveChatRoom(context.Context, *chat.SaveChatRoomParams) (chat.SaveChatRoomResponse, error)
	GetChatRoom(ctx context.Context, userID, roomID string) (chat.StoredChatRoom, error)
	GetChatRoomsByVideo(ctx context.Context, userID, videoID string) ([]chat.StoredChatRoom, error)
	ListChatRooms(context.Context, *chat.ListChatRoomsParams) (chat.ListChatRoomsResponse, error)
	DeleteChatRoom(ctx context.Context, userID, roomID string) error

	UploadVideo(context.Context, *chat.UploadVideoParams) (chat.UploadVideoResponse, error)

	SaveConversation(context.Context, *chat.SaveConversationParams) (int64, error)
	History(context.Context, *chat.HistoryParams) (chat.HistoryResponse, error)
	Search(context.Context, *chat.SearchParams) ([]chat.Conversation, error)

	SaveOpenAIKey(context.Context, *chat.SaveOpenAIKeyParams) error
	OpenAIKeyStatus(ctx context.Context, userID string) (chat.OpenAIKeyStatus, error)
	DeleteOpenAIKey(ctx context.Context, userID string) error
	TestOpenAIKey(context.Context, *chat.TestOpenAIKeyParams) assistant.KeyTestResult
}

type iSender interface {
	Send(playerID string, v any) error
}

type controller struct {
	chatService iChatService
	sender      iSender
	upgrader    websocket.Upgrader
	wsmux       *wsrouter.WSRouter
	validate    *validator.Validator
	logger      *slog.Logger
}

func NewController(chatService iChatService, sender iSender, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		chatService: chatService,
		sender:      sender,
		validate:    validator.NewValidator(),
		logger:      logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}
