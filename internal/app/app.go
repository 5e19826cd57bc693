package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/framechat/server/internal/assistant"
	"github.com/framechat/server/internal/controller"
	"github.com/framechat/server/internal/player"
	chatroomredis "github.com/framechat/server/internal/repository/chatroom/redis"
	"github.com/framechat/server/internal/repository/connection/inmemory"
	"github.com/framechat/server/internal/repository/conversation/sqlite"
	"github.com/framechat/server/internal/service/chat"
	"github.com/framechat/server/pkg/ctxlogger"
	"github.com/framechat/server/pkg/redisclient"
	"github.com/redis/go-redis/v9"
)

type AppConfig struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	LogLevel      string        `json:"log_level"`
	RedisPort     int           `json:"redis_port"`
	RedisHost     string        `json:"redis_host"`
	RedisPassword string        `json:"-"`
	SQLitePath    string        `json:"sqlite_path"`
	UploadDir     string        `json:"upload_dir"`
	ChatRoomTTL   time.Duration `json:"chatroom_ttl"`

	OpenAIAPIKey         string `json:"-"`
	OpenAIBaseURL        string `json:"openai_base_url"`
	OpenAIModel          string `json:"openai_model"`
	OpenAIEmbeddingModel string `json:"openai_embedding_model"`

	SeekSettleDelay        time.Duration `json:"seek_settle_delay"`
	PostSeekSuppression    time.Duration `json:"post_seek_suppression"`
	RepeatPauseSuppression time.Duration `json:"repeat_pause_suppression"`
	PauseDebounce          time.Duration `json:"pause_debounce"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if cfg.SQLitePath == "" {
		return fmt.Errorf("sqlite path must not be empty")
	}
	if cfg.UploadDir == "" {
		return fmt.Errorf("upload dir must not be empty")
	}
	if cfg.ChatRoomTTL < 0 {
		return fmt.Errorf("chat room ttl must not be negative")
	}
	if cfg.SeekSettleDelay <= 0 || cfg.PostSeekSuppression <= 0 || cfg.RepeatPauseSuppression <= 0 || cfg.PauseDebounce <= 0 {
		return fmt.Errorf("pause thresholds must be greater than 0")
	}
	// a pause caused by a seek arrives after the seek settles
	if cfg.PostSeekSuppression < cfg.SeekSettleDelay {
		return fmt.Errorf("post seek suppression must not be shorter than seek settle delay")
	}

	return nil
}

func (cfg *AppConfig) playerConfig() player.Config {
	return player.Config{
		SeekSettleDelay:        cfg.SeekSettleDelay,
		PostSeekSuppression:    cfg.PostSeekSuppression,
		RepeatPauseSuppression: cfg.RepeatPauseSuppression,
		PauseDebounce:          cfg.PauseDebounce,
	}
}

func newLogger(level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

type stack struct {
	handler http.Handler
	service interface{ Wait() }
	store   *sqlite.Store
}

func (s *stack) close() {
	s.service.Wait()
	if err := s.store.Close(); err != nil {
		slog.Warn("failed to close conversation store", "error", err)
	}
}

func newStack(cfg *AppConfig, rc *redis.Client, logger *slog.Logger) (*stack, error) {
	store, err := sqlite.Open(cfg.SQLitePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation store: %w", err)
	}

	chatRoomRepo := chatroomredis.NewRepo(rc, cfg.ChatRoomTTL, logger)
	connectionRepo := inmemory.NewRepo(logger)
	chatService := chat.NewService(
		chatRoomRepo,
		store,
		chatRoomRepo,
		connectionRepo,
		assistant.New(assistant.Config{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			Model:          cfg.OpenAIModel,
			EmbeddingModel: cfg.OpenAIEmbeddingModel,
		}),
		clock.New(),
		chat.Config{
			Player:    cfg.playerConfig(),
			UploadDir: cfg.UploadDir,
		},
		logger,
	)
	controller := controller.NewController(chatService, connectionRepo, logger)

	return &stack{
		handler: controller.GetMux(),
		service: chatService,
		store:   store,
	}, nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	rc, err := redisclient.NewRedisClient(&redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	srv, err := newStack(cfg, rc, logger)
	if err != nil {
		return err
	}
	defer srv.close()

	if cfg.OpenAIAPIKey == "" {
		logger.WarnContext(ctx, "openai api key is not set, the assistant will ask for it")
	}

	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: srv.handler}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-serverCtx.Done()

	return nil
}
