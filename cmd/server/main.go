package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/framechat/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8080,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
	sqlitePath = configVar[string]{
		envKey:       "SQLITE_PATH",
		flagKey:      "sqlite-path",
		defaultValue: "conversations.db",
	}
	uploadDir = configVar[string]{
		envKey:       "SERVER_UPLOAD_DIR",
		flagKey:      "upload-dir",
		defaultValue: "uploads",
	}
	chatRoomTTL = configVar[time.Duration]{
		envKey:       "SERVER_CHATROOM_TTL",
		flagKey:      "chatroom-ttl",
		defaultValue: 30 * 24 * time.Hour,
	}
	openAIAPIKey = configVar[string]{
		envKey:       "OPENAI_API_KEY",
		flagKey:      "openai-api-key",
		defaultValue: "",
	}
	openAIBaseURL = configVar[string]{
		envKey:       "OPENAI_BASE_URL",
		flagKey:      "openai-base-url",
		defaultValue: "",
	}
	openAIModel = configVar[string]{
		envKey:       "OPENAI_MODEL",
		flagKey:      "openai-model",
		defaultValue: "gpt-4o-mini",
	}
	openAIEmbeddingModel = configVar[string]{
		envKey:       "OPENAI_EMBEDDING_MODEL",
		flagKey:      "openai-embedding-model",
		defaultValue: "text-embedding-3-small",
	}
	seekSettleDelay = configVar[time.Duration]{
		envKey:       "PLAYER_SEEK_SETTLE_DELAY",
		flagKey:      "seek-settle-delay",
		defaultValue: 200 * time.Millisecond,
	}
	postSeekSuppression = configVar[time.Duration]{
		envKey:       "PLAYER_POST_SEEK_SUPPRESSION",
		flagKey:      "post-seek-suppression",
		defaultValue: 500 * time.Millisecond,
	}
	repeatPauseSuppression = configVar[time.Duration]{
		envKey:       "PLAYER_REPEAT_PAUSE_SUPPRESSION",
		flagKey:      "repeat-pause-suppression",
		defaultValue: 1000 * time.Millisecond,
	}
	pauseDebounce = configVar[time.Duration]{
		envKey:       "PLAYER_PAUSE_DEBOUNCE",
		flagKey:      "pause-debounce",
		defaultValue: 300 * time.Millisecond,
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.String(sqlitePath.flagKey, sqlitePath.defaultValue, "Conversation database path")
	pflag.String(uploadDir.flagKey, uploadDir.defaultValue, "Directory for uploaded videos")
	pflag.Duration(chatRoomTTL.flagKey, chatRoomTTL.defaultValue, "Chat room expiration after last update, 0 keeps them forever")
	pflag.String(openAIAPIKey.flagKey, openAIAPIKey.defaultValue, "OpenAI API key")
	pflag.String(openAIBaseURL.flagKey, openAIBaseURL.defaultValue, "OpenAI compatible API base url")
	pflag.String(openAIModel.flagKey, openAIModel.defaultValue, "Assistant model")
	pflag.String(openAIEmbeddingModel.flagKey, openAIEmbeddingModel.defaultValue, "Embedding model for conversation search")
	pflag.Duration(seekSettleDelay.flagKey, seekSettleDelay.defaultValue, "Time after a seek completes that still counts as seeking")
	pflag.Duration(postSeekSuppression.flagKey, postSeekSuppression.defaultValue, "Pauses this soon after a seek are ignored")
	pflag.Duration(repeatPauseSuppression.flagKey, repeatPauseSuppression.defaultValue, "Pauses this soon after an accepted pause are ignored")
	pflag.Duration(pauseDebounce.flagKey, pauseDebounce.defaultValue, "Delay before an accepted pause creates a chat room")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)
	viper.BindEnv(sqlitePath.flagKey, sqlitePath.envKey)
	viper.BindEnv(uploadDir.flagKey, uploadDir.envKey)
	viper.BindEnv(chatRoomTTL.flagKey, chatRoomTTL.envKey)
	viper.BindEnv(openAIAPIKey.flagKey, openAIAPIKey.envKey)
	viper.BindEnv(openAIBaseURL.flagKey, openAIBaseURL.envKey)
	viper.BindEnv(openAIModel.flagKey, openAIModel.envKey)
	viper.BindEnv(openAIEmbeddingModel.flagKey, openAIEmbeddingModel.envKey)
	viper.BindEnv(seekSettleDelay.flagKey, seekSettleDelay.envKey)
	viper.BindEnv(postSeekSuppression.flagKey, postSeekSuppression.envKey)
	viper.BindEnv(repeatPauseSuppression.flagKey, repeatPauseSuppression.envKey)
	viper.BindEnv(pauseDebounce.flagKey, pauseDebounce.envKey)

	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)
	viper.SetDefault(sqlitePath.flagKey, sqlitePath.defaultValue)
	viper.SetDefault(uploadDir.flagKey, uploadDir.defaultValue)
	viper.SetDefault(chatRoomTTL.flagKey, chatRoomTTL.defaultValue)
	viper.SetDefault(openAIAPIKey.flagKey, openAIAPIKey.defaultValue)
	viper.SetDefault(openAIBaseURL.flagKey, openAIBaseURL.defaultValue)
	viper.SetDefault(openAIModel.flagKey, openAIModel.defaultValue)
	viper.SetDefault(openAIEmbeddingModel.flagKey, openAIEmbeddingModel.defaultValue)
	viper.SetDefault(seekSettleDelay.flagKey, seekSettleDelay.defaultValue)
	viper.SetDefault(postSeekSuppression.flagKey, postSeekSuppression.defaultValue)
	viper.SetDefault(repeatPauseSuppression.flagKey, repeatPauseSuppression.defaultValue)
	viper.SetDefault(pauseDebounce.flagKey, pauseDebounce.defaultValue)

	config := &app.AppConfig{
		Host:                   viper.GetString(host.flagKey),
		Port:                   viper.GetInt(port.flagKey),
		LogLevel:               viper.GetString(logLevel.flagKey),
		RedisPort:              viper.GetInt(redisPort.flagKey),
		RedisHost:              viper.GetString(redisHost.flagKey),
		RedisPassword:          viper.GetString(redisPassword.flagKey),
		SQLitePath:             viper.GetString(sqlitePath.flagKey),
		UploadDir:              viper.GetString(uploadDir.flagKey),
		ChatRoomTTL:            viper.GetDuration(chatRoomTTL.flagKey),
		OpenAIAPIKey:           viper.GetString(openAIAPIKey.flagKey),
		OpenAIBaseURL:          viper.GetString(openAIBaseURL.flagKey),
		OpenAIModel:            viper.GetString(openAIModel.flagKey),
		OpenAIEmbeddingModel:   viper.GetString(openAIEmbeddingModel.flagKey),
		SeekSettleDelay:        viper.GetDuration(seekSettleDelay.flagKey),
		PostSeekSuppression:    viper.GetDuration(postSeekSuppression.flagKey),
		RepeatPauseSuppression: viper.GetDuration(repeatPauseSuppression.flagKey),
		PauseDebounce:          viper.GetDuration(pauseDebounce.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatal(err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
