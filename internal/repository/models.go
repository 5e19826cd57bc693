package repository

import "time"

type ChatRoom struct {
	RoomID           string  `redis:"room_id"`
	UserID           string  `redis:"user_id"`
	VideoID          string  `redis:"video_id"`
	Name             string  `redis:"name"`
	Messages         string  `redis:"messages"`
	MessageCount     int     `redis:"message_count"`
	CapturedFrame    string  `redis:"captured_frame"`
	FrameTime        int64   `redis:"frame_time"`
	HasVideoTime     bool    `redis:"has_video_time"`
	VideoCurrentTime float64 `redis:"video_current_time"`
	CreatedAt        int64   `redis:"created_at"`
	UpdatedAt        int64   `redis:"updated_at"`
}

type Video struct {
	UserID      string `redis:"user_id"`
	Title       string `redis:"title"`
	Filename    string `redis:"filename"`
	FilePath    string `redis:"file_path"`
	ContentType string `redis:"content_type"`
	Size        int64  `redis:"size"`
	CreatedAt   int64  `redis:"created_at"`
}

type OpenAIKey struct {
	APIKey    string `redis:"openai_api_key"`
	Validated bool   `redis:"api_key_validated"`
	UpdatedAt int64  `redis:"updated_at"`
}

type Conversation struct {
	ID            int64
	UserID        string
	VideoID       string
	Question      string
	Answer        string
	QuestionImage string
	Timestamp     float64
	Embedding     []float32
	CreatedAt     time.Time
	// Score is the similarity to the search query, zero for text search.
	Score         float64
}
