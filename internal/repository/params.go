package repository

type SaveChatRoomParams struct {
	RoomID           string
	UserID           string
	VideoID          string
	Name             string
	Messages         string
	MessageCount     int
	CapturedFrame    string
	FrameTime        int64
	VideoCurrentTime *float64
	UpdatedAt        int64
}

type ListChatRoomsParams struct {
	UserID string
	Limit  int
	Offset int
}

type SetVideoParams struct {
	VideoID     string
	UserID      string
	Title       string
	Filename    string
	FilePath    string
	ContentType string
	Size        int64
	CreatedAt   int64
}

type SaveConversationParams struct {
	UserID        string
	VideoID       string
	Question      string
	Answer        string
	QuestionImage string
	Timestamp     float64
	// Embedding of question and answer; nil when it could not be computed.
	Embedding     []float32
}

type SearchSimilarParams struct {
	UserID    string
	Embedding []float32
	TopK      int
	MinScore  float64
}

type SetOpenAIKeyParams struct {
	UserID    string
	APIKey    string
	Validated bool
	UpdatedAt int64
}

type DeleteConversationsParams struct {
	UserID    string
	VideoID   string
	Timestamp float64
}
