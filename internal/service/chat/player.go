package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/framechat/server/internal/chatroom"
	"github.com/framechat/server/internal/player"
	"github.com/framechat/server/pkg/ctxlogger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// FrameCapturer returns the current frame of the media, or false when no
// frame is available.
type FrameCapturer interface {
	Capture(player.Media) (string, bool)
}

// mediaMirror is the server side view of the browser's video element, kept
// up to date by playback events. It remembers the frame sent with the last
// pause.
type mediaMirror struct {
	mu          sync.Mutex
	paused      bool
	currentTime float64
	frame       string
}

func (m *mediaMirror) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.paused
}

func (m *mediaMirror) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.currentTime
}

func (m *mediaMirror) Capture(player.Media) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.frame, m.frame != ""
}

func (m *mediaMirror) pause(currentTime float64, frame string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.paused = true
	m.currentTime = currentTime
	m.frame = frame
}

func (m *mediaMirror) play(currentTime float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.paused = false
	m.currentTime = currentTime
	m.frame = ""
}

// seek moves the playhead. The remembered frame no longer matches it.
func (m *mediaMirror) seek(currentTime float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.currentTime = currentTime
	m.frame = ""
}

func (m *mediaMirror) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.paused = false
	m.currentTime = 0
	m.frame = ""
}

// Player is one mounted video player: its playback session and its chat
// rooms.
type Player struct {
	ID     string
	UserID string

	ctx      context.Context
	media    *mediaMirror
	capturer FrameCapturer
	rooms    *chatroom.State

	// storeMu orders the player's writes to storage. Each write reads the
	// room under it, so the last write always carries the newest state.
	storeMu sync.Mutex

	mu        sync.RWMutex
	videoID   string
	videoName string
	session   *player.Session
}

func (p *Player) Video() (string, string) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.videoID, p.videoName
}

func (p *Player) Session() *player.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.session
}

func (p *Player) Rooms() *chatroom.State {
	return p.rooms
}

func (s *service) newSession(p *Player) *player.Session {
	handler := player.PauseHandlerFunc(func(m player.Media) {
		s.handleDeliberatePause(p, m)
	})

	return player.NewSession(s.clock, s.cfg.Player, p.media, handler, s.logger.With("player_id", p.ID))
}

func (s *service) getPlayer(playerID string) (*Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[playerID]
	if !ok {
		return nil, ErrPlayerNotFound
	}

	return p, nil
}

func (s *service) GetPlayer(playerID string) (*Player, error) {
	return s.getPlayer(playerID)
}

type ConnectParams struct {
	Conn      *websocket.Conn
	UserID    string
	VideoID   string
	VideoName string
}

type ConnectResponse struct {
	PlayerID string
	Rooms    []chatroom.ChatRoom
}

// Connect mounts a player for the connection and loads the chat rooms
// already stored for the video.
func (s *service) Connect(ctx context.Context, params *ConnectParams) (ConnectResponse, error) {
	playerID := uuid.NewString()

	rooms, err := s.loadRooms(ctx, params.UserID, params.VideoID)
	if err != nil {
		return ConnectResponse{}, fmt.Errorf("failed to load chat rooms: %w", err)
	}

	media := &mediaMirror{}
	p := &Player{
		ID:        playerID,
		UserID:    params.UserID,
		ctx:       ctxlogger.AppendCtx(context.WithoutCancel(ctx), slog.String("player_id", playerID)),
		media:     media,
		capturer:  media,
		rooms:     chatroom.NewState(rooms),
		videoID:   params.VideoID,
		videoName: s.videoName(ctx, params.VideoID, params.VideoName),
	}
	p.session = s.newSession(p)

	if err := s.connRepo.Add(params.Conn, playerID, params.UserID); err != nil {
		p.session.Close()
		return ConnectResponse{}, fmt.Errorf("failed to add connection: %w", err)
	}

	s.mu.Lock()
	s.players[playerID] = p
	s.mu.Unlock()

	s.logger.InfoContext(p.ctx, "player connected", "user_id", params.UserID, "video_id", params.VideoID, "rooms", len(rooms))

	return ConnectResponse{
		PlayerID: playerID,
		Rooms:    p.rooms.Rooms(),
	}, nil
}

func (s *service) Disconnect(ctx context.Context, playerID string) error {
	s.mu.Lock()
	p, ok := s.players[playerID]
	delete(s.players, playerID)
	s.mu.Unlock()

	if !ok {
		return ErrPlayerNotFound
	}

	p.Session().Close()
	if err := s.connRepo.RemoveByPlayerID(playerID); err != nil {
		return fmt.Errorf("failed to remove connection: %w", err)
	}

	s.logger.InfoContext(ctx, "player disconnected", "player_id", playerID)
	return nil
}

type LoadVideoParams struct {
	PlayerID  string
	VideoID   string
	VideoName string
}

// LoadVideo replaces the video of a player. Playback state and chat rooms
// start over with the rooms stored for the new video.
func (s *service) LoadVideo(ctx context.Context, params *LoadVideoParams) ([]chatroom.ChatRoom, error) {
	p, err := s.getPlayer(params.PlayerID)
	if err != nil {
		return nil, err
	}

	rooms, err := s.loadRooms(ctx, p.UserID, params.VideoID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat rooms: %w", err)
	}
	videoName := s.videoName(ctx, params.VideoID, params.VideoName)

	p.mu.Lock()
	p.session.Close()
	p.media.reset()
	p.rooms.Reset(rooms)
	p.videoID = params.VideoID
	p.videoName = videoName
	p.session = s.newSession(p)
	p.mu.Unlock()

	return p.rooms.Rooms(), nil
}

func (s *service) loadRooms(ctx context.Context, userID, videoID string) ([]chatroom.ChatRoom, error) {
	if videoID == "" {
		return nil, nil
	}

	stored, err := s.chatRoomRepo.GetChatRoomsByVideo(ctx, userID, videoID)
	if err != nil {
		return nil, err
	}

	rooms := make([]chatroom.ChatRoom, 0, len(stored))
	for _, r := range stored {
		room, err := fromRepoChatRoom(r)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping unreadable chat room", "room_id", r.RoomID, "error", err)
			continue
		}
		rooms = append(rooms, room)
	}

	return rooms, nil
}
