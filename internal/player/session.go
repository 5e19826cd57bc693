package player

import (
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Media is the playback element a session observes.
type Media interface {
	Paused() bool
	CurrentTime() float64
}

// PauseHandler receives pauses judged deliberate.
type PauseHandler interface {
	HandleDeliberatePause(Media)
}

type PauseHandlerFunc func(Media)

func (f PauseHandlerFunc) HandleDeliberatePause(m Media) {
	f(m)
}

type Config struct {
	// SeekSettleDelay is how long after a seek completes the session still
	// counts as seeking.
	SeekSettleDelay time.Duration
	// PostSeekSuppression ignores pauses this soon after a seek started.
	PostSeekSuppression time.Duration
	// RepeatPauseSuppression ignores pauses this soon after the last
	// accepted one.
	RepeatPauseSuppression time.Duration
	// PauseDebounce is the delay before an accepted pause is handled.
	PauseDebounce time.Duration
}

func DefaultConfig() Config {
	return Config{
		SeekSettleDelay:        200 * time.Millisecond,
		PostSeekSuppression:    500 * time.Millisecond,
		RepeatPauseSuppression: 1000 * time.Millisecond,
		PauseDebounce:          300 * time.Millisecond,
	}
}

type State int

const (
	StateIdle State = iota
	StateSeeking
	StatePauseDebouncing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSeeking:
		return "seeking"
	case StatePauseDebouncing:
		return "pause_debouncing"
	default:
		return "unknown"
	}
}

type PauseDecision int

const (
	PauseScheduled PauseDecision = iota
	PauseSuppressedBySeek
	PauseSuppressedByRepeat
	PauseIgnoredClosed
)

func (d PauseDecision) String() string {
	switch d {
	case PauseScheduled:
		return "scheduled"
	case PauseSuppressedBySeek:
		return "suppressed_by_seek"
	case PauseSuppressedByRepeat:
		return "suppressed_by_repeat"
	case PauseIgnoredClosed:
		return "ignored_closed"
	default:
		return "unknown"
	}
}

// pending is a scheduled action. gen identifies the scheduling; a callback
// whose gen no longer matches was cancelled and must do nothing.
type pending struct {
	timer *clock.Timer
	gen   uint64
}

// Session tells deliberate pauses apart from pauses caused by seeking for a
// single media element. All methods are safe for concurrent use.
type Session struct {
	mu      sync.Mutex
	clock   clock.Clock
	cfg     Config
	media   Media
	handler PauseHandler
	logger  *slog.Logger

	isSeeking bool
	lastSeek  time.Time
	lastPause time.Time
	pause     pending
	settle    pending
	gen       uint64
	closed    bool
}

func NewSession(clk clock.Clock, cfg Config, media Media, handler PauseHandler, logger *slog.Logger) *Session {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		clock:   clk,
		cfg:     cfg,
		media:   media,
		handler: handler,
		logger:  logger,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.isSeeking:
		return StateSeeking
	case s.pause.timer != nil:
		return StatePauseDebouncing
	default:
		return StateIdle
	}
}

func (s *Session) OnSeekStart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.isSeeking = true
	s.lastSeek = s.clock.Now()
	s.cancel(&s.settle)
	if s.cancel(&s.pause) {
		s.logger.Debug("pending pause cancelled by seek")
	}
	s.logger.Debug("seek started")
}

func (s *Session) OnSeekSettled() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.schedule(&s.settle, s.cfg.SeekSettleDelay, s.settleSeek)
	s.logger.Debug("seek settled")
}

func (s *Session) OnPause() PauseDecision {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return PauseIgnoredClosed
	}

	now := s.clock.Now()

	if s.isSeeking || s.within(now, s.lastSeek, s.cfg.PostSeekSuppression) {
		s.logger.Debug("pause caused by seeking, ignored")
		return PauseSuppressedBySeek
	}

	if s.within(now, s.lastPause, s.cfg.RepeatPauseSuppression) {
		s.logger.Debug("repeated pause, ignored")
		return PauseSuppressedByRepeat
	}

	s.lastPause = now
	s.cancel(&s.pause)
	s.schedule(&s.pause, s.cfg.PauseDebounce, s.firePause)

	return PauseScheduled
}

func (s *Session) OnPlay() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel(&s.pause) {
		s.logger.Debug("pending pause cancelled by play")
	}
}

// Close cancels every pending action. The session ignores events afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.cancel(&s.pause)
	s.cancel(&s.settle)
}

func (s *Session) within(now, since time.Time, d time.Duration) bool {
	return !since.IsZero() && now.Sub(since) < d
}

// schedule replaces p with a new action. Must be called with mu held.
func (s *Session) schedule(p *pending, d time.Duration, fn func(gen uint64)) {
	s.cancel(p)

	s.gen++
	gen := s.gen
	p.gen = gen
	p.timer = s.clock.AfterFunc(d, func() { fn(gen) })
}

// cancel stops p and reports whether something was pending. Must be called
// with mu held.
func (s *Session) cancel(p *pending) bool {
	if p.timer == nil {
		return false
	}

	p.timer.Stop()
	*p = pending{}

	return true
}

func (s *Session) settleSeek(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settle.gen != gen {
		return
	}

	s.settle = pending{}
	s.isSeeking = false
	s.logger.Debug("seeking flag cleared")
}

func (s *Session) firePause(gen uint64) {
	s.mu.Lock()
	if s.pause.gen != gen {
		s.mu.Unlock()
		return
	}
	s.pause = pending{}

	deliberate := !s.isSeeking && s.media.Paused()
	s.mu.Unlock()

	if !deliberate {
		return
	}

	s.logger.Debug("deliberate pause detected", "current_time", s.media.CurrentTime())
	s.handler.HandleDeliberatePause(s.media)
}
