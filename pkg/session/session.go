// Package session owns one round of the game: the countdown timer, the
// live fill percentage, and the win/timeout transitions. It scores
// frames handed to it by the game loop but performs no capture or
// detection itself.
package session

import (
	"sync"
	"time"

	"github.com/feliperocha/go-silhouette/internal/log"
	"github.com/feliperocha/go-silhouette/pkg/mask"
	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// State is the lifecycle phase of a round.
type State int

const (
	NotStarted State = iota
	Running
	Won
	TimedOut
)

var stateNames = map[State]string{
	NotStarted: "not_started",
	Running:    "running",
	Won:        "won",
	TimedOut:   "timed_out",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the round has ended.
func (s State) Terminal() bool {
	return s == Won || s == TimedOut
}

// Config holds the per-round rules.
type Config struct {
	// Duration is the round's time budget.
	Duration time.Duration

	// WinThreshold is the fill percentage that wins the round.
	WinThreshold float64

	// MinBodyPixels is the smallest body mask considered a reliable
	// detection. Below it the last score is held; at zero the score
	// resets. This keeps the percentage from flickering when the
	// player is partially occluded.
	MinBodyPixels int
}

// DefaultConfig returns the standard round rules.
func DefaultConfig() Config {
	return Config{
		Duration:      5 * time.Minute,
		WinThreshold:  30.0,
		MinBodyPixels: 1000,
	}
}

// RoundStats is the aggregate handed to the stats recorder when a
// round ends.
type RoundStats struct {
	Won           bool
	FillPercent   float64
	BestPercent   float64
	TimeToWin     time.Duration
	Playtime      time.Duration
	SnapshotSaved bool
}

// StatsRecorder receives end-of-round statistics.
type StatsRecorder interface {
	RecordRound(RoundStats)
}

// SnapshotSink persists a victory frame. Failures are logged by the
// session, never propagated.
type SnapshotSink interface {
	Save(frame gocv.Mat, fillPercent float64) (string, error)
}

// Status is a point-in-time view of the round, safe to hand to other
// goroutines.
type Status struct {
	State       State         `json:"state"`
	FillPercent float64       `json:"fill_percentage"`
	BestPercent float64       `json:"best_percentage"`
	Elapsed     time.Duration `json:"elapsed"`
	TimeLeft    time.Duration `json:"time_left"`
}

// Session is one round of play. Safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	cfg       Config
	now       func() time.Time
	snapshots SnapshotSink
	stats     StatsRecorder

	id        string
	state     State
	startedAt time.Time
	endedAt   time.Time
	fill      float64
	best      float64
}

// Option customizes a Session.
type Option func(*Session)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a session in NotStarted. snapshots and stats may be nil.
func New(cfg Config, snapshots SnapshotSink, stats StatsRecorder, opts ...Option) *Session {
	s := &Session{
		cfg:       cfg,
		now:       time.Now,
		snapshots: snapshots,
		stats:     stats,
		state:     NotStarted,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins a fresh round. Callable from any state; a restart
// zeroes the score and the timer.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.id = uuid.NewString()
	s.state = Running
	s.startedAt = s.now()
	s.endedAt = time.Time{}
	s.fill = 0
	s.best = 0

	log.Info("session started",
		"round", s.id,
		"duration", s.cfg.Duration,
		"win_threshold", s.cfg.WinThreshold)
}

// Update scores one frame and applies the round's transition rules.
// score is only invoked when bodyPixels clears the detection minimum,
// so skipped frames stay cheap. frame is borrowed for the victory
// snapshot and not retained. Terminal states ignore updates.
func (s *Session) Update(frame gocv.Mat, bodyPixels int, score func() mask.Coverage) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return s.statusLocked()
	}

	now := s.now()
	elapsed := now.Sub(s.startedAt)
	timeLeft := s.cfg.Duration - elapsed
	if timeLeft < 0 {
		timeLeft = 0
	}

	switch {
	case bodyPixels >= s.cfg.MinBodyPixels:
		s.fill = score().FillPercent
	case bodyPixels == 0:
		s.fill = 0
	}
	if s.fill > s.best {
		s.best = s.fill
	}

	if s.fill >= s.cfg.WinThreshold {
		s.finishLocked(Won, frame, elapsed)
	} else if timeLeft <= 0 {
		s.finishLocked(TimedOut, frame, elapsed)
	}

	return s.statusLocked()
}

// finishLocked runs the terminal transition side effects.
func (s *Session) finishLocked(terminal State, frame gocv.Mat, elapsed time.Duration) {
	s.state = terminal
	s.endedAt = s.now()

	stats := RoundStats{
		Won:         terminal == Won,
		FillPercent: s.fill,
		BestPercent: s.best,
		Playtime:    elapsed,
	}
	if terminal == Won {
		stats.TimeToWin = elapsed
		if s.snapshots != nil {
			path, err := s.snapshots.Save(frame, s.fill)
			if err != nil {
				log.Warn("victory snapshot failed", "error", err)
			} else {
				stats.SnapshotSaved = true
				log.Info("victory snapshot saved", "path", path)
			}
		}
	}

	log.Info("session ended",
		"round", s.id,
		"state", terminal.String(),
		"fill_percentage", s.fill,
		"elapsed", elapsed)

	if s.stats != nil {
		s.stats.RecordRound(stats)
	}
}

// Status returns the current round view.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() Status {
	st := Status{
		State:       s.state,
		FillPercent: s.fill,
		BestPercent: s.best,
	}
	switch s.state {
	case Running:
		st.Elapsed = s.now().Sub(s.startedAt)
		st.TimeLeft = s.cfg.Duration - st.Elapsed
		if st.TimeLeft < 0 {
			st.TimeLeft = 0
		}
	case Won, TimedOut:
		st.Elapsed = s.endedAt.Sub(s.startedAt)
		st.TimeLeft = s.cfg.Duration - st.Elapsed
		if st.TimeLeft < 0 {
			st.TimeLeft = 0
		}
	}
	return st
}

// RoundID identifies the current round. Empty before the first Start.
func (s *Session) RoundID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result reports whether the round was won and the final percentage.
// Only meaningful once the round is terminal.
func (s *Session) Result() (won bool, fillPercent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Won, s.fill
}
