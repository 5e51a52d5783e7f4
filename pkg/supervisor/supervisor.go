// Package supervisor runs named background workers on their own
// goroutines and keeps the foreground isolated from their failures.
// Each worker gets a command channel, a result channel, and a state
// machine; a monitor goroutine watches for stalled startups and dead
// workers. A panicking worker becomes an ERROR state, never a crash.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/feliperocha/go-silhouette/internal/log"
	"github.com/feliperocha/go-silhouette/pkg/protocol"
)

// WorkerState is one phase of a worker's lifecycle.
type WorkerState int

const (
	Idle WorkerState = iota
	Starting
	Running
	Stopping
	Stopped
	Error
)

var workerStateNames = map[WorkerState]string{
	Idle:     "idle",
	Starting: "starting",
	Running:  "running",
	Stopping: "stopping",
	Stopped:  "stopped",
	Error:    "error",
}

func (s WorkerState) String() string {
	if name, ok := workerStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// alive reports whether the worker still has a goroutine behind it.
func (s WorkerState) alive() bool {
	return s == Starting || s == Running || s == Stopping
}

// Entry is a worker body. It must watch ctx and the command channel
// for stop requests and return promptly when asked. A non-nil return
// or a panic transitions the worker to Error.
type Entry func(ctx context.Context, commands <-chan *protocol.Message, results chan<- *protocol.Message) error

// StateListener observes worker state transitions.
type StateListener func(workerID string, state WorkerState)

const (
	defaultStartingTimeout = 30 * time.Second
	defaultMonitorInterval = time.Second
	shutdownStopTimeout    = 3 * time.Second
	channelCapacity        = 16
)

type worker struct {
	id         string
	state      WorkerState
	startTime  time.Time
	errorCount int
	commands   chan *protocol.Message
	results    chan *protocol.Message
	listener   StateListener
	cancel     context.CancelFunc
	done       chan struct{}
}

// Supervisor owns all registered workers. Safe for concurrent use.
type Supervisor struct {
	mu      sync.Mutex
	workers map[string]*worker

	startingTimeout time.Duration
	cleanups        []func()

	quit         chan struct{}
	monitorDone  chan struct{}
	shutdownOnce sync.Once
}

// Option customizes a Supervisor.
type Option func(*Supervisor)

// WithStartingTimeout shortens the startup deadline, for tests.
func WithStartingTimeout(d time.Duration) Option {
	return func(s *Supervisor) { s.startingTimeout = d }
}

// New creates a supervisor and starts its monitor loop.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		workers:         make(map[string]*worker),
		startingTimeout: defaultStartingTimeout,
		quit:            make(chan struct{}),
		monitorDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.monitor(defaultMonitorInterval)
	return s
}

// Register records a worker id and allocates its channels. Listener
// may be nil. Re-registering is allowed only while the previous
// incarnation is not alive; it resets the record but keeps the error
// count.
func (s *Supervisor) Register(id string, listener StateListener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevErrors := 0
	if w, ok := s.workers[id]; ok {
		if w.state.alive() {
			return ErrAlreadyRunning
		}
		prevErrors = w.errorCount
	}

	s.workers[id] = &worker{
		id:         id,
		state:      Idle,
		errorCount: prevErrors,
		commands:   make(chan *protocol.Message, channelCapacity),
		results:    make(chan *protocol.Message, channelCapacity),
		listener:   listener,
	}
	log.Debug("worker registered", "worker", id)
	return nil
}

// Start launches the worker body on its own goroutine. Fails if the
// id is unknown or the worker is already alive.
func (s *Supervisor) Start(id string, entry Entry) error {
	s.mu.Lock()
	w, ok := s.workers[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotRegistered
	}
	if w.state.alive() {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.startTime = time.Now()
	s.setStateLocked(w, Starting)
	commands, results, done := w.commands, w.results, w.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				log.Error("worker panicked", "worker", id, "panic", r)
				s.recordFailure(id)
			}
		}()

		s.transition(id, Running)
		if err := entry(ctx, commands, results); err != nil {
			log.Error("worker failed", "worker", id, "error", err)
			s.recordFailure(id)
			return
		}
		s.transition(id, Stopped)
	}()

	log.Info("worker started", "worker", id)
	return nil
}

// SendCommand enqueues a command without blocking.
func (s *Supervisor) SendCommand(id string, msg *protocol.Message) error {
	s.mu.Lock()
	w, ok := s.workers[id]
	s.mu.Unlock()
	if !ok {
		return ErrNotRegistered
	}

	select {
	case w.commands <- msg:
		return nil
	default:
		return ErrChannelFull
	}
}

// GetResult dequeues one result, waiting up to timeout. A zero
// timeout polls without blocking.
func (s *Supervisor) GetResult(id string, timeout time.Duration) (*protocol.Message, error) {
	s.mu.Lock()
	w, ok := s.workers[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotRegistered
	}

	if timeout <= 0 {
		select {
		case msg := <-w.results:
			return msg, nil
		default:
			return nil, ErrNoResult
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-w.results:
		return msg, nil
	case <-timer.C:
		return nil, ErrNoResult
	}
}

// PushResult enqueues a result on the worker's behalf, dropping it if
// the foreground is not draining the channel.
func (s *Supervisor) PushResult(id string, msg *protocol.Message) error {
	s.mu.Lock()
	w, ok := s.workers[id]
	s.mu.Unlock()
	if !ok {
		return ErrNotRegistered
	}

	select {
	case w.results <- msg:
		return nil
	default:
		log.Warn("result channel full, dropping", "worker", id, "type", msg.Type)
		return ErrChannelFull
	}
}

// Stop asks the worker to exit and waits up to timeout. The worker
// receives both a stop command and a context cancel. On timeout the
// worker keeps running and ErrStopTimeout is returned.
func (s *Supervisor) Stop(id string, timeout time.Duration) error {
	s.mu.Lock()
	w, ok := s.workers[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotRegistered
	}
	if !w.state.alive() {
		s.mu.Unlock()
		return nil
	}
	s.setStateLocked(w, Stopping)
	cancel, done := w.cancel, w.done
	s.mu.Unlock()

	select {
	case w.commands <- protocol.Command(protocol.TypeStop):
	default:
	}
	if cancel != nil {
		cancel()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		s.transitionIfAlive(id, Stopped)
		return nil
	case <-timer.C:
		log.Warn("worker stop timed out", "worker", id, "timeout", timeout)
		return ErrStopTimeout
	}
}

// State returns the worker's current state.
func (s *Supervisor) State(id string) (WorkerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[id]
	if !ok {
		return Idle, ErrNotRegistered
	}
	return w.state, nil
}

// ErrorCount returns how many times the worker has faulted.
func (s *Supervisor) ErrorCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.workers[id]; ok {
		return w.errorCount
	}
	return 0
}

// OnCleanup registers a callback to run during Shutdown, after all
// workers have been stopped.
func (s *Supervisor) OnCleanup(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanups = append(s.cleanups, fn)
}

// Shutdown stops every worker best-effort, runs cleanup callbacks,
// and stops the monitor. Idempotent and safe to call from a signal
// handler path.
func (s *Supervisor) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		ids := make([]string, 0, len(s.workers))
		for id := range s.workers {
			ids = append(ids, id)
		}
		cleanups := s.cleanups
		s.mu.Unlock()

		for _, id := range ids {
			if err := s.Stop(id, shutdownStopTimeout); err != nil && err != ErrNotRegistered {
				log.Warn("shutdown stop failed", "worker", id, "error", err)
			}
		}
		for _, fn := range cleanups {
			fn()
		}

		close(s.quit)
		<-s.monitorDone
		log.Info("supervisor shut down", "workers", len(ids))
	})
}

// monitor watches for startup stalls and workers that died without
// reporting a terminal state.
func (s *Supervisor) monitor(interval time.Duration) {
	defer close(s.monitorDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			s.checkWorkers()
		}
	}
}

func (s *Supervisor) checkWorkers() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, w := range s.workers {
		switch w.state {
		case Starting:
			if now.Sub(w.startTime) > s.startingTimeout {
				log.Error("worker startup timed out", "worker", w.id)
				w.errorCount++
				s.setStateLocked(w, Error)
			}
		case Running:
			select {
			case <-w.done:
				log.Warn("worker terminated unexpectedly", "worker", w.id)
				s.setStateLocked(w, Stopped)
			default:
			}
		}
	}
}

func (s *Supervisor) recordFailure(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.workers[id]; ok {
		w.errorCount++
		s.setStateLocked(w, Error)
	}
}

func (s *Supervisor) transition(id string, state WorkerState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.workers[id]; ok {
		s.setStateLocked(w, state)
	}
}

// transitionIfAlive moves a worker to state only if it has not
// already reached a terminal state on its own.
func (s *Supervisor) transitionIfAlive(id string, state WorkerState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.workers[id]; ok && w.state.alive() {
		s.setStateLocked(w, state)
	}
}

func (s *Supervisor) setStateLocked(w *worker, state WorkerState) {
	if w.state == state {
		return
	}
	w.state = state
	log.Debug("worker state changed", "worker", w.id, "state", state.String())
	if w.listener != nil {
		go w.listener(w.id, state)
	}
}
