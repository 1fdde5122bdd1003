package schedule

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ErrClosed is returned by Arm after Shutdown.
var ErrClosed = errors.New("scheduler closed")

// Scheduler fires armed timers from one coordinator goroutine. Due timers are handed to their
// callbacks on separate goroutines, so a slow or failing callback never delays another timer.
type Scheduler struct {
	clock  clockwork.Clock
	logger *zap.Logger

	mu      sync.Mutex
	queue   timerHeap
	pending map[string]*Timer
	seq     uint64
	started bool
	closed  bool

	wake     chan struct{}
	stop     chan struct{}
	loopDone chan struct{}
	inflight sync.WaitGroup

	cbCtx    context.Context
	cbCancel context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock that timers are measured against.
func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger for fire and failure events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a stopped scheduler. Timers may be armed before Start; they fire once it runs.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:    clockwork.NewRealClock(),
		logger:   zap.NewNop(),
		pending:  make(map[string]*Timer),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clock returns the scheduler's clock.
func (s *Scheduler) Clock() clockwork.Clock {
	return s.clock
}

// Start launches the coordinator loop. Callbacks receive a context derived from ctx that is
// cancelled when Shutdown gives up waiting for them. Calling Start again is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.started {
		return nil
	}
	s.started = true
	s.cbCtx, s.cbCancel = context.WithCancel(ctx)
	go s.run()
	return nil
}

// ArmOption customizes a single timer.
type ArmOption func(*Timer)

// Labeled attaches a human-readable label to the timer.
func Labeled(label string) ArmOption {
	return func(t *Timer) { t.Label = label }
}

// Arm validates req, computes its fire instant from the scheduler clock and queues it.
// The returned handle can be used to cancel it.
func (s *Scheduler) Arm(req Request, cb Callback, opts ...ArmOption) (*Timer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if cb == nil {
		return nil, fmt.Errorf("arm: nil callback")
	}
	now := s.clock.Now()
	t := &Timer{
		ID:      uuid.NewString(),
		Request: req,
		ArmedAt: now,
		FireAt:  req.FireAt(now),
		cb:      cb,
		owner:   s,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.seq++
	t.seq = s.seq
	heap.Push(&s.queue, t)
	s.pending[t.ID] = t
	s.mu.Unlock()

	s.signal()
	s.logger.Debug("timer armed",
		zap.String("timer_id", t.ID),
		zap.String("when", req.String()),
		zap.Time("fire_at", t.FireAt))
	return t, nil
}

// Cancel cancels the pending timer with the given id and reports whether it did.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	t, ok := s.pending[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return s.cancel(t)
}

func (s *Scheduler) cancel(t *Timer) bool {
	s.mu.Lock()
	if !t.state.CompareAndSwap(int32(StateArmed), int32(StateCancelled)) {
		s.mu.Unlock()
		return false
	}
	if t.index >= 0 && t.index < len(s.queue) && s.queue[t.index] == t {
		heap.Remove(&s.queue, t.index)
	}
	delete(s.pending, t.ID)
	s.mu.Unlock()

	close(t.done)
	s.signal()
	s.logger.Debug("timer cancelled", zap.String("timer_id", t.ID))
	return true
}

// Get returns the pending timer with the given id.
func (s *Scheduler) Get(id string) (*Timer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.pending[id]
	return t, ok
}

// Pending returns the armed timers ordered by fire instant.
func (s *Scheduler) Pending() []*Timer {
	s.mu.Lock()
	out := make([]*Timer, 0, len(s.pending))
	for _, t := range s.pending {
		out = append(out, t)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].FireAt.Before(out[j].FireAt)
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// Shutdown stops the coordinator, cancels every pending timer and waits for running callbacks
// until ctx is done. Arm fails with ErrClosed afterwards.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	close(s.stop)
	if started {
		<-s.loopDone
	}

	for _, t := range s.Pending() {
		s.cancel(t)
	}

	waited := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(waited)
	}()
	defer func() {
		if s.cbCancel != nil {
			s.cbCancel()
		}
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for callbacks: %w", ctx.Err())
	}
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run is the coordinator loop.
func (s *Scheduler) run() {
	defer close(s.loopDone)
	for {
		s.mu.Lock()
		due := s.popDueLocked()
		var next *Timer
		if len(s.queue) > 0 {
			next = s.queue[0]
		}
		s.mu.Unlock()

		for _, t := range due {
			s.dispatch(t)
		}

		var timerC <-chan time.Time
		var wait clockwork.Timer
		if next != nil {
			wait = s.clock.NewTimer(next.FireAt.Sub(s.clock.Now()))
			// The clock may have moved between reading it and registering the timer.
			if !next.FireAt.After(s.clock.Now()) {
				wait.Stop()
				continue
			}
			timerC = wait.Chan()
		}

		select {
		case <-timerC:
		case <-s.wake:
		case <-s.stop:
			if wait != nil {
				wait.Stop()
			}
			return
		}
		if wait != nil {
			wait.Stop()
		}
	}
}

// popDueLocked removes every timer whose instant has been reached and marks it fired.
func (s *Scheduler) popDueLocked() []*Timer {
	now := s.clock.Now()
	var due []*Timer
	for len(s.queue) > 0 && !s.queue[0].FireAt.After(now) {
		t := heap.Pop(&s.queue).(*Timer)
		delete(s.pending, t.ID)
		if t.state.CompareAndSwap(int32(StateArmed), int32(StateFired)) {
			due = append(due, t)
		}
	}
	return due
}

func (s *Scheduler) dispatch(t *Timer) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("timer callback panicked",
					zap.String("timer_id", t.ID), zap.Any("panic", r))
			}
		}()
		s.logger.Info("timer fired",
			zap.String("timer_id", t.ID),
			zap.String("label", t.Label),
			zap.Duration("late_by", s.clock.Since(t.FireAt)))
		if err := t.cb(s.cbCtx, t); err != nil {
			s.logger.Warn("timer callback failed", zap.String("timer_id", t.ID), zap.Error(err))
		}
	}()
}
