// Package autosync runs a job on a fixed interval without overlapping runs.
package autosync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval matches the default periodic sync interval.
const DefaultInterval = 5 * time.Minute

// ErrAlreadyRunning is returned by Start when the scheduler is active.
var ErrAlreadyRunning = errors.New("auto-sync already running")

// Job is the periodic work. It receives a context cancelled by Stop.
type Job func(ctx context.Context)

// Stats counts completed and skipped ticks.
type Stats struct {
	Runs    int64
	Skipped int64
	LastRun time.Time
}

// tickerFunc returns a tick channel and a stop function.
type tickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Scheduler invokes a Job on every tick. A tick that arrives while the
// previous run is still in progress is skipped, never queued.
type Scheduler struct {
	interval  time.Duration
	job       Job
	newTicker tickerFunc

	mu     sync.Mutex
	runCtx context.Context
	cancel context.CancelFunc
	loop   chan struct{}
	jobs   sync.WaitGroup

	busy    atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64
	lastRun atomic.Int64
}

// New creates a stopped Scheduler. A non-positive interval uses DefaultInterval.
func New(interval time.Duration, job Job) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{interval: interval, job: job, newTicker: realTicker}
}

// Interval returns the tick period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start begins ticking. The first run happens one interval from now.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	tick, stopTicker := s.newTicker(s.interval)
	s.runCtx, s.cancel = ctx, cancel
	s.loop = make(chan struct{})

	go s.run(ctx, tick, stopTicker, s.loop)
	slog.Debug("autosync: started", "interval", s.interval)
	return nil
}

func (s *Scheduler) run(ctx context.Context, tick <-chan time.Time, stopTicker func(), done chan struct{}) {
	defer close(done)
	defer stopTicker()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.trigger(ctx)
		}
	}
}

// trigger starts a run unless one is in progress. It reports whether a
// run was started.
func (s *Scheduler) trigger(ctx context.Context) bool {
	if !s.busy.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		slog.Info("autosync: previous run still in progress, skipping tick")
		return false
	}
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		defer s.busy.Store(false)
		s.job(ctx)
		s.lastRun.Store(time.Now().UnixNano())
		s.runs.Add(1)
	}()
	return true
}

// RunNow starts an immediate run under the same overlap guard as ticks.
// It is a no-op returning false when the scheduler is stopped or busy.
func (s *Scheduler) RunNow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCtx == nil {
		return false
	}
	return s.trigger(s.runCtx)
}

// Stop cancels the ticker and any in-flight run, then waits for both to
// exit. Calling Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, loop := s.cancel, s.loop
	s.runCtx, s.cancel, s.loop = nil, nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-loop
	s.jobs.Wait()
	slog.Debug("autosync: stopped")
}

// Running reports whether the scheduler has been started and not stopped.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Busy reports whether a run is in progress.
func (s *Scheduler) Busy() bool {
	return s.busy.Load()
}

// Stats returns run counters.
func (s *Scheduler) Stats() Stats {
	st := Stats{Runs: s.runs.Load(), Skipped: s.skipped.Load()}
	if ns := s.lastRun.Load(); ns != 0 {
		st.LastRun = time.Unix(0, ns)
	}
	return st
}
