package sched

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/o9nn/echo.go-sub000/internal/budget"
	"github.com/o9nn/echo.go-sub000/internal/eventbus"
	"github.com/o9nn/echo.go-sub000/internal/loop"
	rtsup "github.com/o9nn/echo.go-sub000/internal/runtime/supervisor"
	logx "github.com/o9nn/echo.go-sub000/pkg/logx"
)

// State is the scheduler lifecycle state.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Service drives the cognitive loop: it owns the phase clock, the resource
// budget and the task queue, and is the only component that mutates them.
type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger
	bus eventbus.Bus

	clock  *loop.Clock
	budget *budget.Budget
	queue  taskQueue

	state    State
	stopCh   chan struct{}
	stopDone chan struct{}
	sup      *rtsup.Supervisor

	// inflight tracks admitted callbacks so Stop can drain them
	// cooperatively instead of killing them mid-run.
	inflight sync.WaitGroup

	idSeq  uint64
	seqNum uint64

	hmu              sync.Mutex
	recent           []TaskRecord
	perType          map[TaskType]int
	completedCount   int
	pendingHighWater int

	// starvedWarn throttles budget-exhausted logging; admission stalls can
	// repeat every tick for minutes.
	starvedWarn *rate.Limiter
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &Service{
		cfg:         cfg,
		log:         log,
		bus:         bus,
		clock:       loop.NewClock(),
		budget:      budget.New(cfg.Budget),
		perType:     map[TaskType]int{},
		starvedWarn: rate.NewLimiter(rate.Every(cfg.TickInterval*5), 1),
	}
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start spawns the driver loop. It is idempotent: calling Start while
// running is a no-op. A stopped scheduler may be started again; the queue
// is ephemeral, so anything rejected while stopped is gone.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return
	}
	if s.state == StateStopping {
		// Wait for the in-progress stop, then retry once.
		done := s.stopDone
		s.mu.Unlock()
		if done != nil {
			select {
			case <-done:
			case <-ctx.Done():
				return
			}
		}
		s.mu.Lock()
		if s.state == StateRunning {
			s.mu.Unlock()
			return
		}
	}

	s.state = StateRunning
	s.stopCh = make(chan struct{})
	s.stopDone = nil
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "sched"))),
		rtsup.WithCancelOnError(false),
	)
	stopCh := s.stopCh
	sup := s.sup
	tick := s.cfg.TickInterval
	s.mu.Unlock()

	sup.GoRestart("driver", func(c context.Context) error {
		return s.run(c, stopCh)
	})

	s.log.Info("scheduler started",
		logx.Duration("tick", tick),
		logx.Int("admit_per_tick", s.cfg.AdmitPerTick),
		logx.Int("max_concurrent", s.budget.MaxConcurrent()),
	)
}

// Stop requests a cooperative shutdown: the driver's tick wait is canceled,
// admitted callbacks run to completion (so no concurrency slot leaks), and
// the state lands on StateStopped. Calling Stop on a stopped scheduler is a
// no-op.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	switch s.state {
	case StateStopped:
		s.mu.Unlock()
		return
	case StateNotStarted:
		s.state = StateStopped
		s.mu.Unlock()
		return
	case StateStopping:
		done := s.stopDone
		s.mu.Unlock()
		if done != nil {
			select {
			case <-done:
			case <-ctx.Done():
			}
		}
		return
	}

	s.state = StateStopping
	done := make(chan struct{})
	s.stopDone = done
	close(s.stopCh)
	sup := s.sup
	s.mu.Unlock()

	if sup != nil {
		sup.Cancel()
	}

	go func() {
		// Wait unbounded in background; the caller can still time out.
		if sup != nil {
			_ = sup.Wait(context.Background())
		}
		s.inflight.Wait()

		s.mu.Lock()
		s.state = StateStopped
		s.stopCh = nil
		s.stopDone = nil
		s.sup = nil
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out", logx.Any("err", ctx.Err()))
	}
}
