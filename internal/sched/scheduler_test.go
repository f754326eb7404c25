package sched

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/o9nn/echo.go-sub000/internal/budget"
	"github.com/o9nn/echo.go-sub000/internal/eventbus"
	logx "github.com/o9nn/echo.go-sub000/pkg/logx"
)

func testService(cfg Config) *Service {
	return New(cfg, logx.Nop(), nil)
}

// waitCompleted polls the snapshot until n tasks have reached a terminal
// state or the deadline passes.
func waitCompleted(t *testing.T, s *Service, n int) Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		snap := s.Snapshot()
		if snap.CompletedTasks >= n {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d terminal tasks, have %d", n, snap.CompletedTasks)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScheduleValidation(t *testing.T) {
	t.Parallel()

	noop := func(ctx context.Context, params map[string]any) (any, error) { return nil, nil }

	cases := []struct {
		name string
		req  TaskRequest
		want error
	}{
		{"nil callback", TaskRequest{Type: TypeThoughtGeneration}, ErrNilCallback},
		{"empty type", TaskRequest{Callback: noop}, ErrBadType},
		{"priority out of range", TaskRequest{Type: TypeThoughtGeneration, Callback: noop, Priority: 6}, ErrBadPriority},
		{"negative cost", TaskRequest{Type: TypeThoughtGeneration, Callback: noop, Cost: -1}, ErrBadCost},
		{"stream out of range", TaskRequest{Type: TypeThoughtGeneration, Callback: noop, Stream: 4}, ErrBadStream},
	}

	s := testService(Config{})
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.ScheduleTask(tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	if got := s.Snapshot().PendingTasks; got != 0 {
		t.Fatalf("invalid requests must not enqueue, pending = %d", got)
	}
}

func TestScheduleDefaultsAndStreamMapping(t *testing.T) {
	t.Parallel()

	s := testService(Config{})
	noop := func(ctx context.Context, params map[string]any) (any, error) { return nil, nil }

	id, err := s.ScheduleTask(TaskRequest{Type: TypeGoalFormation, Callback: noop})
	if err != nil {
		t.Fatalf("ScheduleTask: %v", err)
	}
	if id != "goal_formation_1" {
		t.Fatalf("id = %q, want goal_formation_1", id)
	}

	s.mu.Lock()
	head := s.queue.peek()
	s.mu.Unlock()
	if head.priority != PriorityMedium {
		t.Fatalf("default priority = %d, want %d", head.priority, PriorityMedium)
	}
	if head.cost != defaultCost {
		t.Fatalf("default cost = %d, want %d", head.cost, defaultCost)
	}
	if head.stream != 2 {
		t.Fatalf("goal_formation stream = %d, want 2", head.stream)
	}
}

func TestTickAdmitsByPriorityUpToConcurrencyCap(t *testing.T) {
	t.Parallel()

	s := testService(Config{
		AdmitPerTick: 5,
		Budget:       budget.Config{MaxConcurrent: 3, MaxCostPerWindow: 100000, MaxCallsPerWindow: 100},
	})

	var mu sync.Mutex
	var ran []Priority
	release := make(chan struct{})
	for p := PriorityCritical; p <= PriorityBackground; p++ {
		p := p
		_, err := s.ScheduleTask(TaskRequest{
			Type:     TypeThoughtGeneration,
			Priority: p,
			Callback: func(ctx context.Context, params map[string]any) (any, error) {
				mu.Lock()
				ran = append(ran, p)
				mu.Unlock()
				<-release
				return nil, nil
			},
		})
		if err != nil {
			t.Fatalf("ScheduleTask(%d): %v", p, err)
		}
	}

	s.tick(time.Now())

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(ran)
		mu.Unlock()
		if n == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("admitted = %d, want 3", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	got := append([]Priority(nil), ran...)
	mu.Unlock()
	for _, p := range got {
		if p > PriorityMedium {
			t.Fatalf("low-priority task %d admitted ahead of the cap", p)
		}
	}
	if u := s.budget.Usage(); u.Active != 3 {
		t.Fatalf("active = %d, want 3", u.Active)
	}
	if pending := s.Snapshot().PendingTasks; pending != 2 {
		t.Fatalf("pending = %d, want 2", pending)
	}

	close(release)
	s.inflight.Wait()
	if u := s.budget.Usage(); u.Active != 0 {
		t.Fatalf("active after drain = %d, want 0", u.Active)
	}
}

func TestFailingCallbackReleasesSlot(t *testing.T) {
	t.Parallel()

	s := testService(Config{})
	boom := errors.New("boom")
	if _, err := s.ScheduleTask(TaskRequest{
		Type:     TypeWisdomSynthesis,
		Callback: func(ctx context.Context, params map[string]any) (any, error) { return nil, boom },
	}); err != nil {
		t.Fatalf("ScheduleTask: %v", err)
	}

	s.tick(time.Now())
	snap := waitCompleted(t, s, 1)

	if u := snap.Budget; u.Active != 0 {
		t.Fatalf("active = %d, want 0", u.Active)
	}
	if len(snap.Recent) != 1 || snap.Recent[0].Status != StatusFailed {
		t.Fatalf("recent = %+v, want one failed record", snap.Recent)
	}
	if snap.Recent[0].Error == "" {
		t.Fatal("failed record should carry the error text")
	}
}

func TestPanickingCallbackIsRecovered(t *testing.T) {
	t.Parallel()

	s := testService(Config{})
	if _, err := s.ScheduleTask(TaskRequest{
		Type:     TypeMetaReflection,
		Callback: func(ctx context.Context, params map[string]any) (any, error) { panic("kaboom") },
	}); err != nil {
		t.Fatalf("ScheduleTask: %v", err)
	}

	s.tick(time.Now())
	snap := waitCompleted(t, s, 1)

	if snap.Budget.Active != 0 {
		t.Fatalf("active = %d, want 0", snap.Budget.Active)
	}
	if snap.Recent[0].Status != StatusFailed {
		t.Fatalf("status = %q, want %q", snap.Recent[0].Status, StatusFailed)
	}
}

func TestExecTimeoutForcesSlotRelease(t *testing.T) {
	t.Parallel()

	s := testService(Config{ExecTimeout: 20 * time.Millisecond})
	block := make(chan struct{})
	defer close(block)

	if _, err := s.ScheduleTask(TaskRequest{
		Type: TypeMemoryConsolidation,
		Callback: func(ctx context.Context, params map[string]any) (any, error) {
			<-block
			return nil, nil
		},
	}); err != nil {
		t.Fatalf("ScheduleTask: %v", err)
	}

	s.tick(time.Now())
	snap := waitCompleted(t, s, 1)

	if snap.Budget.Active != 0 {
		t.Fatalf("timed-out task kept its slot, active = %d", snap.Budget.Active)
	}
	if snap.Recent[0].Status != StatusFailed {
		t.Fatalf("status = %q, want %q", snap.Recent[0].Status, StatusFailed)
	}
}

func TestExpiredDeadlineFailsWithoutBudget(t *testing.T) {
	t.Parallel()

	s := testService(Config{})
	if _, err := s.ScheduleTask(TaskRequest{
		Type:     TypeSkillPractice,
		Deadline: time.Now().Add(-time.Second),
		Callback: func(ctx context.Context, params map[string]any) (any, error) {
			t.Error("expired task must not run")
			return nil, nil
		},
	}); err != nil {
		t.Fatalf("ScheduleTask: %v", err)
	}

	s.tick(time.Now())
	snap := waitCompleted(t, s, 1)

	if snap.Budget.CallsUsed != 0 || snap.Budget.Active != 0 {
		t.Fatalf("expired task consumed budget: %+v", snap.Budget)
	}
	if snap.Recent[0].Status != StatusFailed {
		t.Fatalf("status = %q, want %q", snap.Recent[0].Status, StatusFailed)
	}
}

func TestBudgetStarvationBlocksLowerPriority(t *testing.T) {
	t.Parallel()

	s := testService(Config{
		AdmitPerTick: 5,
		Budget:       budget.Config{MaxConcurrent: 1, MaxCostPerWindow: 100000, MaxCallsPerWindow: 100},
	})
	release := make(chan struct{})
	defer close(release)

	hold := func(ctx context.Context, params map[string]any) (any, error) {
		<-release
		return nil, nil
	}
	if _, err := s.ScheduleTask(TaskRequest{Type: TypeThoughtGeneration, Priority: PriorityCritical, Callback: hold}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ScheduleTask(TaskRequest{Type: TypeThoughtGeneration, Priority: PriorityLow, Callback: hold}); err != nil {
		t.Fatal(err)
	}

	s.tick(time.Now())
	snap := s.Snapshot()
	if snap.Budget.Active != 1 {
		t.Fatalf("active = %d, want 1", snap.Budget.Active)
	}
	if snap.PendingTasks != 1 {
		t.Fatalf("pending = %d, want 1 (head-of-line blocked)", snap.PendingTasks)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	t.Parallel()

	s := testService(Config{TickInterval: 10 * time.Millisecond})
	if s.State() != StateNotStarted {
		t.Fatalf("state = %v, want %v", s.State(), StateNotStarted)
	}

	s.Start(context.Background())
	s.Start(context.Background()) // idempotent
	if s.State() != StateRunning {
		t.Fatalf("state = %v, want %v", s.State(), StateRunning)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(stopCtx)
	s.Stop(stopCtx) // idempotent
	if s.State() != StateStopped {
		t.Fatalf("state = %v, want %v", s.State(), StateStopped)
	}

	noop := func(ctx context.Context, params map[string]any) (any, error) { return nil, nil }
	if _, err := s.ScheduleTask(TaskRequest{Type: TypeThoughtGeneration, Callback: noop}); !errors.Is(err, ErrStopped) {
		t.Fatalf("schedule after stop: err = %v, want %v", err, ErrStopped)
	}
}

func TestDriverExecutesScheduledTask(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	s := New(Config{TickInterval: 5 * time.Millisecond}, logx.Nop(), bus)
	done := make(chan any, 1)
	if _, err := s.ScheduleTask(TaskRequest{
		Type: TypeInterestExploration,
		Callback: func(ctx context.Context, params map[string]any) (any, error) {
			return "ok", nil
		},
	}); err != nil {
		t.Fatalf("ScheduleTask: %v", err)
	}

	s.Start(context.Background())
	defer s.Stop(context.Background())

	go func() {
		deadline := time.After(5 * time.Second)
		for {
			select {
			case ev := <-events:
				if ev.Type == eventbus.TypeTaskCompleted {
					done <- ev.Data
					return
				}
			case <-deadline:
				done <- nil
				return
			}
		}
	}()

	data := <-done
	rec, ok := data.(TaskRecord)
	if !ok {
		t.Fatalf("no completion event observed, got %v", data)
	}
	if rec.Status != StatusCompleted {
		t.Fatalf("status = %q, want %q", rec.Status, StatusCompleted)
	}
	if rec.Result != "ok" {
		t.Fatalf("result = %v, want ok", rec.Result)
	}
}

func TestScheduledEventRecordsPendingState(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	s := New(Config{
		TickInterval: time.Millisecond,
		Budget:       budget.Config{MaxCostPerWindow: 1 << 20, MaxCallsPerWindow: 1 << 20},
	}, logx.Nop(), bus)

	events, unsub := bus.Subscribe(1024)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		s.Stop(stopCtx)
	})

	// Enqueue against a live driver so admission and execution overlap the
	// schedule path; the scheduled event must carry the state snapshotted
	// at enqueue time, not whatever the executor has written since.
	noop := func(ctx context.Context, params map[string]any) (any, error) { return nil, nil }
	const n = 200
	for i := 0; i < n; i++ {
		if _, err := s.ScheduleTask(TaskRequest{Type: TypeThoughtGeneration, Callback: noop, Cost: 1}); err != nil {
			t.Fatalf("ScheduleTask: %v", err)
		}
	}

	seen := 0
	deadline := time.After(5 * time.Second)
	for seen < n {
		select {
		case e := <-events:
			if e.Type != eventbus.TypeTaskScheduled {
				continue
			}
			rec, ok := e.Data.(TaskRecord)
			if !ok {
				t.Fatalf("scheduled event payload = %T", e.Data)
			}
			if rec.Status != StatusPending {
				t.Fatalf("scheduled event status = %q, want %q", rec.Status, StatusPending)
			}
			seen++
		case <-deadline:
			t.Fatalf("saw %d scheduled events, want %d", seen, n)
		}
	}
}

func TestSnapshotShape(t *testing.T) {
	t.Parallel()

	s := testService(Config{})
	snap := s.Snapshot()
	if snap.Running {
		t.Fatal("fresh scheduler must not report running")
	}
	if snap.CurrentStep != 1 {
		t.Fatalf("current step = %d, want 1", snap.CurrentStep)
	}
	if len(snap.StreamStates) != 3 {
		t.Fatalf("stream states = %v, want three entries", snap.StreamStates)
	}
	if snap.TaskHistory == nil {
		t.Fatal("task history map must be non-nil")
	}
}
