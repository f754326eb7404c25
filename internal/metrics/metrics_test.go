package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/o9nn/echo.go-sub000/internal/budget"
	"github.com/o9nn/echo.go-sub000/internal/eventbus"
	"github.com/o9nn/echo.go-sub000/internal/sched"
	logx "github.com/o9nn/echo.go-sub000/pkg/logx"
)

func TestObserveCountsByTypeAndStatus(t *testing.T) {
	t.Parallel()

	s := New(Config{}, nil, nil, logx.Nop())

	s.observe(eventbus.Event{Type: eventbus.TypeTaskScheduled, Data: sched.TaskRecord{Type: sched.TypeThoughtGeneration}})
	s.observe(eventbus.Event{Type: eventbus.TypeTaskCompleted, Data: sched.TaskRecord{Type: sched.TypeThoughtGeneration, Status: sched.StatusCompleted}})
	s.observe(eventbus.Event{Type: eventbus.TypeTaskFailed, Data: sched.TaskRecord{Type: sched.TypeWisdomSynthesis, Status: sched.StatusFailed}})
	s.observe(eventbus.Event{Type: eventbus.TypeCycleComplete, Data: uint64(1)})

	if got := testutil.ToFloat64(s.tasksScheduled.WithLabelValues("thought_generation")); got != 1 {
		t.Fatalf("scheduled counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.tasksFinished.WithLabelValues("thought_generation", "completed")); got != 1 {
		t.Fatalf("completed counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.tasksFinished.WithLabelValues("wisdom_synthesis", "failed")); got != 1 {
		t.Fatalf("failed counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.cycles); got != 1 {
		t.Fatalf("cycles counter = %v, want 1", got)
	}
}

func TestRefreshSetsGauges(t *testing.T) {
	t.Parallel()

	snap := sched.Snapshot{
		PendingTasks:     4,
		PendingHighWater: 9,
		CurrentStep:      7,
		CompletedTasks:   12,
		Budget:           budget.Usage{CostUsed: 300, CallsUsed: 5, Active: 2},
	}
	s := New(Config{}, nil, func() sched.Snapshot { return snap }, logx.Nop())
	s.refresh()

	if got := testutil.ToFloat64(s.pending); got != 4 {
		t.Fatalf("pending gauge = %v, want 4", got)
	}
	if got := testutil.ToFloat64(s.pendingHigh); got != 9 {
		t.Fatalf("high-water gauge = %v, want 9", got)
	}
	if got := testutil.ToFloat64(s.budgetActive); got != 2 {
		t.Fatalf("active gauge = %v, want 2", got)
	}
	if got := testutil.ToFloat64(s.currentStep); got != 7 {
		t.Fatalf("step gauge = %v, want 7", got)
	}
}

func TestStartStopWithBus(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	s := New(Config{Enabled: true}, bus, func() sched.Snapshot { return sched.Snapshot{} }, logx.Nop())

	s.Start(context.Background())
	bus.Publish(eventbus.Event{Type: eventbus.TypeTaskScheduled, Data: sched.TaskRecord{Type: sched.TypeMetaReflection}})

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(s.tasksScheduled.WithLabelValues("meta_reflection")) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("bus event never reached the counter")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)
	s.Stop(ctx) // idempotent
}
