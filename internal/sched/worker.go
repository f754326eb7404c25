package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/o9nn/echo.go-sub000/internal/eventbus"
	"github.com/o9nn/echo.go-sub000/internal/loop"
	logx "github.com/o9nn/echo.go-sub000/pkg/logx"
)

// run is the driver loop: one tick per interval, one phase-clock step per
// tick, until Stop cancels the wait.
func (s *Service) run(ctx context.Context, stopCh <-chan struct{}) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

// tick advances the clock one step and admits up to AdmitPerTick ready
// tasks in strict (priority, scheduled time, sequence) order. All admission
// decisions happen before any callback executes, so intra-tick ordering is
// unaffected by callback latency.
func (s *Service) tick(now time.Time) {
	s.mu.Lock()
	step := s.clock.Advance()
	cycles := s.clock.Cycles()
	mode, phase := loop.StepInfo(step)
	stream := loop.StreamFor(step)

	var admitted, expired []*task
	starved := false
	for len(admitted) < s.cfg.AdmitPerTick && s.queue.Len() > 0 {
		head := s.queue.peek()
		if head.scheduledAt.After(now) {
			// Head not due yet. Lower-priority tasks behind it are not
			// considered: strict priority fidelity over throughput.
			break
		}
		if !head.deadline.IsZero() && now.After(head.deadline) {
			t := s.queue.pop()
			t.status = StatusFailed
			t.errText = "deadline exceeded before admission"
			t.completedAt = now
			expired = append(expired, t)
			continue
		}
		if !s.budget.TryAllocate(head.cost, 1) {
			starved = true
			break
		}
		t := s.queue.pop()
		t.status = StatusRunning
		admitted = append(admitted, t)
	}
	pending := s.queue.Len()
	s.mu.Unlock()

	s.notePending(pending)

	s.log.Debug("tick",
		logx.Int("step", step),
		logx.Uint64("cycle", cycles),
		logx.Int("stream", stream),
		logx.String("mode", string(mode)),
		logx.String("phase", phase),
		logx.Int("admitted", len(admitted)),
		logx.Int("pending", pending),
	)
	if step == 1 && cycles > 0 && s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeCycleComplete, Time: now, Data: cycles})
	}
	if starved && s.starvedWarn.Allow() {
		u := s.budget.Usage()
		s.log.Warn("admission stalled: resource budget exhausted",
			logx.Int("pending", pending),
			logx.Int("cost_used", u.CostUsed),
			logx.Int("calls_used", u.CallsUsed),
			logx.Int("active", u.Active),
		)
	}
	for _, t := range expired {
		s.finish(t, now)
	}

	for _, t := range admitted {
		t := t
		s.inflight.Add(1)
		go s.execOne(t)
	}
}

type outcome struct {
	result any
	err    error
}

// execOne runs one admitted task's callback with the execution timeout and
// releases the budget slot exactly once, on every exit path. On timeout the
// task fails and the slot is forcibly released; the callback goroutine is
// orphaned and its eventual result discarded.
func (s *Service) execOne(t *task) {
	defer s.inflight.Done()

	start := time.Now()
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeTaskStarted, Time: start, Data: t.record()})
	}
	s.log.Debug("task started",
		logx.String("id", t.id),
		logx.String("type", string(t.taskType)),
		logx.Int("stream", t.stream),
		logx.Int("step", t.step),
		logx.String("mode", string(t.mode)),
	)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ExecTimeout)

	// Callbacks see their phase context alongside the request params. The
	// map is copied so concurrent tasks sharing a params map don't race.
	params := make(map[string]any, len(t.params)+4)
	for k, v := range t.params {
		params[k] = v
	}
	params["task_id"] = t.id
	params["stream"] = t.stream
	params["step"] = t.step
	params["mode"] = string(t.mode)

	resCh := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resCh <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := t.callback(ctx, params)
		resCh <- outcome{result: v, err: err}
	}()

	var o outcome
	select {
	case o = <-resCh:
	case <-ctx.Done():
		o = outcome{err: fmt.Errorf("execution timeout after %s", s.cfg.ExecTimeout)}
	}
	cancel()

	now := time.Now()
	if o.err != nil {
		t.status = StatusFailed
		t.errText = o.err.Error()
	} else {
		t.status = StatusCompleted
		t.result = o.result
	}
	t.completedAt = now

	// Release must run regardless of outcome; it pairs with the TryAllocate
	// performed at admission.
	s.budget.Release()

	s.finish(t, now)

	if o.err != nil {
		s.log.Warn("task failed",
			logx.String("id", t.id),
			logx.String("type", string(t.taskType)),
			logx.Any("err", o.err),
			logx.Duration("dur", now.Sub(start)),
		)
	} else {
		s.log.Debug("task completed",
			logx.String("id", t.id),
			logx.String("type", string(t.taskType)),
			logx.Duration("dur", now.Sub(start)),
		)
	}
}

// finish records a terminal task in the per-type history and publishes the
// lifecycle event.
func (s *Service) finish(t *task, now time.Time) {
	rec := t.record()

	s.hmu.Lock()
	s.perType[t.taskType]++
	s.completedCount++
	s.recent = append(s.recent, rec)
	if len(s.recent) > s.cfg.HistorySize {
		s.recent = s.recent[len(s.recent)-s.cfg.HistorySize:]
	}
	s.hmu.Unlock()

	if s.bus == nil {
		return
	}
	evType := eventbus.TypeTaskCompleted
	if t.status == StatusFailed {
		evType = eventbus.TypeTaskFailed
	}
	s.bus.Publish(eventbus.Event{Type: evType, Time: now, Data: rec})
}
