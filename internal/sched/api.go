package sched

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/o9nn/echo.go-sub000/internal/eventbus"
	"github.com/o9nn/echo.go-sub000/internal/loop"
	logx "github.com/o9nn/echo.go-sub000/pkg/logx"
)

const defaultCost = 100

// ScheduleTask validates the request, assigns a stream and phase step, and
// enqueues the task. It returns a process-unique task id.
//
// Validation failures are synchronous; nothing is enqueued. A stopping or
// stopped scheduler rejects with ErrStopped rather than silently queueing
// work that would be lost (the queue does not survive restarts).
func (s *Service) ScheduleTask(req TaskRequest) (string, error) {
	if req.Callback == nil {
		return "", ErrNilCallback
	}
	if req.Type == "" {
		return "", ErrBadType
	}
	if req.Priority == 0 {
		req.Priority = PriorityMedium
	}
	if !req.Priority.valid() {
		return "", fmt.Errorf("%w: %d", ErrBadPriority, req.Priority)
	}
	if req.Cost < 0 {
		return "", fmt.Errorf("%w: %d", ErrBadCost, req.Cost)
	}
	if req.Cost == 0 {
		req.Cost = defaultCost
	}
	if req.Stream < 0 || req.Stream > loop.Streams {
		return "", fmt.Errorf("%w: %d", ErrBadStream, req.Stream)
	}

	s.mu.Lock()
	if s.state == StateStopping || s.state == StateStopped {
		s.mu.Unlock()
		return "", ErrStopped
	}

	stream := req.Stream
	if stream == 0 {
		stream = assignStream(req.Type)
	}
	step := s.clock.StreamStates()[stream]
	mode, phase := loop.StepInfo(step)

	now := time.Now()
	s.idSeq++
	id := fmt.Sprintf("%s_%d", req.Type, s.idSeq)

	t := &task{
		id:          id,
		taskType:    req.Type,
		description: req.Description,
		priority:    req.Priority,
		stream:      stream,
		step:        step,
		mode:        mode,
		scheduledAt: now,
		deadline:    req.Deadline,
		cost:        req.Cost,
		callback:    req.Callback,
		params:      req.Params,
		status:      StatusPending,
		createdAt:   now,
	}
	s.seqNum++
	t.seq = s.seqNum
	s.queue.push(t)
	pending := s.queue.Len()
	// Snapshot the record before releasing the lock: once the task is
	// queued, the driver may admit it and start mutating status/result.
	rec := t.record()
	s.mu.Unlock()

	s.notePending(pending)

	s.log.Debug("task scheduled",
		logx.String("id", id),
		logx.String("type", string(req.Type)),
		logx.Int("priority", int(req.Priority)),
		logx.Int("stream", stream),
		logx.Int("step", step),
		logx.String("phase", phase),
	)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeTaskScheduled, Time: now, Data: rec})
	}
	return id, nil
}

// assignStream derives the stream from the static task-type partition;
// unmapped types spread evenly at random.
func assignStream(tt TaskType) int {
	if st, ok := streamForType[tt]; ok {
		return st
	}
	return rand.Intn(loop.Streams) + 1
}

func (s *Service) notePending(pending int) {
	s.hmu.Lock()
	if pending > s.pendingHighWater {
		s.pendingHighWater = pending
	}
	s.hmu.Unlock()
}
