package sched

import "errors"

var (
	// ErrStopped rejects ScheduleTask once the scheduler is stopping or
	// stopped. Queued tasks are ephemeral, so accepting work that can never
	// run would lose it silently.
	ErrStopped = errors.New("scheduler stopped")

	ErrNilCallback = errors.New("task callback is required")
	ErrBadPriority = errors.New("unrecognized task priority")
	ErrBadStream   = errors.New("stream must be 1..3")
	ErrBadCost     = errors.New("estimated cost must be >= 0")
	ErrBadType     = errors.New("task type is required")
)
