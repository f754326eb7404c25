// Package sched implements the cognitive task scheduler: a priority-ordered
// admission queue driven by the 12-step phase clock and gated by a rolling
// resource budget.
//
// The scheduler owns its clock, budget and queue exclusively. Callers submit
// tasks through ScheduleTask and observe progress through Snapshot and the
// event bus; callbacks never receive references to scheduler internals.
package sched
