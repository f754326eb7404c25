// Package pulse drives recurring cognition: it registers named cadences
// (cron expressions or fixed intervals) and, on each trigger, produces a
// task request and hands it to the scheduler.
//
// The package is trigger-only. It never executes callbacks itself; admission,
// budgeting and execution all belong to the scheduler.
package pulse
