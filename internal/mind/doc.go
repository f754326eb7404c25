// Package mind supplies the cognitive content that the scheduler executes:
// thought generation, interest tracking, goal formation and wisdom metrics.
//
// Everything here is a plain callback plus in-memory state; the scheduler
// decides when any of it runs.
package mind
