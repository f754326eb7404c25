// Package logx provides the structured logging layer for echod.
//
// It wraps zerolog behind a small Logger value so components can hold a
// logger that stays live across runtime config changes (Service.Apply swaps
// sinks and levels without re-plumbing loggers through the app).
package logx
