package storage

// Package storage persists the cognitive record across restarts.
//
// It currently supports:
//   - Thought journal appends (generated thoughts with scores)
//   - Task run log appends (terminal scheduler records)
//   - Interest scores (upserted, survive restarts)
