package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl + snapshot)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Thought is one generated thought with its scores.
// Keep it compact and schema-stable.
type Thought struct {
	ID       string    `json:"id"`
	At       time.Time `json:"at"`
	Type     string    `json:"type"`
	Stream   int       `json:"stream"`
	Step     int       `json:"step"`
	Mode     string    `json:"mode"`
	Topic    string    `json:"topic"`
	Content  string    `json:"content"`
	Interest float64   `json:"interest"`
	Wisdom   float64   `json:"wisdom"`
}

// TaskRun records one terminal task for the run log.
type TaskRun struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Priority int       `json:"priority"`
	Stream   int       `json:"stream"`
	Status   string    `json:"status"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
	TookMS   int64     `json:"took_ms"`
}

// InterestScore is the persisted attention weight for one topic.
type InterestScore struct {
	Topic     string    `json:"topic"`
	Score     float64   `json:"score"`
	UpdatedAt time.Time `json:"updated_at"`
}
