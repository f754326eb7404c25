package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "github.com/o9nn/echo.go-sub000/pkg/logx"
)

// Store is the minimal persistence API used by the cognitive services.
type Store interface {
	AppendThought(ctx context.Context, th Thought) error
	RecentThoughts(ctx context.Context, n int) ([]Thought, error)
	AppendTaskRun(ctx context.Context, r TaskRun) error
	UpsertInterest(ctx context.Context, topic string, score float64, at time.Time) error
	Interests(ctx context.Context) ([]InterestScore, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
