package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "github.com/o9nn/echo.go-sub000/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendThought(ctx context.Context, th Thought) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if th.At.IsZero() {
		th.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO thoughts(id, at, type, stream, step, mode, topic, content, interest, wisdom)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		th.ID, th.At.Format(time.RFC3339Nano), th.Type, th.Stream, th.Step,
		th.Mode, nullStr(th.Topic), th.Content, th.Interest, th.Wisdom,
	)
	return err
}

func (s *sqliteStore) RecentThoughts(ctx context.Context, n int) ([]Thought, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, type, stream, step, mode, COALESCE(topic,''), content, interest, wisdom
		 FROM thoughts ORDER BY at DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Thought
	for rows.Next() {
		var th Thought
		var at string
		if err := rows.Scan(&th.ID, &at, &th.Type, &th.Stream, &th.Step,
			&th.Mode, &th.Topic, &th.Content, &th.Interest, &th.Wisdom); err != nil {
			return nil, err
		}
		th.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, th)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Oldest first, matching the journal order of the file driver.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *sqliteStore) AppendTaskRun(ctx context.Context, r TaskRun) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_runs(id, type, priority, stream, status, err, at, took_ms)
		 VALUES(?,?,?,?,?,?,?,?)`,
		r.ID, r.Type, r.Priority, r.Stream, r.Status, nullStr(r.Error),
		r.At.Format(time.RFC3339Nano), r.TookMS,
	)
	return err
}

func (s *sqliteStore) UpsertInterest(ctx context.Context, topic string, score float64, at time.Time) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil
	}
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interests(topic, score, updated_at) VALUES(?,?,?)
		 ON CONFLICT(topic) DO UPDATE SET score=excluded.score, updated_at=excluded.updated_at`,
		topic, score, at.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) Interests(ctx context.Context) ([]InterestScore, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT topic, score, updated_at FROM interests`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InterestScore
	for rows.Next() {
		var it InterestScore
		var ms int64
		if err := rows.Scan(&it.Topic, &it.Score, &ms); err != nil {
			return nil, err
		}
		it.UpdatedAt = time.UnixMilli(ms)
		out = append(out, it)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
