package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "github.com/o9nn/echo.go-sub000/pkg/logx"
)

// recentCap bounds the in-memory tail served by RecentThoughts.
const recentCap = 256

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.thoughts.jsonl           (append-only JSON Lines)
//   - <prefix>.tasks.jsonl              (append-only JSON Lines)
//   - <prefix>.interests.snapshot.json  (periodic snapshot)
//   - <prefix>.interests.journal.jsonl  (append-only journal)
//
// The interest journal is periodically compacted into the snapshot.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	thoughtFile *os.File
	taskFile    *os.File

	// In-memory tail of the thought journal, newest last.
	recent []Thought

	interestSnapshotPath string
	interestJournalFile  *os.File
	interests            map[string]InterestScore

	interestWrites int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	thoughtPath := prefix + ".thoughts.jsonl"
	taskPath := prefix + ".tasks.jsonl"
	snapPath := prefix + ".interests.snapshot.json"
	journalPath := prefix + ".interests.journal.jsonl"

	recent := loadRecentThoughts(thoughtPath, recentCap)

	tf, err := os.OpenFile(thoughtPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	rf, err := os.OpenFile(taskPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		_ = tf.Close()
		return nil, err
	}

	// Load interests from snapshot + journal.
	interests := map[string]InterestScore{}
	_ = loadInterestSnapshot(snapPath, interests)
	_ = replayInterestJournal(journalPath, interests)

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = tf.Close()
		_ = rf.Close()
		return nil, err
	}

	return &fileStore{
		log:                  log,
		thoughtFile:          tf,
		taskFile:             rf,
		recent:               recent,
		interestSnapshotPath: snapPath,
		interestJournalFile:  jf,
		interests:            interests,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, f := range []**os.File{&s.thoughtFile, &s.taskFile, &s.interestJournalFile} {
		if *f == nil {
			continue
		}
		if err := (*f).Close(); err != nil && first == nil {
			first = err
		}
		*f = nil
	}
	return first
}

func (s *fileStore) AppendThought(ctx context.Context, th Thought) error {
	_ = ctx
	if th.At.IsZero() {
		th.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.thoughtFile == nil {
		return errors.New("thought journal closed")
	}
	if err := json.NewEncoder(s.thoughtFile).Encode(th); err != nil {
		return err
	}
	s.recent = append(s.recent, th)
	if len(s.recent) > recentCap {
		s.recent = s.recent[len(s.recent)-recentCap:]
	}
	return nil
}

func (s *fileStore) RecentThoughts(ctx context.Context, n int) ([]Thought, error) {
	_ = ctx
	if n <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.recent) {
		n = len(s.recent)
	}
	out := make([]Thought, n)
	copy(out, s.recent[len(s.recent)-n:])
	return out, nil
}

func (s *fileStore) AppendTaskRun(ctx context.Context, r TaskRun) error {
	_ = ctx
	if r.At.IsZero() {
		r.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taskFile == nil {
		return errors.New("task run log closed")
	}
	return json.NewEncoder(s.taskFile).Encode(r)
}

func (s *fileStore) UpsertInterest(ctx context.Context, topic string, score float64, at time.Time) error {
	_ = ctx
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil
	}
	if at.IsZero() {
		at = time.Now()
	}
	rec := InterestScore{Topic: topic, Score: score, UpdatedAt: at}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interestJournalFile == nil {
		return errors.New("interest journal closed")
	}
	s.interests[topic] = rec

	if err := json.NewEncoder(s.interestJournalFile).Encode(rec); err != nil {
		return err
	}
	s.interestWrites++
	if s.interestWrites%1000 == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("interest compact failed", logx.Any("err", err))
		}
	}
	return nil
}

func (s *fileStore) Interests(ctx context.Context) ([]InterestScore, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]InterestScore, 0, len(s.interests))
	for _, v := range s.interests {
		out = append(out, v)
	}
	return out, nil
}

func (s *fileStore) compactLocked() error {
	tmp := s.interestSnapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.interests); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.interestSnapshotPath); err != nil {
		return err
	}
	// Truncate journal.
	if err := s.interestJournalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.interestJournalFile.Seek(0, 2)
	return err
}

func loadInterestSnapshot(path string, out map[string]InterestScore) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]InterestScore
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayInterestJournal(path string, out map[string]InterestScore) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r InterestScore
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.Topic == "" {
			continue
		}
		out[r.Topic] = r
	}
	return sc.Err()
}

// loadRecentThoughts replays the journal keeping only the last n entries.
func loadRecentThoughts(path string, n int) []Thought {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var tail []Thought
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var th Thought
		if err := json.Unmarshal(sc.Bytes(), &th); err != nil {
			continue
		}
		tail = append(tail, th)
		if len(tail) > n {
			tail = tail[1:]
		}
	}
	return tail
}
