package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "github.com/o9nn/echo.go-sub000/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) should return nil store", driver)
		}
	}
	if _, err := Open(Config{Driver: "bogus"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver should fail")
	}
}

func TestFileStoreThoughtRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "echo.db")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ctx := context.Background()
	for i, content := range []string{"first", "second", "third"} {
		th := Thought{
			ID:      "t" + string(rune('0'+i)),
			Type:    "thought_generation",
			Stream:  1,
			Step:    i + 1,
			Mode:    "expressive",
			Content: content,
			At:      time.Now().Add(time.Duration(i) * time.Millisecond),
		}
		if err := st.AppendThought(ctx, th); err != nil {
			t.Fatalf("AppendThought: %v", err)
		}
	}

	got, err := st.RecentThoughts(ctx, 2)
	if err != nil {
		t.Fatalf("RecentThoughts: %v", err)
	}
	if len(got) != 2 || got[0].Content != "second" || got[1].Content != "third" {
		t.Fatalf("recent = %+v, want last two in order", got)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen: the journal replays into the recent tail.
	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
	got, err = st2.RecentThoughts(ctx, 10)
	if err != nil {
		t.Fatalf("RecentThoughts after reopen: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("recent after reopen = %d, want 3", len(got))
	}
}

func TestFileStoreInterestsSurviveReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "echo.db")
	ctx := context.Background()

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.UpsertInterest(ctx, "distributed systems", 0.4, time.Now()); err != nil {
		t.Fatalf("UpsertInterest: %v", err)
	}
	if err := st.UpsertInterest(ctx, "distributed systems", 0.7, time.Now()); err != nil {
		t.Fatalf("UpsertInterest (update): %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()

	got, err := st2.Interests(ctx)
	if err != nil {
		t.Fatalf("Interests: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("interests = %d, want 1 (upsert by topic)", len(got))
	}
	if got[0].Score != 0.7 {
		t.Fatalf("score = %v, want last write to win", got[0].Score)
	}
}

func TestFileStoreTaskRunAppend(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "echo.db")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	err = st.AppendTaskRun(context.Background(), TaskRun{
		ID: "thought_generation_1", Type: "thought_generation",
		Priority: 3, Stream: 1, Status: "completed", TookMS: 12,
	})
	if err != nil {
		t.Fatalf("AppendTaskRun: %v", err)
	}
}
