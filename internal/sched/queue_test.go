package sched

import (
	"testing"
	"time"
)

func mkTask(id string, p Priority, at time.Time, seq uint64) *task {
	return &task{id: id, priority: p, scheduledAt: at, seq: seq}
}

func TestQueueOrdering(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	cases := []struct {
		name string
		in   []*task
		want []string
	}{
		{
			name: "priority wins",
			in: []*task{
				mkTask("bg", PriorityBackground, base, 1),
				mkTask("crit", PriorityCritical, base, 2),
				mkTask("med", PriorityMedium, base, 3),
			},
			want: []string{"crit", "med", "bg"},
		},
		{
			name: "scheduled time breaks priority tie",
			in: []*task{
				mkTask("late", PriorityHigh, base.Add(time.Second), 1),
				mkTask("early", PriorityHigh, base, 2),
			},
			want: []string{"early", "late"},
		},
		{
			name: "sequence breaks full tie",
			in: []*task{
				mkTask("second", PriorityLow, base, 9),
				mkTask("first", PriorityLow, base, 4),
			},
			want: []string{"first", "second"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var q taskQueue
			for _, it := range tc.in {
				q.push(it)
			}
			for i, want := range tc.want {
				got := q.pop()
				if got == nil || got.id != want {
					t.Fatalf("pop %d = %v, want %q", i, got, want)
				}
			}
			if q.Len() != 0 {
				t.Fatalf("queue not drained: %d left", q.Len())
			}
		})
	}
}

func TestQueuePeekDoesNotRemove(t *testing.T) {
	t.Parallel()

	var q taskQueue
	if q.peek() != nil {
		t.Fatal("peek on empty queue should be nil")
	}
	q.push(mkTask("only", PriorityMedium, time.Now(), 1))
	if got := q.peek(); got == nil || got.id != "only" {
		t.Fatalf("peek = %v", got)
	}
	if q.Len() != 1 {
		t.Fatalf("peek removed the element")
	}
}
