package sched

import "container/heap"

// taskQueue is a min-heap over pending tasks.
//
// Ordering is a full three-way comparator (priority, scheduled time,
// insertion sequence) so the queue order is total and deterministic even
// when many tasks share a priority and timestamp.
type taskQueue struct {
	items []*task
}

var _ heap.Interface = (*taskQueue)(nil)

func (q *taskQueue) Len() int { return len(q.items) }

func (q *taskQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	if !a.scheduledAt.Equal(b.scheduledAt) {
		return a.scheduledAt.Before(b.scheduledAt)
	}
	return a.seq < b.seq
}

func (q *taskQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *taskQueue) Push(x any) { q.items = append(q.items, x.(*task)) }

func (q *taskQueue) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	return it
}

func (q *taskQueue) push(t *task) { heap.Push(q, t) }

func (q *taskQueue) pop() *task {
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(q).(*task)
}

// peek returns the minimal element without removing it.
func (q *taskQueue) peek() *task {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}
