package budget

import (
	"sync"
	"time"
)

// Config bounds resource consumption over a rolling window.
type Config struct {
	MaxCostPerWindow  int
	MaxCallsPerWindow int
	MaxConcurrent     int
	Window            time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxCostPerWindow <= 0 {
		c.MaxCostPerWindow = 10000
	}
	if c.MaxCallsPerWindow <= 0 {
		c.MaxCallsPerWindow = 20
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 3
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	return c
}

// Usage is a point-in-time view of consumption.
type Usage struct {
	CostUsed  int       `json:"cost_used"`
	CallsUsed int       `json:"calls_used"`
	Active    int       `json:"active_tasks"`
	LastReset time.Time `json:"last_reset"`
}

// Budget is a rolling-window rate limiter over three dimensions: a cost
// quota, a call quota, and a concurrency cap.
//
// Cost and call counters reset once per elapsed window. The active count is
// a separate dimension gated only by explicit Release, never by time.
//
// All methods hold the internal mutex, so check+allocate is race-free via
// TryAllocate even though Go schedules goroutines preemptively.
type Budget struct {
	mu  sync.Mutex
	cfg Config

	costUsed  int
	callsUsed int
	active    int
	lastReset time.Time

	// now is swappable for tests.
	now func() time.Time
}

func New(cfg Config) *Budget {
	return &Budget{
		cfg:       cfg.withDefaults(),
		lastReset: time.Now(),
		now:       time.Now,
	}
}

// resetLocked clears the windowed counters if the window has elapsed.
// It never touches the active count.
func (b *Budget) resetLocked() {
	now := b.now()
	if now.Sub(b.lastReset) >= b.cfg.Window {
		b.costUsed = 0
		b.callsUsed = 0
		b.lastReset = now
	}
}

func (b *Budget) canAllocateLocked(cost, calls int) bool {
	b.resetLocked()
	return b.costUsed+cost <= b.cfg.MaxCostPerWindow &&
		b.callsUsed+calls <= b.cfg.MaxCallsPerWindow &&
		b.active < b.cfg.MaxConcurrent
}

// CanAllocate reports whether cost units and calls fit in the current
// window and a concurrency slot is free. It resets the window first.
func (b *Budget) CanAllocate(cost, calls int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.canAllocateLocked(cost, calls)
}

// TryAllocate atomically checks and, on success, consumes cost, calls and
// one concurrency slot. Admission must use this rather than a separate
// CanAllocate+Allocate pair.
func (b *Budget) TryAllocate(cost, calls int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.canAllocateLocked(cost, calls) {
		return false
	}
	b.costUsed += cost
	b.callsUsed += calls
	b.active++
	return true
}

// Release frees one concurrency slot, floored at zero. It must run exactly
// once per successful TryAllocate, on every exit path of the task.
func (b *Budget) Release() {
	b.mu.Lock()
	if b.active > 0 {
		b.active--
	}
	b.mu.Unlock()
}

// Usage returns current consumption. Read-only.
func (b *Budget) Usage() Usage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Usage{
		CostUsed:  b.costUsed,
		CallsUsed: b.callsUsed,
		Active:    b.active,
		LastReset: b.lastReset,
	}
}

// MaxConcurrent exposes the effective concurrency cap.
func (b *Budget) MaxConcurrent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.MaxConcurrent
}
