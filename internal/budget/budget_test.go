package budget

import (
	"testing"
	"time"
)

// fixedNow returns a Budget whose clock the test controls.
func fixedNow(cfg Config) (*Budget, *time.Time) {
	b := New(cfg)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.lastReset = now
	cur := now
	b.now = func() time.Time { return cur }
	return b, &cur
}

func TestConcurrencyCap(t *testing.T) {
	t.Parallel()
	b, _ := fixedNow(Config{MaxConcurrent: 2, MaxCostPerWindow: 1000, MaxCallsPerWindow: 100})

	if !b.TryAllocate(10, 1) || !b.TryAllocate(10, 1) {
		t.Fatal("expected first two allocations to succeed")
	}
	if b.TryAllocate(10, 1) {
		t.Fatal("third allocation should be rejected by concurrency cap")
	}
	if got := b.Usage().Active; got != 2 {
		t.Fatalf("active = %d, want 2", got)
	}

	b.Release()
	if !b.TryAllocate(10, 1) {
		t.Fatal("allocation after release should succeed")
	}
}

func TestReleaseFloorsAtZero(t *testing.T) {
	t.Parallel()
	b, _ := fixedNow(Config{})
	b.Release()
	b.Release()
	if got := b.Usage().Active; got != 0 {
		t.Fatalf("active = %d, want 0", got)
	}
}

func TestCostAndCallQuotas(t *testing.T) {
	t.Parallel()
	b, _ := fixedNow(Config{MaxCostPerWindow: 100, MaxCallsPerWindow: 2, MaxConcurrent: 10})

	if !b.TryAllocate(60, 1) {
		t.Fatal("first allocation should fit")
	}
	if b.TryAllocate(50, 1) {
		t.Fatal("allocation exceeding cost quota should fail")
	}
	if !b.TryAllocate(40, 1) {
		t.Fatal("allocation at exact cost quota should fit")
	}
	if b.TryAllocate(0, 1) {
		t.Fatal("allocation exceeding call quota should fail")
	}
}

func TestWindowResetExactlyOnce(t *testing.T) {
	t.Parallel()
	b, now := fixedNow(Config{MaxCostPerWindow: 100, MaxCallsPerWindow: 10, MaxConcurrent: 10, Window: time.Minute})

	if !b.TryAllocate(100, 1) {
		t.Fatal("allocation should fit")
	}
	if b.CanAllocate(1, 1) {
		t.Fatal("window is exhausted; CanAllocate should report false")
	}

	// Ticks short of the window must not reset.
	*now = now.Add(59 * time.Second)
	if b.CanAllocate(1, 1) {
		t.Fatal("counters reset before the window elapsed")
	}

	*now = now.Add(2 * time.Second)
	if !b.CanAllocate(1, 1) {
		t.Fatal("counters should reset after the window elapsed")
	}
	u := b.Usage()
	if u.CostUsed != 0 || u.CallsUsed != 0 {
		t.Fatalf("windowed counters = (%d,%d), want (0,0)", u.CostUsed, u.CallsUsed)
	}

	// The reset must not touch the active count.
	if u.Active != 1 {
		t.Fatalf("active = %d, want 1 (reset must not release slots)", u.Active)
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	b := New(Config{})
	if b.MaxConcurrent() != 3 {
		t.Fatalf("default MaxConcurrent = %d, want 3", b.MaxConcurrent())
	}
}
