package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestAllowWindowBudget(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := NewWithClock(Config{DefaultCapacity: 10, PerSource: map[string]int{"flashscore": 2}}, clk.Now)

	got := []bool{l.Allow("flashscore"), l.Allow("flashscore"), l.Allow("flashscore")}
	want := []bool{true, true, false}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Allow call %d = %v, want %v", i+1, got[i], want[i])
		}
	}

	// A denied call must not consume budget: still denied, still counted at 2.
	if l.Allow("flashscore") {
		t.Fatal("expected deny while window is exhausted")
	}

	clk.Advance(61 * time.Second)
	if !l.Allow("flashscore") {
		t.Fatal("expected allow after window reset")
	}
}

func TestAllowDefaultCapacity(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{t: time.Now()}
	l := NewWithClock(Config{DefaultCapacity: 1}, clk.Now)

	if !l.Allow("unknown-source") {
		t.Fatal("first call should be admitted under default capacity")
	}
	if l.Allow("unknown-source") {
		t.Fatal("second call should be denied under default capacity 1")
	}
	// Independent sources have independent windows.
	if !l.Allow("other-source") {
		t.Fatal("other source should have its own budget")
	}
}

func TestApplySwapsCapacity(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{t: time.Now()}
	l := NewWithClock(Config{DefaultCapacity: 1}, clk.Now)

	if !l.Allow("x") {
		t.Fatal("expected allow")
	}
	if l.Allow("x") {
		t.Fatal("expected deny at capacity 1")
	}

	l.Apply(Config{DefaultCapacity: 5})
	if !l.Allow("x") {
		t.Fatal("expected allow after capacity raise; window counter is kept")
	}
}

func TestSnapshotRemaining(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{t: time.Now()}
	l := NewWithClock(Config{DefaultCapacity: 3}, clk.Now)

	l.Allow("a")
	l.Allow("a")

	snap := l.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 source in snapshot, got %d", len(snap))
	}
	if snap[0].Count != 2 || snap[0].Remaining != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap[0])
	}
}
