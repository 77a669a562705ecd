// Package ratelimit provides per-source admission control for outbound
// collection requests.
//
// The limiter is a fixed-window counter: each source gets a budget of
// requests per window (60s). Allow is a pure admission check; it never
// blocks or sleeps. Callers that are denied skip the dispatch and retry
// on a later scheduler tick.
package ratelimit

import (
	"strings"
	"sync"
	"time"
)

const window = 60 * time.Second

// Config controls per-source request budgets.
//
// DefaultCapacity applies to any source without a specific entry.
type Config struct {
	DefaultCapacity int
	PerSource       map[string]int
}

func (c Config) withDefaults() Config {
	if c.DefaultCapacity <= 0 {
		c.DefaultCapacity = 30
	}
	return c
}

type bucket struct {
	count   int
	resetAt time.Time
}

type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*bucket

	now func() time.Time // injectable for tests
}

func New(cfg Config) *Limiter {
	return NewWithClock(cfg, time.Now)
}

// NewWithClock creates a limiter with an injectable clock (for testing).
func NewWithClock(cfg Config, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		cfg:     cfg.withDefaults(),
		buckets: map[string]*bucket{},
		now:     now,
	}
}

// Apply swaps capacities at runtime (config hot reload).
// Window counters already in progress are kept.
func (l *Limiter) Apply(cfg Config) {
	l.mu.Lock()
	l.cfg = cfg.withDefaults()
	l.mu.Unlock()
}

// Allow reports whether one more request to source may be dispatched now,
// and counts it if so. Denials have no side effect.
func (l *Limiter) Allow(source string) bool {
	source = strings.TrimSpace(source)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.buckets[source]
	if b == nil {
		b = &bucket{resetAt: now}
		l.buckets[source] = b
	}
	if now.Sub(b.resetAt) >= window {
		b.count = 0
		b.resetAt = now
	}

	capacity := l.cfg.DefaultCapacity
	if v, ok := l.cfg.PerSource[source]; ok && v > 0 {
		capacity = v
	}
	if b.count >= capacity {
		return false
	}
	b.count++
	return true
}

// SourceState is a point-in-time view of one source's window, for diagnostics.
type SourceState struct {
	Source    string    `json:"source"`
	Count     int       `json:"count"`
	Capacity  int       `json:"capacity"`
	ResetAt   time.Time `json:"reset_at"`
	Remaining int       `json:"remaining"`
}

// Snapshot returns the current window state of all sources seen so far.
func (l *Limiter) Snapshot() []SourceState {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	out := make([]SourceState, 0, len(l.buckets))
	for src, b := range l.buckets {
		capacity := l.cfg.DefaultCapacity
		if v, ok := l.cfg.PerSource[src]; ok && v > 0 {
			capacity = v
		}
		count := b.count
		if now.Sub(b.resetAt) >= window {
			count = 0
		}
		rem := capacity - count
		if rem < 0 {
			rem = 0
		}
		out = append(out, SourceState{
			Source:    src,
			Count:     count,
			Capacity:  capacity,
			ResetAt:   b.resetAt.Add(window),
			Remaining: rem,
		})
	}
	return out
}
