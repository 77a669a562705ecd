// Package collect defines the boundary to the actual data collectors.
//
// The scheduler core treats collectors as opaque: any non-nil error is a
// failure, any returned record slice is a success. Collectors are registered
// per category (e.g. "tennis.odds") and resolved by key, never by branching
// on category strings at execution time.
package collect

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Record is one collected row. Field completeness feeds the quality score;
// the core never interprets individual fields.
type Record map[string]string

// Collector turns one collection request into raw records.
// Implementations may do network I/O, parsing, etc. and may block for
// arbitrary durations.
type Collector interface {
	Collect(ctx context.Context, source string, params map[string]string) ([]Record, error)
}

// CollectorFunc adapts a function to the Collector interface.
type CollectorFunc func(ctx context.Context, source string, params map[string]string) ([]Record, error)

func (f CollectorFunc) Collect(ctx context.Context, source string, params map[string]string) ([]Record, error) {
	return f(ctx, source, params)
}

// Registry maps categories to collectors.
//
// Registration normally happens once at startup; Resolve is called per
// dispatch and is cheap.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Collector
}

func NewRegistry() *Registry {
	return &Registry{m: map[string]Collector{}}
}

// Register installs a collector for a category, replacing any previous one.
func (r *Registry) Register(category string, c Collector) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return fmt.Errorf("collector category required")
	}
	if c == nil {
		return fmt.Errorf("collector for %q is nil", category)
	}
	r.mu.Lock()
	r.m[category] = c
	r.mu.Unlock()
	return nil
}

func (r *Registry) Resolve(category string) (Collector, bool) {
	r.mu.RLock()
	c, ok := r.m[strings.TrimSpace(category)]
	r.mu.RUnlock()
	return c, ok
}

// Categories lists registered categories, sorted.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}
