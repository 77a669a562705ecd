package store

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound  = errors.New("job not found")
	ErrDuplicate = errors.New("job id already exists")
)

// PersistenceError marks a durable-store write failure.
//
// The in-memory job table stays authoritative for the running process when a
// write fails, so callers log these and keep scheduling. The accepted
// trade-off is possible data loss on crash.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistence reports whether err is (or wraps) a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// Config configures the durable backend.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "" or "none": no durability (in-memory only; useful for tests)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Job is a recurring collection task. The store owns the record; everything
// else references it by ID.
type Job struct {
	ID       string `json:"id"`
	Source   string `json:"source"`   // rate-limit bucket, e.g. "flashscore"
	Category string `json:"category"` // collector selection, e.g. "tennis.odds"
	Priority int    `json:"priority"` // lower value = served first

	Cadence Cadence           `json:"cadence"`
	Params  map[string]string `json:"params,omitempty"`

	LastRun time.Time `json:"last_run,omitzero"` // zero = never ran
	NextRun time.Time `json:"next_run"`

	TargetOutputCount int     `json:"target_output_count"`
	SuccessRate       float64 `json:"success_rate"`
	TotalRuns         int64   `json:"total_runs"`
	Enabled           bool    `json:"enabled"`
}

// ExecutionResult records one execution attempt. Append-only, never mutated.
type ExecutionResult struct {
	JobID     string        `json:"job_id"`
	Source    string        `json:"source"`
	Category  string        `json:"category"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Error     string        `json:"error,omitempty"` // underlying message; not persisted

	OutputCount  int `json:"output_count"`
	QualityScore int `json:"quality_score"` // 0-100
}

// PerfSnapshot is one persisted aggregate counter sample.
type PerfSnapshot struct {
	MetricName  string    `json:"metric_name"`
	MetricValue float64   `json:"metric_value"`
	Timestamp   time.Time `json:"timestamp"`
}
