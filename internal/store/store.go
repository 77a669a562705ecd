package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mxxx222/TennisBot-sub005/pkg/logx"
)

const recentResultsCap = 1000

// Backend is the durable side of the store. Implementations must tolerate
// being called from a single writer at a time; the Store serializes calls.
type Backend interface {
	LoadJobs(ctx context.Context) ([]Job, error)
	SaveJob(ctx context.Context, j Job) error
	DeleteJob(ctx context.Context, id string) error
	AppendResult(ctx context.Context, r ExecutionResult) error
	Results(ctx context.Context, jobID string, limit int) ([]ExecutionResult, error)
	SavePerfSnapshot(ctx context.Context, s PerfSnapshot) error
	Close() error
}

// Store is the single source of truth for job definitions and execution
// history.
//
// The in-memory table is authoritative for the running process; the backend
// is write-through. Backend write failures come back as *PersistenceError and
// do not roll back the in-memory change.
type Store struct {
	mu   sync.Mutex
	log  logx.Logger
	be   Backend // nil when durability is disabled
	jobs map[string]*Job
	ring *resultRing
}

// Open initializes the store and loads persisted jobs.
// A backend open/load failure here is fatal to the caller; everything later
// degrades gracefully.
func Open(cfg Config, log logx.Logger) (*Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Store{
		log:  log,
		jobs: map[string]*Job{},
		ring: newResultRing(recentResultsCap),
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return s, nil
	}

	be, err := openSQLite(cfg, log)
	if err != nil {
		return nil, err
	}
	s.be = be

	jobs, err := be.LoadJobs(context.Background())
	if err != nil {
		_ = be.Close()
		return nil, err
	}
	for i := range jobs {
		j := jobs[i]
		s.jobs[j.ID] = &j
	}
	if len(jobs) > 0 {
		log.Info("jobs restored", logx.Int("count", len(jobs)))
	}
	return s, nil
}

// AddJob validates and inserts a new job, persisting it immediately.
// On a persistence failure the job is still added in memory and a
// *PersistenceError is returned for the caller to log.
func (s *Store) AddJob(j Job) error {
	if err := validateJob(&j); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[j.ID]; ok {
		return ErrDuplicate
	}
	cp := j
	s.jobs[j.ID] = &cp

	return s.persistJob(cp, "add job")
}

// RemoveJob hard-deletes a job definition. Execution history is kept.
func (s *Store) RemoveJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(s.jobs, id)

	if s.be == nil {
		return nil
	}
	if err := s.be.DeleteJob(context.Background(), id); err != nil {
		return &PersistenceError{Op: "delete job", Err: err}
	}
	return nil
}

func (s *Store) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Enabled == enabled {
		return nil
	}
	j.Enabled = enabled

	return s.persistJob(*j, "set enabled")
}

// Get returns a copy of the job.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// List returns copies of all jobs, ordered by ID for stable output.
func (s *Store) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// ListEligible returns enabled jobs whose next_run has passed.
// In-flight exclusion is the scheduler's concern, not the store's.
func (s *Store) ListEligible(now time.Time) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if !j.Enabled {
			continue
		}
		if j.NextRun.After(now) {
			continue
		}
		out = append(out, *j)
	}
	return out
}

// Update persists the scheduling-relevant fields of a job
// (last_run, next_run, success_rate, total_runs).
//
// next_run is monotonically non-decreasing across successive executions;
// an Update that would move it backwards keeps the later time.
func (s *Store) Update(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.jobs[j.ID]
	if !ok {
		return ErrNotFound
	}
	cur.LastRun = j.LastRun
	if j.NextRun.After(cur.NextRun) {
		cur.NextRun = j.NextRun
	}
	cur.SuccessRate = j.SuccessRate
	cur.TotalRuns = j.TotalRuns

	return s.persistJob(*cur, "update job")
}

// AppendResult records one execution attempt in the recent ring and the
// durable history.
func (s *Store) AppendResult(r ExecutionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ring.append(r)

	if s.be == nil {
		return nil
	}
	if err := s.be.AppendResult(context.Background(), r); err != nil {
		return &PersistenceError{Op: "append result", Err: err}
	}
	return nil
}

// RecentResults returns up to n recent results, newest first, from the
// in-memory ring. An empty jobID matches all jobs.
func (s *Store) RecentResults(jobID string, n int) []ExecutionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ring.recent(jobID, n)
}

// Results reads from the durable history, falling back to the ring when
// durability is disabled. Used by export.
func (s *Store) Results(ctx context.Context, jobID string, limit int) ([]ExecutionResult, error) {
	s.mu.Lock()
	be := s.be
	s.mu.Unlock()

	if be == nil {
		return s.RecentResults(jobID, limit), nil
	}
	out, err := be.Results(ctx, jobID, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "query results", Err: err}
	}
	return out, nil
}

func (s *Store) SavePerfSnapshot(snap PerfSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.be == nil {
		return nil
	}
	if err := s.be.SavePerfSnapshot(context.Background(), snap); err != nil {
		return &PersistenceError{Op: "save perf snapshot", Err: err}
	}
	return nil
}

// JobCounts reports totals for status output.
func (s *Store) JobCounts() (total, enabled int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total = len(s.jobs)
	for _, j := range s.jobs {
		if j.Enabled {
			enabled++
		}
	}
	return total, enabled
}

func (s *Store) Close() error {
	s.mu.Lock()
	be := s.be
	s.be = nil
	s.mu.Unlock()
	if be == nil {
		return nil
	}
	return be.Close()
}

// persistJob must be called with s.mu held.
func (s *Store) persistJob(j Job, op string) error {
	if s.be == nil {
		return nil
	}
	if err := s.be.SaveJob(context.Background(), j); err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}

func validateJob(j *Job) error {
	j.ID = strings.TrimSpace(j.ID)
	j.Source = strings.TrimSpace(j.Source)
	j.Category = strings.TrimSpace(j.Category)
	if j.ID == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}
	if j.Source == "" {
		return &ValidationError{Field: "source", Reason: "required"}
	}
	if j.Category == "" {
		return &ValidationError{Field: "category", Reason: "required"}
	}
	if j.TargetOutputCount < 0 {
		return &ValidationError{Field: "target_output_count", Reason: "must be >= 0"}
	}
	// A freshly added job is due immediately unless the caller scheduled it.
	if j.NextRun.IsZero() {
		j.NextRun = time.Now()
	}
	return nil
}

// ValidationError rejects a malformed job definition at the control API.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return "invalid job: " + e.Field + " " + e.Reason }
