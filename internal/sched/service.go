package sched

import (
	"context"
	"sync"
	"time"

	"github.com/mxxx222/TennisBot-sub005/internal/collect"
	"github.com/mxxx222/TennisBot-sub005/internal/eventbus"
	"github.com/mxxx222/TennisBot-sub005/internal/ratelimit"
	rtsup "github.com/mxxx222/TennisBot-sub005/internal/runtime/supervisor"
	"github.com/mxxx222/TennisBot-sub005/internal/store"
	"github.com/mxxx222/TennisBot-sub005/pkg/logx"
)

// Config controls the scheduling loop.
//
// ExecutionTimeout bounds one collector call; 0 (the default) preserves the
// reference behavior of no per-execution timeout, which means a hung
// collector holds its slot indefinitely.
type Config struct {
	TickInterval      time.Duration
	MaxConcurrent     int
	ExecutionTimeout  time.Duration
	PerfFlushInterval time.Duration // 0 disables periodic performance_snapshots
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 30 * time.Second
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 5
	}
	if c.PerfFlushInterval < 0 {
		c.PerfFlushInterval = 0
	}
	return c
}

// State is the global scheduler state. Stopped is terminal.
type State int

const (
	StateIdle State = iota // constructed, not started
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// perfCounters are the global aggregates persisted to performance_snapshots.
// Guarded by Service.mu, same lock as the in-flight set.
type perfCounters struct {
	total      uint64
	successful uint64
	failed     uint64

	avgLatencyMS float64 // running mean over all completions
	avgQuality   float64 // running mean over successful completions
	qualityRuns  uint64
}

// Service is the scheduling control loop: one coordinating goroutine plus up
// to MaxConcurrent concurrently executing jobs.
//
// The loop is the only dispatcher; completions mutate the in-flight set and
// perf counters under one mutex. The loop never blocks on slot availability:
// when slots are full it dispatches nothing and tries again next tick.
type Service struct {
	log logx.Logger
	bus eventbus.Bus

	store   *store.Store
	limiter *ratelimit.Limiter
	exec    *Executor
	metrics *Metrics

	mu       sync.Mutex
	cfg      Config
	state    State
	paused   bool
	inflight map[string]struct{}
	perf     perfCounters

	inflightWG sync.WaitGroup // dispatched executions, for drain on Stop
	stopCh     chan struct{}
	kick       chan struct{}
	sup        *rtsup.Supervisor

	now func() time.Time // injectable for tests
}

// New wires the scheduler from its dependencies. Nothing starts until
// Start().
func New(cfg Config, st *store.Store, limiter *ratelimit.Limiter, registry *collect.Registry, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:      log,
		bus:      bus,
		store:    st,
		limiter:  limiter,
		exec:     NewExecutor(registry, log),
		metrics:  NewMetrics(st, log),
		cfg:      cfg.withDefaults(),
		inflight: map[string]struct{}{},
		kick:     make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Apply swaps the hot-reloadable knobs (tick interval changes take effect on
// the next loop iteration; concurrency changes on the next tick).
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
	s.wake()
}

// Start launches the tick loop and the perf snapshot flusher.
func (s *Service) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.state == StateRunning {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.state = StateRunning
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	cfg := s.cfg
	s.mu.Unlock()

	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "sched"))),
		// Loop failures self-heal via restart; they should not kill the app.
		rtsup.WithCancelOnError(false),
	)
	s.sup.GoRestart("loop", func(c context.Context) error {
		return s.loop(c, stopCh)
	})
	if cfg.PerfFlushInterval > 0 {
		s.sup.GoRestart("perf.flush", func(c context.Context) error {
			return s.perfFlusher(c, stopCh, cfg.PerfFlushInterval)
		})
	}

	s.log.Info("scheduler started",
		logx.Duration("tick", cfg.TickInterval),
		logx.Int("max_concurrent", cfg.MaxConcurrent),
		logx.Duration("execution_timeout", cfg.ExecutionTimeout))
	return nil
}

// Pause stops new dispatch. In-flight executions finish normally.
func (s *Service) Pause() {
	s.mu.Lock()
	was := s.paused
	s.paused = true
	s.mu.Unlock()
	if !was {
		s.log.Info("scheduler paused")
	}
}

// Resume re-enables dispatch and wakes the loop.
func (s *Service) Resume() {
	s.mu.Lock()
	was := s.paused
	s.paused = false
	s.mu.Unlock()
	if was {
		s.log.Info("scheduler resumed")
		s.wake()
	}
}

// Stop halts dispatch, drains in-flight executions, flushes a final perf
// snapshot, and closes the store. Terminal; a stopped scheduler cannot be
// restarted.
func (s *Service) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopped
	stopCh := s.stopCh
	s.mu.Unlock()

	start := time.Now()
	close(stopCh)
	if s.sup != nil {
		s.sup.Cancel()
		_ = s.sup.Wait(ctx)
	}

	// Drain: wait for every dispatched execution to complete. No forced
	// interruption; a hung collector delays shutdown.
	drained := make(chan struct{})
	go func() {
		s.inflightWG.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		s.log.Warn("stop timed out waiting for in-flight jobs", logx.Err(ctx.Err()))
		return ctx.Err()
	}

	s.flushPerfSnapshot()
	if err := s.store.Close(); err != nil {
		s.log.Warn("store close failed", logx.Err(err))
	}
	s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
	return nil
}

func (s *Service) wake() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// ---- Control API: job management ----

// AddJob validates and persists a new job. An unknown category is accepted
// (collectors may register later) but logged; at dispatch time it would fail
// as a validation error.
func (s *Service) AddJob(j store.Job) error {
	if _, ok := s.exec.registry.Resolve(j.Category); !ok {
		s.log.Warn("job category has no registered collector", logx.String("job", j.ID), logx.String("category", j.Category))
	}
	if err := s.store.AddJob(j); err != nil {
		if store.IsPersistence(err) {
			// Job is live in memory; only durability suffered.
			s.log.Warn("job added but not persisted", logx.String("job", j.ID), logx.Err(err))
			return nil
		}
		return err
	}
	s.log.Info("job added",
		logx.String("job", j.ID),
		logx.String("source", j.Source),
		logx.String("category", j.Category),
		logx.String("cadence", j.Cadence.String()),
		logx.Int("priority", j.Priority))
	s.wake()
	return nil
}

func (s *Service) RemoveJob(id string) error {
	err := s.store.RemoveJob(id)
	if store.IsPersistence(err) {
		s.log.Warn("job removed but delete not persisted", logx.String("job", id), logx.Err(err))
		return nil
	}
	if err == nil {
		s.log.Info("job removed", logx.String("job", id))
	}
	return err
}

func (s *Service) Enable(id string) error  { return s.setEnabled(id, true) }
func (s *Service) Disable(id string) error { return s.setEnabled(id, false) }

func (s *Service) setEnabled(id string, enabled bool) error {
	err := s.store.SetEnabled(id, enabled)
	if store.IsPersistence(err) {
		s.log.Warn("enable flag not persisted", logx.String("job", id), logx.Err(err))
		err = nil
	}
	if err == nil {
		s.log.Info("job toggled", logx.String("job", id), logx.Bool("enabled", enabled))
		if enabled {
			s.wake()
		}
	}
	return err
}
