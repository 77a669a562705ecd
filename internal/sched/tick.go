package sched

import (
	"context"
	"sort"
	"time"

	"github.com/mxxx222/TennisBot-sub005/internal/eventbus"
	"github.com/mxxx222/TennisBot-sub005/internal/store"
	"github.com/mxxx222/TennisBot-sub005/pkg/logx"
)

// loop is the coordinating goroutine. It only ever suspends in the select
// below; dispatch itself never blocks.
func (s *Service) loop(ctx context.Context, stopCh <-chan struct{}) error {
	// First tick immediately so restored jobs don't wait a full interval.
	s.tick(s.now())

	for {
		s.mu.Lock()
		interval := s.cfg.TickInterval
		s.mu.Unlock()

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-stopCh:
			timer.Stop()
			return nil
		case <-s.kick:
			timer.Stop()
			s.tick(s.now())
		case <-timer.C:
			s.tick(s.now())
		}
	}
}

// tick runs one admission round: eligible jobs, ordered by priority then
// earliest due, admitted up to the free concurrency budget and the per-source
// rate limits. Returns the number of dispatched jobs.
func (s *Service) tick(now time.Time) int {
	s.mu.Lock()
	if s.paused || s.state != StateRunning {
		s.mu.Unlock()
		return 0
	}
	free := s.cfg.MaxConcurrent - len(s.inflight)
	s.mu.Unlock()
	if free <= 0 {
		return 0
	}

	candidates := s.store.ListEligible(now)
	if len(candidates) == 0 {
		return 0
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		return candidates[i].NextRun.Before(candidates[j].NextRun)
	})

	dispatched := 0
	for _, j := range candidates {
		if dispatched >= free {
			break
		}

		s.mu.Lock()
		if _, busy := s.inflight[j.ID]; busy {
			s.mu.Unlock()
			continue
		}
		s.inflight[j.ID] = struct{}{}
		s.mu.Unlock()

		if !s.limiter.Allow(j.Source) {
			// Denied: un-mark immediately. The job stays eligible and is
			// retried next tick without consuming a concurrency slot.
			// No execution result is recorded for an admission denial.
			s.mu.Lock()
			delete(s.inflight, j.ID)
			s.mu.Unlock()
			s.log.Debug("dispatch deferred by rate limit", logx.String("job", j.ID), logx.String("source", j.Source))
			s.publish(eventbus.EventJobDeferred, now, j.ID)
			continue
		}

		dispatched++
		s.inflightWG.Add(1)
		go s.runJob(j)
		s.publish(eventbus.EventJobDispatched, now, j.ID)
		s.log.Debug("job dispatched", logx.String("job", j.ID), logx.Int("priority", j.Priority))
	}
	return dispatched
}

// runJob executes one dispatched job and applies its result. Runs outside the
// loop goroutine; the Executor converts panics into failed results, so this
// goroutine cannot die mid-flight and leak its in-flight slot.
func (s *Service) runJob(j store.Job) {
	defer s.inflightWG.Done()

	ctx := context.Background()
	s.mu.Lock()
	timeout := s.cfg.ExecutionTimeout
	s.mu.Unlock()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res := s.exec.Run(ctx, j)
	s.onResult(j, res)
}

// onResult is the completion path: metrics/persistence first, then global
// counters, then the in-flight slot is released. Serialized against the loop
// and against other completions by s.mu on each mutation.
func (s *Service) onResult(j store.Job, res store.ExecutionResult) {
	updated := s.metrics.OnResult(j, res)

	s.mu.Lock()
	s.perf.total++
	n := float64(s.perf.total)
	s.perf.avgLatencyMS += (float64(res.Duration.Milliseconds()) - s.perf.avgLatencyMS) / n
	if res.Success {
		s.perf.successful++
		s.perf.qualityRuns++
		q := float64(s.perf.qualityRuns)
		s.perf.avgQuality += (float64(res.QualityScore) - s.perf.avgQuality) / q
	} else {
		s.perf.failed++
	}
	delete(s.inflight, j.ID)
	s.mu.Unlock()

	if res.Success {
		s.publish(eventbus.EventJobCompleted, res.StartedAt.Add(res.Duration), res)
		s.log.Debug("job completed",
			logx.String("job", j.ID),
			logx.Duration("dur", res.Duration),
			logx.Int("records", res.OutputCount),
			logx.Int("quality", res.QualityScore),
			logx.Time("next_run", updated.NextRun))
	} else {
		s.publish(eventbus.EventJobFailed, res.StartedAt.Add(res.Duration), res)
		s.log.Warn("job failed",
			logx.String("job", j.ID),
			logx.String("kind", res.ErrorKind),
			logx.String("err", res.Error),
			logx.Duration("dur", res.Duration),
			logx.Time("next_run", updated.NextRun))
	}
	s.wake()
}

func (s *Service) publish(eventType string, at time.Time, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: eventType, Time: at, Data: data})
}

// perfFlusher periodically persists the aggregate counters.
func (s *Service) perfFlusher(ctx context.Context, stopCh <-chan struct{}, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.flushPerfSnapshot()
		}
	}
}

func (s *Service) flushPerfSnapshot() {
	s.mu.Lock()
	p := s.perf
	s.mu.Unlock()

	at := s.now()
	for _, m := range []struct {
		name  string
		value float64
	}{
		{"total_requests", float64(p.total)},
		{"successful_requests", float64(p.successful)},
		{"failed_requests", float64(p.failed)},
		{"avg_latency_ms", p.avgLatencyMS},
		{"avg_quality", p.avgQuality},
	} {
		if err := s.store.SavePerfSnapshot(store.PerfSnapshot{MetricName: m.name, MetricValue: m.value, Timestamp: at}); err != nil {
			s.log.Warn("perf snapshot not persisted", logx.String("metric", m.name), logx.Err(err))
			return
		}
	}
}
