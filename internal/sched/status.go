package sched

import (
	"time"

	"github.com/mxxx222/TennisBot-sub005/internal/ratelimit"
	"github.com/mxxx222/TennisBot-sub005/internal/store"
)

// recentWindow is how many ring results feed the per-job statistics.
const recentWindow = 20

// PerformanceStats are the cumulative global counters.
type PerformanceStats struct {
	TotalRequests      uint64  `json:"total_requests"`
	SuccessfulRequests uint64  `json:"successful_requests"`
	FailedRequests     uint64  `json:"failed_requests"`
	AvgLatencyMS       float64 `json:"avg_latency_ms"`
	AvgQuality         float64 `json:"avg_quality"`
}

// Status is the operator-facing snapshot.
type Status struct {
	State  string `json:"state"`
	Paused bool   `json:"paused"`

	JobsTotal   int `json:"jobs_total"`
	JobsEnabled int `json:"jobs_enabled"`
	InFlight    int `json:"in_flight"`

	Performance   PerformanceStats        `json:"performance"`
	RecentResults []store.ExecutionResult `json:"recent_results"`
	RateLimits    []ratelimit.SourceState `json:"rate_limits"`
}

// JobStats aggregates one job's recent executions.
type JobStats struct {
	Job store.Job `json:"job_info"`

	InFlight          bool      `json:"in_flight"`
	RecentRuns        int       `json:"recent_runs"`
	RecentSuccessRate float64   `json:"recent_success_rate"`
	AvgLatencyMS      float64   `json:"avg_latency_ms"`
	AvgQuality        float64   `json:"avg_quality"`
	LastErrorKind     string    `json:"last_error_kind,omitempty"`
	LastStartedAt     time.Time `json:"last_started_at,omitzero"`
}

// Status reports the scheduler state, job counts, global performance and a
// slice of recent activity.
func (s *Service) Status() Status {
	s.mu.Lock()
	st := Status{
		State:    s.state.String(),
		Paused:   s.paused,
		InFlight: len(s.inflight),
		Performance: PerformanceStats{
			TotalRequests:      s.perf.total,
			SuccessfulRequests: s.perf.successful,
			FailedRequests:     s.perf.failed,
			AvgLatencyMS:       s.perf.avgLatencyMS,
			AvgQuality:         s.perf.avgQuality,
		},
	}
	s.mu.Unlock()

	st.JobsTotal, st.JobsEnabled = s.store.JobCounts()
	st.RecentResults = s.store.RecentResults("", recentWindow)
	if s.limiter != nil {
		st.RateLimits = s.limiter.Snapshot()
	}
	return st
}

// JobStatistics returns per-job recent success rate, latency and quality,
// keyed by job id.
func (s *Service) JobStatistics() map[string]JobStats {
	jobs := s.store.List()

	s.mu.Lock()
	inflight := make(map[string]struct{}, len(s.inflight))
	for id := range s.inflight {
		inflight[id] = struct{}{}
	}
	s.mu.Unlock()

	out := make(map[string]JobStats, len(jobs))
	for _, j := range jobs {
		stats := JobStats{Job: j}
		_, stats.InFlight = inflight[j.ID]

		recent := s.store.RecentResults(j.ID, recentWindow)
		stats.RecentRuns = len(recent)
		if len(recent) > 0 {
			stats.LastStartedAt = recent[0].StartedAt
			var succ, latency, quality, qualityRuns float64
			for _, r := range recent {
				latency += float64(r.Duration.Milliseconds())
				if r.Success {
					succ++
					quality += float64(r.QualityScore)
					qualityRuns++
				} else if stats.LastErrorKind == "" {
					// recent is newest-first, so the first failure seen is the latest.
					stats.LastErrorKind = r.ErrorKind
				}
			}
			stats.RecentSuccessRate = succ / float64(len(recent))
			stats.AvgLatencyMS = latency / float64(len(recent))
			if qualityRuns > 0 {
				stats.AvgQuality = quality / qualityRuns
			}
		}
		out[j.ID] = stats
	}
	return out
}
