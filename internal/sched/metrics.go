package sched

import (
	"errors"
	"time"

	"github.com/mxxx222/TennisBot-sub005/internal/store"
	"github.com/mxxx222/TennisBot-sub005/pkg/logx"
)

// Metrics folds each execution result back into the job record: running-mean
// success rate, last_run, and the deterministic next_run from the job's
// cadence.
//
// Rescheduling is identical on success and failure. There is deliberately no
// failure backoff here: a job that keeps failing keeps its fixed cadence.
// Flagged for product sign-off rather than silently changed.
type Metrics struct {
	store *store.Store
	log   logx.Logger

	now func() time.Time // injectable for tests
}

func NewMetrics(st *store.Store, log logx.Logger) *Metrics {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Metrics{store: st, log: log, now: time.Now}
}

// OnResult applies one completed execution to the job and persists both the
// updated job and the result. Persistence failures are logged, not
// propagated: the in-memory table stays authoritative.
//
// Returns the updated job for callers that want the new schedule.
func (m *Metrics) OnResult(j store.Job, res store.ExecutionResult) store.Job {
	runs := j.TotalRuns
	success := 0.0
	if res.Success {
		success = 1.0
	}
	j.SuccessRate = (j.SuccessRate*float64(runs) + success) / float64(runs+1)
	j.TotalRuns = runs + 1
	j.LastRun = res.StartedAt
	j.NextRun = j.Cadence.Next(m.now())

	if err := m.store.Update(j); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			// Job was removed while in flight; nothing to update.
			m.log.Debug("job gone before result applied", logx.String("job", j.ID))
		case store.IsPersistence(err):
			m.log.Warn("job update not persisted", logx.String("job", j.ID), logx.Err(err))
		default:
			m.log.Error("job update failed", logx.String("job", j.ID), logx.Err(err))
		}
	}
	if err := m.store.AppendResult(res); err != nil {
		m.log.Warn("result not persisted", logx.String("job", j.ID), logx.Err(err))
	}
	return j
}
