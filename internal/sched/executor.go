package sched

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"time"

	"github.com/mxxx222/TennisBot-sub005/internal/collect"
	"github.com/mxxx222/TennisBot-sub005/internal/store"
	"github.com/mxxx222/TennisBot-sub005/pkg/logx"
)

// Quality scoring knobs. The score blends expected-vs-actual volume with
// field completeness sampled from the head of the result set.
const (
	qualityVolumeWeight       = 0.6
	qualityCompletenessWeight = 0.4
	qualitySampleSize         = 10
	completeFieldRatio        = 0.8
)

// Executor runs one job against its registered collector and turns the
// outcome into an ExecutionResult.
//
// It never retries: re-admission is cadence-driven and belongs to the
// scheduler. Collector panics become execution failures so one bad collector
// can't take down a worker.
type Executor struct {
	registry *collect.Registry
	log      logx.Logger
}

func NewExecutor(registry *collect.Registry, log logx.Logger) *Executor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Executor{registry: registry, log: log}
}

// Run executes the job synchronously and always returns a result; errors are
// folded into the result's ErrorKind/Error fields.
func (e *Executor) Run(ctx context.Context, j store.Job) store.ExecutionResult {
	started := time.Now()
	res := store.ExecutionResult{
		JobID:     j.ID,
		Source:    j.Source,
		Category:  j.Category,
		StartedAt: started,
	}

	c, ok := e.registry.Resolve(j.Category)
	if !ok {
		res.Duration = time.Since(started)
		res.ErrorKind = ErrorKindValidation
		res.Error = fmt.Sprintf("no collector registered for category %q", j.Category)
		return res
	}

	records, err := func() (recs []collect.Record, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				e.log.Error("collector panicked",
					logx.String("job", j.ID),
					logx.String("category", j.Category),
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())))
			}
		}()
		return c.Collect(ctx, j.Source, j.Params)
	}()
	res.Duration = time.Since(started)

	if err != nil {
		res.ErrorKind = ErrorKindExecution
		res.Error = err.Error()
		return res
	}

	res.Success = true
	res.OutputCount = len(records)
	res.QualityScore = qualityScore(len(records), j.TargetOutputCount, records)
	return res
}

// qualityScore blends volume (actual vs target output count, capped at 1.0)
// with completeness (share of sampled records having >=80% non-empty fields)
// into a 0-100 score. Reporting only; never a scheduling input.
func qualityScore(outputCount, target int, records []collect.Record) int {
	volume := 1.0
	if target > 0 {
		volume = math.Min(float64(outputCount)/float64(target), 1.0)
	} else if outputCount == 0 {
		volume = 0
	}

	sample := records
	if len(sample) > qualitySampleSize {
		sample = sample[:qualitySampleSize]
	}
	completeness := 0.0
	if len(sample) > 0 {
		complete := 0
		for _, rec := range sample {
			if recordComplete(rec) {
				complete++
			}
		}
		completeness = float64(complete) / float64(len(sample))
	}

	score := (qualityVolumeWeight*volume + qualityCompletenessWeight*completeness) * 100
	return int(math.Round(score))
}

func recordComplete(rec collect.Record) bool {
	if len(rec) == 0 {
		return false
	}
	nonEmpty := 0
	for _, v := range rec {
		if v != "" {
			nonEmpty++
		}
	}
	return float64(nonEmpty)/float64(len(rec)) >= completeFieldRatio
}
