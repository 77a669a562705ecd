package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mxxx222/TennisBot-sub005/pkg/logx"
)

func memStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func testJob(id string) Job {
	return Job{
		ID:                id,
		Source:            "flashscore",
		Category:          "tennis.odds",
		Priority:          10,
		Cadence:           MustCadence("hourly"),
		TargetOutputCount: 50,
		Enabled:           true,
		NextRun:           time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAddJobValidation(t *testing.T) {
	t.Parallel()
	s := memStore(t)

	j := testJob("j1")
	j.ID = ""
	err := s.AddJob(j)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	if err := s.AddJob(testJob("j1")); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := s.AddJob(testJob("j1")); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestListEligible(t *testing.T) {
	t.Parallel()
	s := memStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	due := testJob("due")
	due.NextRun = now.Add(-time.Minute)
	notDue := testJob("not-due")
	notDue.NextRun = now.Add(time.Minute)
	disabled := testJob("disabled")
	disabled.NextRun = now.Add(-time.Minute)
	disabled.Enabled = false

	for _, j := range []Job{due, notDue, disabled} {
		if err := s.AddJob(j); err != nil {
			t.Fatalf("AddJob(%s): %v", j.ID, err)
		}
	}

	got := s.ListEligible(now)
	if len(got) != 1 || got[0].ID != "due" {
		t.Fatalf("ListEligible = %+v, want exactly job 'due'", got)
	}
}

func TestUpdateKeepsNextRunMonotonic(t *testing.T) {
	t.Parallel()
	s := memStore(t)

	j := testJob("j1")
	if err := s.AddJob(j); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	j.NextRun = j.NextRun.Add(time.Hour)
	if err := s.Update(j); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// An update that would move next_run backwards keeps the later time.
	back := j
	back.NextRun = j.NextRun.Add(-30 * time.Minute)
	if err := s.Update(back); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := s.Get("j1")
	if !got.NextRun.Equal(j.NextRun) {
		t.Fatalf("NextRun = %v, want %v (monotonic)", got.NextRun, j.NextRun)
	}
}

func TestRemoveJobHardDelete(t *testing.T) {
	t.Parallel()
	s := memStore(t)

	if err := s.AddJob(testJob("j1")); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := s.RemoveJob("j1"); err != nil {
		t.Fatalf("RemoveJob: %v", err)
	}
	if _, ok := s.Get("j1"); ok {
		t.Fatal("job still present after RemoveJob")
	}
	if err := s.RemoveJob("j1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecentResultsRing(t *testing.T) {
	t.Parallel()
	s := memStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		jobID := "a"
		if i%2 == 1 {
			jobID = "b"
		}
		_ = s.AppendResult(ExecutionResult{
			JobID:     jobID,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Success:   true,
		})
	}

	all := s.RecentResults("", 10)
	if len(all) != 5 {
		t.Fatalf("expected 5 results, got %d", len(all))
	}
	// Newest first.
	if !all[0].StartedAt.After(all[1].StartedAt) {
		t.Fatalf("results not newest-first: %v then %v", all[0].StartedAt, all[1].StartedAt)
	}

	onlyA := s.RecentResults("a", 10)
	if len(onlyA) != 3 {
		t.Fatalf("expected 3 results for job a, got %d", len(onlyA))
	}
	for _, r := range onlyA {
		if r.JobID != "a" {
			t.Fatalf("unexpected job id %q", r.JobID)
		}
	}
}

func TestRingBounded(t *testing.T) {
	t.Parallel()
	r := newResultRing(3)
	for i := 0; i < 5; i++ {
		r.append(ExecutionResult{OutputCount: i})
	}
	if r.len() != 3 {
		t.Fatalf("ring len = %d, want 3", r.len())
	}
	got := r.recent("", 3)
	if got[0].OutputCount != 4 || got[2].OutputCount != 2 {
		t.Fatalf("unexpected ring contents: %+v", got)
	}
}

func TestSQLitePersistenceRoundTrip(t *testing.T) {
	t.Parallel()
	cfg := Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "bot.db")}

	s, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	j := testJob("persist-me")
	j.LastRun = time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	j.Params = map[string]string{"tour": "atp"}
	if err := s.AddJob(j); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := s.AppendResult(ExecutionResult{
		JobID: "persist-me", Source: j.Source, Category: j.Category,
		StartedAt: j.LastRun, Duration: 1200 * time.Millisecond,
		Success: true, OutputCount: 42, QualityScore: 88,
	}); err != nil {
		t.Fatalf("AppendResult: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Re-open: jobs come back, history is queryable.
	s2, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	defer s2.Close()

	got, ok := s2.Get("persist-me")
	if !ok {
		t.Fatal("job not restored")
	}
	if got.Source != j.Source || got.Category != j.Category || got.Priority != j.Priority {
		t.Fatalf("restored job mismatch: %+v", got)
	}
	if got.Cadence.String() != "hourly" {
		t.Fatalf("cadence = %q, want hourly", got.Cadence.String())
	}
	if got.Params["tour"] != "atp" {
		t.Fatalf("params not restored: %+v", got.Params)
	}
	if !got.LastRun.Equal(j.LastRun) || !got.NextRun.Equal(j.NextRun) {
		t.Fatalf("timestamps not restored: last=%v next=%v", got.LastRun, got.NextRun)
	}

	hist, err := s2.Results(context.Background(), "persist-me", 10)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(hist) != 1 || hist[0].OutputCount != 42 || hist[0].QualityScore != 88 {
		t.Fatalf("history mismatch: %+v", hist)
	}
	if hist[0].Duration != 1200*time.Millisecond {
		t.Fatalf("duration = %v, want 1.2s", hist[0].Duration)
	}
}
