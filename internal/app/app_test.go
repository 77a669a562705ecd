package app

import (
	"testing"
	"time"

	"github.com/mxxx222/TennisBot-sub005/internal/collect"
	"github.com/mxxx222/TennisBot-sub005/internal/config"
	"github.com/mxxx222/TennisBot-sub005/internal/eventbus"
	"github.com/mxxx222/TennisBot-sub005/internal/ratelimit"
	"github.com/mxxx222/TennisBot-sub005/internal/sched"
	"github.com/mxxx222/TennisBot-sub005/internal/store"
	"github.com/mxxx222/TennisBot-sub005/pkg/logx"
)

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		in         *config.StorageConfig
		wantDriver string
		wantErr    bool
	}{
		{name: "omitted section"},
		{name: "driver none", in: &config.StorageConfig{Driver: "none"}},
		{name: "sqlite", in: &config.StorageConfig{Driver: "sqlite", Path: "./x.db"}, wantDriver: "sqlite"},
		{name: "sqlite3 alias", in: &config.StorageConfig{Driver: "SQLite3", Path: "./x.db"}, wantDriver: "sqlite"},
		{name: "sqlite without path", in: &config.StorageConfig{Driver: "sqlite"}, wantErr: true},
		{name: "unknown driver", in: &config.StorageConfig{Driver: "postgres"}, wantErr: true},
		{name: "bad busy timeout", in: &config.StorageConfig{Driver: "sqlite", Path: "x", BusyTimeout: "nope"}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := mapStorageConfig(&config.Config{Storage: tt.in})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Driver != tt.wantDriver {
				t.Fatalf("driver = %q, want %q", got.Driver, tt.wantDriver)
			}
		})
	}
}

func TestMapSchedulerConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Scheduler: config.SchedulerConfig{
		TickInterval:     "10s",
		MaxConcurrent:    3,
		ExecutionTimeout: "1m",
	}}
	got, err := mapSchedulerConfig(cfg)
	if err != nil {
		t.Fatalf("mapSchedulerConfig: %v", err)
	}
	if got.TickInterval != 10*time.Second || got.MaxConcurrent != 3 || got.ExecutionTimeout != time.Minute {
		t.Fatalf("got %+v", got)
	}

	if _, err := mapSchedulerConfig(&config.Config{Scheduler: config.SchedulerConfig{TickInterval: "soon"}}); err == nil {
		t.Fatal("invalid tick_interval should fail")
	}
	if _, err := mapSchedulerConfig(&config.Config{Scheduler: config.SchedulerConfig{MaxConcurrent: -1}}); err == nil {
		t.Fatal("negative max_concurrent should fail")
	}
}

func TestMapJobConfig(t *testing.T) {
	t.Parallel()

	j, err := mapJobConfig(config.JobConfig{
		ID:       "atp-odds",
		Source:   "flashscore",
		Category: "tennis.odds",
		Cadence:  "realtime",
		Params:   map[string]string{"url": "http://localhost/feed"},
	})
	if err != nil {
		t.Fatalf("mapJobConfig: %v", err)
	}
	if !j.Enabled {
		t.Fatal("job should default to enabled")
	}
	if j.Cadence.String() != "realtime" {
		t.Fatalf("cadence = %q", j.Cadence.String())
	}

	if _, err := mapJobConfig(config.JobConfig{ID: "x", Cadence: "often"}); err == nil {
		t.Fatal("invalid cadence should fail")
	}

	j, err = mapJobConfig(config.JobConfig{ID: "x", Source: "s", Category: "c", Cadence: "daily", Disabled: true})
	if err != nil {
		t.Fatalf("mapJobConfig: %v", err)
	}
	if j.Enabled {
		t.Fatal("disabled seed should map to Enabled=false")
	}
}

func newSeedApp(t *testing.T) *App {
	t.Helper()
	st, err := store.Open(store.Config{}, logx.Nop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	registry := collect.NewRegistry()
	schedSvc := sched.New(sched.Config{}, st, ratelimit.New(ratelimit.Config{}), registry, logx.Nop(), eventbus.New())
	return &App{log: logx.Nop(), store: st, registry: registry, sched: schedSvc}
}

func TestSeedJobsStorePrecedence(t *testing.T) {
	t.Parallel()
	a := newSeedApp(t)

	existing := store.Job{
		ID:        "atp-odds",
		Source:    "flashscore",
		Category:  "tennis.odds",
		Cadence:   store.MustCadence("hourly"),
		Enabled:   true,
		TotalRuns: 7,
	}
	if err := a.store.AddJob(existing); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	cfg := &config.Config{Jobs: []config.JobConfig{
		{ID: "atp-odds", Source: "flashscore", Category: "tennis.odds", Cadence: "realtime"},
		{ID: "wta-results", Source: "flashscore", Category: "tennis.results", Cadence: "daily"},
	}}
	if err := a.seedJobs(cfg); err != nil {
		t.Fatalf("seedJobs: %v", err)
	}

	// The stored job keeps its accumulated state; the seed did not overwrite.
	got, _ := a.store.Get("atp-odds")
	if got.TotalRuns != 7 || got.Cadence.String() != "hourly" {
		t.Fatalf("stored job overwritten by seed: %+v", got)
	}
	if _, ok := a.store.Get("wta-results"); !ok {
		t.Fatal("new seed job not added")
	}
}

func TestSeedJobsBadCadenceFails(t *testing.T) {
	t.Parallel()
	a := newSeedApp(t)
	cfg := &config.Config{Jobs: []config.JobConfig{
		{ID: "bad", Source: "s", Category: "c", Cadence: "whenever"},
	}}
	if err := a.seedJobs(cfg); err == nil {
		t.Fatal("invalid seed cadence should fail startup")
	}
}
