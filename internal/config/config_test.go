package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const sampleYAML = `
logging:
  level: debug
  console: true
storage:
  driver: sqlite
  path: ./data/tennisbot.db
scheduler:
  tick_interval: 10s
  max_concurrent: 3
rate_limit:
  default_capacity: 20
  per_source:
    flashscore: 5
admin:
  enabled: true
  addr: "127.0.0.1:8646"
jobs:
  - id: atp-odds
    source: flashscore
    category: tennis.odds
    cadence: realtime
    priority: 1
    target_output_count: 40
`

func TestParseYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.yaml", sampleYAML))

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging: %+v", cfg.Logging)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage: %+v", cfg.Storage)
	}
	if cfg.Scheduler.TickInterval != "10s" || cfg.Scheduler.MaxConcurrent != 3 {
		t.Fatalf("scheduler: %+v", cfg.Scheduler)
	}
	if cfg.RateLimit.PerSource["flashscore"] != 5 {
		t.Fatalf("rate_limit: %+v", cfg.RateLimit)
	}
	if len(cfg.Jobs) != 1 || cfg.Jobs[0].ID != "atp-odds" || cfg.Jobs[0].Cadence != "realtime" {
		t.Fatalf("jobs: %+v", cfg.Jobs)
	}
	if m.Get() != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.json",
		`{"logging":{"level":"info","console":false,"file":{"enabled":false,"path":""}},"scheduler":{},"rate_limit":{}}`))

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("logging: %+v", cfg.Logging)
	}
}

func TestParseRejectsUnknownField(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.yaml", "logging:\n  level: info\nbogus_section: 1\n"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("unknown top-level key should be rejected")
	}
}

func TestParseRejectsTrailingJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.json", `{"logging":{"level":"info","console":false,"file":{"enabled":false,"path":""}},"scheduler":{},"rate_limit":{}}{"extra":1}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("trailing JSON should be rejected")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "", want: 0},
		{raw: "10s", want: 10 * time.Second},
		{raw: " 1m ", want: time.Minute},
		{raw: "-5s", wantErr: true},
		{raw: "banana", wantErr: true},
	}
	for _, tt := range tests {
		d, err := ParseDurationField("test.field", tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tt.raw)
			}
			continue
		}
		if err != nil || d != tt.want {
			t.Fatalf("%q: got %v, %v", tt.raw, d, err)
		}
	}

	if d, err := ParseDurationOrDefault("test.field", "", 30*time.Second); err != nil || d != 30*time.Second {
		t.Fatalf("default: %v, %v", d, err)
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()

	oldCfg := &Config{Logging: LoggingConfig{Level: "info"}}
	newCfg := &Config{
		Logging:   LoggingConfig{Level: "debug"},
		RateLimit: RateLimitConfig{DefaultCapacity: 10},
	}

	changed, _ := SummarizeChange(oldCfg, newCfg)
	if len(changed) != 2 || changed[0] != "logging" || changed[1] != "rate_limit" {
		t.Fatalf("changed = %v", changed)
	}

	same, _ := SummarizeChange(newCfg, newCfg)
	if len(same) != 0 {
		t.Fatalf("identical configs reported changes: %v", same)
	}
}

func TestSubscribePublish(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.yaml", sampleYAML))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	next := &Config{Logging: LoggingConfig{Level: "warn"}}
	m.Commit(next)
	m.publish(next)

	select {
	case got := <-ch:
		if got.Logging.Level != "warn" {
			t.Fatalf("got %+v", got.Logging)
		}
	default:
		t.Fatal("subscriber did not receive config")
	}

	// A full buffer keeps only the newest version.
	a := &Config{Logging: LoggingConfig{Level: "error"}}
	b := &Config{Logging: LoggingConfig{Level: "trace"}}
	m.publish(a)
	m.publish(b)
	if got := <-ch; got.Logging.Level != "trace" {
		t.Fatalf("expected newest config, got %+v", got.Logging)
	}
}
