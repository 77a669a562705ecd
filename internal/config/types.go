package config

// Config is the full on-disk configuration. Both YAML and JSON are accepted;
// YAML is coerced to JSON so one strict decoder validates both.
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Admin     AdminConfig     `json:"admin,omitempty"`

	// Jobs are seeded into the store at startup. A job already present in
	// the store (same id) wins over its seed definition.
	Jobs []JobConfig `json:"jobs,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer. Omitting the section (or
// driver "none") runs memory-only.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/tennisbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// SchedulerConfig controls the dispatch loop.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - tick_interval: "30s"
//   - max_concurrent: 5
//   - execution_timeout: "0s" (disabled; a hung collector holds its slot)
//   - perf_flush_interval: "0s" (periodic snapshots disabled)
type SchedulerConfig struct {
	TickInterval      string `json:"tick_interval,omitempty"`
	MaxConcurrent     int    `json:"max_concurrent,omitempty"`
	ExecutionTimeout  string `json:"execution_timeout,omitempty"`
	PerfFlushInterval string `json:"perf_flush_interval,omitempty"`
}

// RateLimitConfig sets per-source request budgets for a fixed 60 second
// window. default_capacity applies to sources without an explicit entry and
// defaults to 30.
type RateLimitConfig struct {
	DefaultCapacity int            `json:"default_capacity,omitempty"`
	PerSource       map[string]int `json:"per_source,omitempty"`
}

// AdminConfig controls the optional admin HTTP server.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:8646").
//   - If you bind to a non-loopback address, set a token or explicitly
//     allow_insecure.
type AdminConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:8646"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	// Server timeouts (Go duration strings).
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	// Request throttle across all admin endpoints. Leave 0 for the default
	// of 5 req/s with a burst of 10.
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	Burst      int     `json:"burst,omitempty"`
}

// JobConfig is a declarative job seed.
type JobConfig struct {
	ID                string            `json:"id"`
	Source            string            `json:"source"`
	Category          string            `json:"category"`
	Priority          int               `json:"priority,omitempty"`
	Cadence           string            `json:"cadence"`
	Params            map[string]string `json:"params,omitempty"`
	TargetOutputCount int               `json:"target_output_count,omitempty"`
	Disabled          bool              `json:"disabled,omitempty"`
}
