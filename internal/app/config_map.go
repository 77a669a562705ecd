package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/mxxx222/TennisBot-sub005/internal/admin"
	"github.com/mxxx222/TennisBot-sub005/internal/config"
	"github.com/mxxx222/TennisBot-sub005/internal/ratelimit"
	"github.com/mxxx222/TennisBot-sub005/internal/sched"
	"github.com/mxxx222/TennisBot-sub005/internal/store"
	"github.com/mxxx222/TennisBot-sub005/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (store.Config, error) {
	if cfg.Storage == nil {
		return store.Config{}, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return store.Config{}, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "sqlite", "sqlite3":
		if path == "" {
			return store.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return store.Config{}, err
		}
		return store.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, nil
	default:
		return store.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapSchedulerConfig(cfg *config.Config) (sched.Config, error) {
	sc := cfg.Scheduler
	if sc.MaxConcurrent < 0 {
		return sched.Config{}, fmt.Errorf("scheduler.max_concurrent must be >= 0")
	}
	tick, err := config.ParseDurationField("scheduler.tick_interval", sc.TickInterval)
	if err != nil {
		return sched.Config{}, err
	}
	timeout, err := config.ParseDurationField("scheduler.execution_timeout", sc.ExecutionTimeout)
	if err != nil {
		return sched.Config{}, err
	}
	flush, err := config.ParseDurationField("scheduler.perf_flush_interval", sc.PerfFlushInterval)
	if err != nil {
		return sched.Config{}, err
	}
	return sched.Config{
		TickInterval:      tick,
		MaxConcurrent:     sc.MaxConcurrent,
		ExecutionTimeout:  timeout,
		PerfFlushInterval: flush,
	}, nil
}

func mapRateLimitConfig(cfg *config.Config) (ratelimit.Config, error) {
	rc := cfg.RateLimit
	if rc.DefaultCapacity < 0 {
		return ratelimit.Config{}, fmt.Errorf("rate_limit.default_capacity must be >= 0")
	}
	for src, capacity := range rc.PerSource {
		if capacity < 0 {
			return ratelimit.Config{}, fmt.Errorf("rate_limit.per_source[%s] must be >= 0", src)
		}
	}
	return ratelimit.Config{
		DefaultCapacity: rc.DefaultCapacity,
		PerSource:       rc.PerSource,
	}, nil
}

func mapAdminConfig(cfg *config.Config) (admin.Config, error) {
	ac := cfg.Admin
	read, err := config.ParseDurationOrDefault("admin.read_timeout", ac.ReadTimeout, 5*time.Second)
	if err != nil {
		return admin.Config{}, err
	}
	write, err := config.ParseDurationOrDefault("admin.write_timeout", ac.WriteTimeout, 30*time.Second)
	if err != nil {
		return admin.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("admin.idle_timeout", ac.IdleTimeout, time.Minute)
	if err != nil {
		return admin.Config{}, err
	}
	if ac.RatePerSec < 0 {
		return admin.Config{}, fmt.Errorf("admin.rate_per_sec must be >= 0")
	}
	return admin.Config{
		Enabled:       ac.Enabled,
		Addr:          strings.TrimSpace(ac.Addr),
		Token:         ac.Token,
		AllowInsecure: ac.AllowInsecure,
		ReadTimeout:   read,
		WriteTimeout:  write,
		IdleTimeout:   idle,
		RatePerSec:    ac.RatePerSec,
		Burst:         ac.Burst,
	}, nil
}

func mapJobConfig(jc config.JobConfig) (store.Job, error) {
	cadence, err := store.ParseCadence(jc.Cadence)
	if err != nil {
		return store.Job{}, fmt.Errorf("jobs[%s].cadence: %w", jc.ID, err)
	}
	return store.Job{
		ID:                jc.ID,
		Source:            jc.Source,
		Category:          jc.Category,
		Priority:          jc.Priority,
		Cadence:           cadence,
		Params:            jc.Params,
		TargetOutputCount: jc.TargetOutputCount,
		Enabled:           !jc.Disabled,
	}, nil
}
