package config

import (
	"reflect"
	"strings"

	"github.com/mxxx222/TennisBot-sub005/pkg/logx"
)

// SummarizeChange returns the list of changed sections plus safe structured
// attrs for logging. Secrets (admin token) are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled))
	}

	oldStorage, newStorage := StorageConfig{}, StorageConfig{}
	if oldCfg.Storage != nil {
		oldStorage = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		newStorage = *newCfg.Storage
	}
	if oldStorage != newStorage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newStorage.Driver),
			logx.Bool("storage.path_set", strings.TrimSpace(newStorage.Path) != ""))
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("sched.tick_interval", newCfg.Scheduler.TickInterval),
			logx.Int("sched.max_concurrent", newCfg.Scheduler.MaxConcurrent))
	}

	if oldCfg.RateLimit.DefaultCapacity != newCfg.RateLimit.DefaultCapacity ||
		!reflect.DeepEqual(oldCfg.RateLimit.PerSource, newCfg.RateLimit.PerSource) {
		changed = append(changed, "rate_limit")
		attrs = append(attrs,
			logx.Int("ratelimit.default_capacity", newCfg.RateLimit.DefaultCapacity),
			logx.Int("ratelimit.source_overrides", len(newCfg.RateLimit.PerSource)))
	}

	// Admin (never log token)
	if oldCfg.Admin.Enabled != newCfg.Admin.Enabled ||
		strings.TrimSpace(oldCfg.Admin.Addr) != strings.TrimSpace(newCfg.Admin.Addr) ||
		oldCfg.Admin.AllowInsecure != newCfg.Admin.AllowInsecure ||
		oldCfg.Admin.RatePerSec != newCfg.Admin.RatePerSec ||
		oldCfg.Admin.Burst != newCfg.Admin.Burst ||
		oldCfg.Admin.ReadTimeout != newCfg.Admin.ReadTimeout ||
		oldCfg.Admin.WriteTimeout != newCfg.Admin.WriteTimeout ||
		oldCfg.Admin.IdleTimeout != newCfg.Admin.IdleTimeout {
		changed = append(changed, "admin")
		attrs = append(attrs,
			logx.Bool("admin.enabled", newCfg.Admin.Enabled),
			logx.String("admin.addr", strings.TrimSpace(newCfg.Admin.Addr)))
	}

	if !reflect.DeepEqual(oldCfg.Jobs, newCfg.Jobs) {
		changed = append(changed, "jobs")
		attrs = append(attrs, logx.Int("jobs.seeded", len(newCfg.Jobs)))
	}

	return changed, attrs
}
