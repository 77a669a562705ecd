package app

import (
	"context"
	"strings"
	"time"

	"github.com/mxxx222/TennisBot-sub005/internal/admin"
	"github.com/mxxx222/TennisBot-sub005/internal/collect"
	"github.com/mxxx222/TennisBot-sub005/internal/config"
	"github.com/mxxx222/TennisBot-sub005/internal/eventbus"
	"github.com/mxxx222/TennisBot-sub005/internal/ratelimit"
	rtsup "github.com/mxxx222/TennisBot-sub005/internal/runtime/supervisor"
	"github.com/mxxx222/TennisBot-sub005/internal/sched"
	"github.com/mxxx222/TennisBot-sub005/internal/store"
	"github.com/mxxx222/TennisBot-sub005/pkg/logx"
)

// App owns the process-level wiring: config, logging, storage, the scheduler,
// and the admin surface. The lifecycle is New -> Register collectors ->
// Start -> Stop.
type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log      logx.Logger
	logs     *logx.Service
	bus      eventbus.Bus
	store    *store.Store
	limiter  *ratelimit.Limiter
	registry *collect.Registry

	sched *sched.Service
	admin *admin.Service
}

// New loads the config and constructs every component. A broken config or a
// failing store open is fatal; the caller should exit.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()
	registry := collect.NewRegistry()

	storeCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(storeCfg, log.With(logx.String("comp", "store")))
	if err != nil {
		// Unusable persistence is the one startup error we refuse to
		// degrade around.
		return nil, err
	}
	if storeCfg.Driver != "" {
		log.Info("storage enabled", logx.String("driver", storeCfg.Driver), logx.String("path", storeCfg.Path))
	}

	rlCfg, err := mapRateLimitConfig(cfg)
	if err != nil {
		return nil, err
	}
	limiter := ratelimit.New(rlCfg)

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	schedSvc := sched.New(schedCfg, st, limiter, registry, log.With(logx.String("comp", "sched")), bus)

	adminCfg, err := mapAdminConfig(cfg)
	if err != nil {
		return nil, err
	}
	adminSvc := admin.New(adminCfg, schedSvc, log.With(logx.String("comp", "admin")))

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    st,
		limiter:  limiter,
		registry: registry,
		sched:    schedSvc,
		admin:    adminSvc,
	}, nil
}

// Collectors exposes the registry so main can plug in data sources before
// Start.
func (a *App) Collectors() *collect.Registry { return a.registry }

// Scheduler exposes the scheduling service for embedding callers.
func (a *App) Scheduler() *sched.Service { return a.sched }

// Done is closed when the app supervisor context is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	// Transactional reload: a config that fails validation is never
	// committed or published.
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if _, err := mapSchedulerConfig(cfg); err != nil {
			return err
		}
		if _, err := mapRateLimitConfig(cfg); err != nil {
			return err
		}
		if _, err := mapAdminConfig(cfg); err != nil {
			return err
		}
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		for _, jc := range cfg.Jobs {
			if _, err := mapJobConfig(jc); err != nil {
				return err
			}
		}
		return nil
	})

	if err := a.seedJobs(a.cfgm.Get()); err != nil {
		return err
	}

	if err := a.sched.Start(a.sup.Context()); err != nil {
		return err
	}
	if a.admin.Enabled() {
		a.admin.Start(a.sup.Context())
	}

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})

	// Event log tap for debugging; components subscribe themselves for
	// anything behavioral.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	a.log.Info("app started", logx.String("config", a.cfgPath))
	return nil
}

// seedJobs loads declarative jobs from config. A job already present in the
// store keeps its accumulated state; the seed is skipped.
func (a *App) seedJobs(cfg *config.Config) error {
	if cfg == nil {
		return nil
	}
	for _, jc := range cfg.Jobs {
		j, err := mapJobConfig(jc)
		if err != nil {
			return err
		}
		if _, exists := a.store.Get(j.ID); exists {
			a.log.Debug("seed job already in store; keeping stored state", logx.String("job", j.ID))
			continue
		}
		if err := a.sched.AddJob(j); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
					continue
				default:
				}
				break
			}

			sections, attrs := config.SummarizeChange(lastApplied, newCfg)
			if len(sections) > 0 {
				fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
				a.log.Info("config reloaded", fields...)
			} else {
				a.log.Debug("config reload received, but no effective changes detected")
			}
			lastApplied = newCfg

			a.applyConfig(ctx, newCfg, sections)
		}
	}
}

func (a *App) applyConfig(ctx context.Context, cfg *config.Config, sections []string) {
	for _, s := range sections {
		switch s {
		case "storage":
			a.log.Warn("storage config changed; restart required for changes to take effect")
		case "jobs":
			if err := a.seedJobs(cfg); err != nil {
				a.log.Warn("job seed reload failed", logx.Err(err))
			}
		}
	}

	a.logs.Apply(mapLoggingConfig(cfg))

	if rlCfg, err := mapRateLimitConfig(cfg); err == nil {
		a.limiter.Apply(rlCfg)
	} else {
		a.log.Warn("invalid rate_limit config; keeping previous", logx.Err(err))
	}

	if schedCfg, err := mapSchedulerConfig(cfg); err == nil {
		a.sched.Apply(schedCfg)
	} else {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	}

	if adminCfg, err := mapAdminConfig(cfg); err == nil {
		a.admin.Reconfigure(ctx, adminCfg)
	} else {
		a.log.Warn("invalid admin config; keeping previous", logx.Err(err))
	}
}

// Stop shuts everything down in dependency order: admin surface first, then
// the scheduler (which drains in-flight jobs and closes the store), then the
// supervisor.
func (a *App) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	a.admin.Stop(ctx)
	err := a.sched.Stop(ctx)

	if a.sup != nil {
		a.sup.Cancel()
		_ = a.sup.Wait(ctx)
	}
	a.log.Info("app stopped", logx.Duration("took", time.Since(start)))
	return err
}
