// Package app wires the configuration, logging, storage, scheduler, pulse,
// mind and metrics services into one lifecycle.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/o9nn/echo.go-sub000/internal/config"
	"github.com/o9nn/echo.go-sub000/internal/eventbus"
	"github.com/o9nn/echo.go-sub000/internal/metrics"
	"github.com/o9nn/echo.go-sub000/internal/mind"
	"github.com/o9nn/echo.go-sub000/internal/observability/pprof"
	"github.com/o9nn/echo.go-sub000/internal/pulse"
	"github.com/o9nn/echo.go-sub000/internal/runtime/supervisor"
	"github.com/o9nn/echo.go-sub000/internal/sched"
	"github.com/o9nn/echo.go-sub000/internal/storage"
	logx "github.com/o9nn/echo.go-sub000/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	sched   *sched.Service
	pulse   *pulse.Service
	mind    *mind.Service
	metrics *metrics.Service
	pprof   *pprof.Service
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Storage is optional; a nil store disables persistence everywhere.
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		logSvc.Close()
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			logSvc.Close()
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	schedCfg, err := mapSchedConfig(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	schedSvc := sched.New(schedCfg, log.With(logx.String("comp", "sched")), bus)

	metricsSvc := metrics.New(mapMetricsConfig(cfg), bus, schedSvc.Snapshot,
		log.With(logx.String("comp", "metrics")))

	pulseCfg, err := mapPulseConfig(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	pulseSvc := pulse.New(pulseCfg, schedSvc, log.With(logx.String("comp", "pulse")))

	mindCfg, err := mapMindConfig(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	mindSvc := mind.New(mindCfg, store, log.With(logx.String("comp", "mind")))

	if mindCfg.Enabled {
		if err := mindSvc.RegisterCadences(pulseSvc); err != nil {
			logSvc.Close()
			return nil, fmt.Errorf("register cognition cadences: %w", err)
		}
	}

	// User-declared cadences fire extra thought generation on top of the
	// built-in cognition.
	if cfg.Pulse != nil {
		for name, spec := range cfg.Pulse.Cadences {
			if _, err := pulseSvc.Add(name, spec, func() sched.TaskRequest {
				return sched.TaskRequest{
					Type:        sched.TypeThoughtGeneration,
					Description: "cadence " + name,
					Priority:    sched.PriorityLow,
					Callback:    mindSvc.GenerateThought,
					Params:      map[string]any{"cadence": name},
				}
			}); err != nil {
				logSvc.Close()
				return nil, fmt.Errorf("pulse.cadences[%s]: %w", name, err)
			}
		}
	}

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		sched:   schedSvc,
		pulse:   pulseSvc,
		mind:    mindSvc,
		metrics: metricsSvc,
		pprof:   pprof.New(mapDebugConfig(cfg), log.With(logx.String("comp", "pprof"))),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error
// or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true),
	)

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapSchedConfig(cfg); err != nil {
			return err
		}
		if _, err := mapPulseConfig(cfg); err != nil {
			return err
		}
		if _, err := mapMindConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	cfg := a.cfgm.Get()
	runCtx := a.sup.Context()

	if cfg.Scheduler.Enabled {
		a.sched.Start(runCtx)
	}
	if a.pulse.Enabled() {
		a.pulse.Start(runCtx)
	}
	a.metrics.Start(runCtx)
	if a.pprof.Enabled() {
		if err := a.pprof.Start(runCtx); err != nil {
			return err
		}
	}

	// Event tail: debug-log everything, persist terminal task records when
	// storage is on.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.tail", func(c context.Context) {
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
				a.persistTaskRun(e)
			}
		}
	})

	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) persistTaskRun(e eventbus.Event) {
	if a.store == nil {
		return
	}
	if e.Type != eventbus.TypeTaskCompleted && e.Type != eventbus.TypeTaskFailed {
		return
	}
	rec, ok := e.Data.(sched.TaskRecord)
	if !ok {
		return
	}
	run := storage.TaskRun{
		ID:       rec.ID,
		Type:     string(rec.Type),
		Priority: int(rec.Priority),
		Stream:   rec.Stream,
		Status:   string(rec.Status),
		Error:    rec.Error,
		At:       rec.CompletedAt,
		TookMS:   rec.Duration.Milliseconds(),
	}
	if err := a.store.AppendTaskRun(context.Background(), run); err != nil {
		a.log.Warn("persist task run", logx.String("id", rec.ID), logx.Err(err))
	}
}

func (a *App) reloadLoop(c context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)

	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-c.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					drained = true
				}
			}
			a.applyReload(c, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyReload(c context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}

	a.logs.Apply(mapLoggingConfig(newCfg))

	for _, s := range sections {
		switch s {
		case "storage", "metrics", "mind", "debug":
			a.log.Warn("config changed; restart required for changes to take effect",
				logx.String("section", s))
		}
	}

	// Scheduler knobs other than enabled are fixed at construction.
	prevSched := oldCfg.Scheduler.Enabled
	newSched := newCfg.Scheduler.Enabled
	if prevSched && !newSched {
		a.log.Info("scheduler disabled via config")
		stopCtx, cancel := context.WithTimeout(c, 3*time.Second)
		a.sched.Stop(stopCtx)
		cancel()
	} else if !prevSched && newSched {
		a.log.Info("scheduler enabled via config")
		a.sched.Start(c)
	}

	if pcfg, err := mapPulseConfig(newCfg); err != nil {
		a.log.Warn("invalid pulse config; keeping previous", logx.Err(err))
	} else {
		prevPulse := a.pulse.Enabled()
		a.pulse.Apply(pcfg)
		if prevPulse && !pcfg.Enabled {
			a.log.Info("pulse disabled via config")
			stopCtx, cancel := context.WithTimeout(c, 3*time.Second)
			a.pulse.Stop(stopCtx)
			cancel()
		} else if !prevPulse && pcfg.Enabled {
			a.log.Info("pulse enabled via config")
			a.pulse.Start(c)
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Each shutdown step gets an upper bound so one component cannot stall
	// the whole stop. The caller's deadline is never extended.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := boundedCtx(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	// Pulse first so nothing new is enqueued while the scheduler drains.
	step("pulse", 2*time.Second, func(c context.Context) error { a.pulse.Stop(c); return nil })
	step("scheduler", 3*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("metrics", 2*time.Second, func(c context.Context) error { a.metrics.Stop(c); return nil })
	step("pprof", 1*time.Second, func(c context.Context) error { a.pprof.Stop(c); return nil })
	step("storage", 1*time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

// boundedCtx derives a context limited to max, without extending the
// parent's own deadline.
func boundedCtx(parent context.Context, max time.Duration) (context.Context, context.CancelFunc) {
	if max <= 0 {
		return context.WithCancel(parent)
	}
	if dl, ok := parent.Deadline(); ok {
		if rem := time.Until(dl); rem < max {
			return context.WithCancel(parent)
		}
	}
	return context.WithTimeout(parent, max)
}
