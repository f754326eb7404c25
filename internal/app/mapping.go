package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/o9nn/echo.go-sub000/internal/budget"
	"github.com/o9nn/echo.go-sub000/internal/config"
	"github.com/o9nn/echo.go-sub000/internal/metrics"
	"github.com/o9nn/echo.go-sub000/internal/mind"
	"github.com/o9nn/echo.go-sub000/internal/observability/pprof"
	"github.com/o9nn/echo.go-sub000/internal/pulse"
	"github.com/o9nn/echo.go-sub000/internal/sched"
	"github.com/o9nn/echo.go-sub000/internal/storage"
	logx "github.com/o9nn/echo.go-sub000/pkg/logx"
)

// StopReason records why the app is shutting down; it only feeds logs.
type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSIGINT     StopReason = "sigint"
	StopSIGTERM    StopReason = "sigterm"
	StopFatalError StopReason = "fatal_error"
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

func mapSchedConfig(cfg *config.Config) (sched.Config, error) {
	sc := cfg.Scheduler

	tick, err := config.ParseDurationOrDefault("scheduler.tick_interval", sc.TickInterval, 0)
	if err != nil {
		return sched.Config{}, err
	}
	execTimeout, err := config.ParseDurationOrDefault("scheduler.exec_timeout", sc.ExecTimeout, 0)
	if err != nil {
		return sched.Config{}, err
	}
	window, err := config.ParseDurationOrDefault("scheduler.budget.window", sc.Budget.Window, 0)
	if err != nil {
		return sched.Config{}, err
	}
	if sc.AdmitPerTick < 0 {
		return sched.Config{}, fmt.Errorf("scheduler.admit_per_tick must be >= 0")
	}
	if sc.HistorySize < 0 {
		return sched.Config{}, fmt.Errorf("scheduler.history_size must be >= 0")
	}

	return sched.Config{
		Enabled:      sc.Enabled,
		TickInterval: tick,
		AdmitPerTick: sc.AdmitPerTick,
		ExecTimeout:  execTimeout,
		HistorySize:  sc.HistorySize,
		Budget: budget.Config{
			MaxCostPerWindow:  sc.Budget.MaxCostPerWindow,
			MaxCallsPerWindow: sc.Budget.MaxCallsPerWindow,
			MaxConcurrent:     sc.Budget.MaxConcurrent,
			Window:            window,
		},
	}, nil
}

func mapPulseConfig(cfg *config.Config) (pulse.Config, error) {
	if cfg.Pulse == nil {
		return pulse.Config{}, nil
	}
	if tz := strings.TrimSpace(cfg.Pulse.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return pulse.Config{}, fmt.Errorf("pulse.timezone: invalid %q: %w", tz, err)
		}
	}
	return pulse.Config{
		Enabled:  cfg.Pulse.Enabled,
		Timezone: cfg.Pulse.Timezone,
	}, nil
}

func mapMindConfig(cfg *config.Config) (mind.Config, error) {
	if cfg.Mind == nil {
		return mind.Config{}, nil
	}
	mc := cfg.Mind

	out := mind.Config{Enabled: mc.Enabled, MaxActiveGoals: mc.MaxActiveGoals}
	fields := []struct {
		path string
		raw  string
		dst  *time.Duration
	}{
		{"mind.thought_every", mc.ThoughtEvery, &out.ThoughtEvery},
		{"mind.exploration_every", mc.ExplorationEvery, &out.ExplorationEvery},
		{"mind.synthesis_every", mc.SynthesisEvery, &out.SynthesisEvery},
		{"mind.goal_every", mc.GoalEvery, &out.GoalEvery},
		{"mind.consolidation_every", mc.ConsolidationEvery, &out.ConsolidationEvery},
		{"mind.reflection_every", mc.ReflectionEvery, &out.ReflectionEvery},
	}
	for _, f := range fields {
		d, err := config.ParseDurationOrDefault(f.path, f.raw, 0)
		if err != nil {
			return mind.Config{}, err
		}
		*f.dst = d
	}
	if mc.MaxActiveGoals < 0 {
		return mind.Config{}, fmt.Errorf("mind.max_active_goals must be >= 0")
	}
	return out, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=file")
		}
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapMetricsConfig(cfg *config.Config) metrics.Config {
	if cfg.Metrics == nil {
		return metrics.Config{}
	}
	addr := strings.TrimSpace(cfg.Metrics.Addr)
	if addr == "" {
		addr = ":9091"
	}
	return metrics.Config{Enabled: cfg.Metrics.Enabled, Addr: addr}
}

func mapDebugConfig(cfg *config.Config) pprof.Config {
	if cfg.Debug == nil {
		return pprof.Config{}
	}
	return pprof.Config{
		Enabled: cfg.Debug.Enabled,
		Addr:    cfg.Debug.Addr,
		Token:   cfg.Debug.Token,
	}
}
