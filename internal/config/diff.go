package config

import (
	"reflect"
	"sort"
	"strings"

	logx "github.com/o9nn/echo.go-sub000/pkg/logx"
)

// SummarizeChange returns a compact list of changed sections plus safe
// structured attrs for logging the reload.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.tick_interval", strings.TrimSpace(newCfg.Scheduler.TickInterval)),
			logx.Int("scheduler.admit_per_tick", newCfg.Scheduler.AdmitPerTick),
			logx.String("scheduler.exec_timeout", strings.TrimSpace(newCfg.Scheduler.ExecTimeout)),
			logx.Int("scheduler.budget.max_concurrent", newCfg.Scheduler.Budget.MaxConcurrent),
		)
	}

	oldP, newP := derefPulse(oldCfg.Pulse), derefPulse(newCfg.Pulse)
	if (oldCfg.Pulse != nil) != (newCfg.Pulse != nil) || !reflect.DeepEqual(oldP, newP) {
		changed = append(changed, "pulse")
		attrs = append(attrs,
			logx.Bool("pulse.enabled", newP.Enabled),
			logx.String("pulse.timezone", strings.TrimSpace(newP.Timezone)),
			logx.Int("pulse.cadence_count", len(newP.Cadences)),
		)
	}

	oldM, newM := derefMind(oldCfg.Mind), derefMind(newCfg.Mind)
	if (oldCfg.Mind != nil) != (newCfg.Mind != nil) || !reflect.DeepEqual(oldM, newM) {
		changed = append(changed, "mind")
		attrs = append(attrs,
			logx.Bool("mind.enabled", newM.Enabled),
			logx.String("mind.thought_every", strings.TrimSpace(newM.ThoughtEvery)),
			logx.Int("mind.max_active_goals", newM.MaxActiveGoals),
		)
	}

	// Storage: nil means disabled. Never log the path itself.
	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	if oldCfg.Storage != nil {
		oDriver = strings.TrimSpace(oldCfg.Storage.Driver)
		oBusy = strings.TrimSpace(oldCfg.Storage.BusyTimeout)
		oPathSet = strings.TrimSpace(oldCfg.Storage.Path) != ""
	}
	if newCfg.Storage != nil {
		nDriver = strings.TrimSpace(newCfg.Storage.Driver)
		nBusy = strings.TrimSpace(newCfg.Storage.BusyTimeout)
		nPathSet = strings.TrimSpace(newCfg.Storage.Path) != ""
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
			logx.String("storage.busy_timeout", nBusy),
		)
	}

	oldMx, newMx := derefMetrics(oldCfg.Metrics), derefMetrics(newCfg.Metrics)
	if (oldCfg.Metrics != nil) != (newCfg.Metrics != nil) || oldMx != newMx {
		changed = append(changed, "metrics")
		attrs = append(attrs,
			logx.Bool("metrics.enabled", newMx.Enabled),
			logx.String("metrics.addr", strings.TrimSpace(newMx.Addr)),
		)
	}

	oldD, newD := derefDebug(oldCfg.Debug), derefDebug(newCfg.Debug)
	if (oldCfg.Debug != nil) != (newCfg.Debug != nil) || oldD != newD {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", newD.Enabled),
			logx.String("debug.addr", strings.TrimSpace(newD.Addr)),
			logx.Bool("debug.token_set", strings.TrimSpace(newD.Token) != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func derefDebug(d *DebugConfig) DebugConfig {
	if d == nil {
		return DebugConfig{}
	}
	return *d
}

func derefPulse(p *PulseConfig) PulseConfig {
	if p == nil {
		return PulseConfig{}
	}
	return *p
}

func derefMind(m *MindConfig) MindConfig {
	if m == nil {
		return MindConfig{}
	}
	return *m
}

func derefMetrics(m *MetricsConfig) MetricsConfig {
	if m == nil {
		return MetricsConfig{}
	}
	return *m
}
