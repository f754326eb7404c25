package config

// Config is the on-disk configuration tree. JSON and YAML are accepted;
// YAML is coerced to JSON before the strict decode, so unknown keys fail in
// both formats.
type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Scheduler controls the cognitive loop driver and its resource budget.
	Scheduler SchedulerConfig `json:"scheduler"`

	// Pulse controls recurring triggers (built-in cognitive cadences plus
	// any extra cadences declared here).
	Pulse *PulseConfig `json:"pulse,omitempty"`

	// Mind controls the built-in cognition cadences and goal limits.
	Mind *MindConfig `json:"mind,omitempty"`

	Storage *StorageConfig `json:"storage,omitempty"`
	Metrics *MetricsConfig `json:"metrics,omitempty"`
	Debug   *DebugConfig   `json:"debug,omitempty"`
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

// SchedulerConfig controls the loop driver.
//
// All durations are Go duration strings (e.g. "500ms", "2s", "1m").
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`

	// TickInterval is the duration of one phase-clock step ("2s" default).
	TickInterval string `json:"tick_interval,omitempty"`

	// AdmitPerTick caps admissions within a single tick (default 3).
	AdmitPerTick int `json:"admit_per_tick,omitempty"`

	// ExecTimeout bounds one callback's wall-clock duration (default "30s").
	ExecTimeout string `json:"exec_timeout,omitempty"`

	HistorySize int `json:"history_size,omitempty"`

	Budget BudgetConfig `json:"budget"`
}

// BudgetConfig controls the rolling-window resource budget.
type BudgetConfig struct {
	MaxCostPerWindow  int    `json:"max_cost_per_window,omitempty"`
	MaxCallsPerWindow int    `json:"max_calls_per_window,omitempty"`
	MaxConcurrent     int    `json:"max_concurrent,omitempty"`
	Window            string `json:"window,omitempty"` // Go duration string
}

// PulseConfig controls trigger behavior. Cadences maps a name to a cadence
// string ("*/5 * * * *", "@hourly", "45m", "02:30"); entries here fire
// generic thought-generation tasks in addition to the built-in cognition.
type PulseConfig struct {
	Enabled  bool              `json:"enabled"`
	Timezone string            `json:"timezone,omitempty"` // IANA TZ
	Cadences map[string]string `json:"cadences,omitempty"`
}

// MindConfig controls the built-in cognitive cadences.
//
// All cadence fields are Go duration strings.
type MindConfig struct {
	Enabled            bool   `json:"enabled"`
	ThoughtEvery       string `json:"thought_every,omitempty"`
	ExplorationEvery   string `json:"exploration_every,omitempty"`
	SynthesisEvery     string `json:"synthesis_every,omitempty"`
	GoalEvery          string `json:"goal_every,omitempty"`
	ConsolidationEvery string `json:"consolidation_every,omitempty"`
	ReflectionEvery    string `json:"reflection_every,omitempty"`
	MaxActiveGoals     int    `json:"max_active_goals,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./echo.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default ":9091"
}

// DebugConfig controls the pprof listener. A token is required for
// non-loopback binds.
type DebugConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:6060"
	Token   string `json:"token,omitempty"`
}
