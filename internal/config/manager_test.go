package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "echod.yaml", `
logging:
  level: debug
  console: true
scheduler:
  enabled: true
  tick_interval: 2s
  admit_per_tick: 3
  budget:
    max_cost_per_window: 10000
    max_calls_per_window: 20
    max_concurrent: 3
    window: 60s
storage:
  driver: sqlite
  path: ./echo.db
metrics:
  enabled: true
  addr: ":9091"
`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Scheduler.Enabled {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Scheduler.Budget.MaxConcurrent != 3 {
		t.Fatalf("budget = %+v", cfg.Scheduler.Budget)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "echod.yaml", `
scheduler:
  enabled: true
  wrokers: 4
`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("unknown key must fail the strict decode")
	}
}

func TestLoadRejectsTrailingJSON(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "echod.json", `{"scheduler":{"enabled":true}}{"extra":1}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("trailing JSON document must fail")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	if d, err := ParseDurationField("x", "1m30s"); err != nil || d != 90*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty should be zero, got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative duration must fail")
	}
	if _, err := ParseDurationField("x", "soon"); err == nil {
		t.Fatal("junk duration must fail")
	}

	if d, err := ParseDurationOrDefault("x", "", 2*time.Second); err != nil || d != 2*time.Second {
		t.Fatalf("default not applied: %v, %v", d, err)
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()

	oldCfg := &Config{Logging: LoggingConfig{Level: "info"}}
	newCfg := &Config{
		Logging:   LoggingConfig{Level: "debug"},
		Scheduler: SchedulerConfig{Enabled: true},
		Metrics:   &MetricsConfig{Enabled: true, Addr: ":9091"},
	}
	changed, _ := SummarizeChange(oldCfg, newCfg)
	want := []string{"logging", "metrics", "scheduler"}
	if len(changed) != len(want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	for i := range want {
		if changed[i] != want[i] {
			t.Fatalf("changed = %v, want %v", changed, want)
		}
	}
}
