package config

import (
	"fmt"
	"strings"
	"time"
)

// Intervals in the config file are Go duration strings ("2s", "250ms", "1h")
// rather than bare numbers, so a value reads the same in the file and in the
// logs. These helpers sit between the decoded Config and the typed runtime
// configs built in the app layer.

// ParseDurationField parses a duration string from the config. The empty
// string means "not set" and yields zero; negative durations are rejected.
// path names the field in the returned error ("sched.tick_interval: ...").
func ParseDurationField(path, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with a fallback: unset or zero
// values take def, so validators can leave defaulting to one place.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
