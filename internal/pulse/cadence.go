package pulse

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// CadenceKind is the normalized kind of a cadence string: a cron expression
// (robfig/cron) or a fixed interval.
type CadenceKind int

const (
	CadenceCron CadenceKind = iota
	CadenceInterval
)

// Cadence is a parsed cadence string.
//
// Supported forms:
//   - Cron: "*/5 * * * *", "0 3 * * *", "@hourly", "@every 45m"
//   - Interval duration: "45m", "2h30m"
//   - Interval HH:MM: "00:50" (50 minutes), "02:30" (2 hours 30 minutes)
//
// Optional prefixes force the interpretation: "cron:" parses the remainder
// as cron, "interval:" or "every:" as an interval.
type Cadence struct {
	Kind  CadenceKind
	Cron  string
	Every time.Duration
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// ParseCadence parses a cadence string.
func ParseCadence(raw string) (Cadence, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Cadence{}, fmt.Errorf("cadence required")
	}

	low := strings.ToLower(s)
	if strings.HasPrefix(low, "cron:") {
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return Cadence{}, fmt.Errorf("cron expression required after 'cron:'")
		}
		return Cadence{Kind: CadenceCron, Cron: expr}, nil
	}
	for _, p := range []string{"interval:", "every:"} {
		if strings.HasPrefix(low, p) {
			d, err := parseInterval(strings.TrimSpace(s[len(p):]))
			if err != nil {
				return Cadence{}, err
			}
			return Cadence{Kind: CadenceInterval, Every: d}, nil
		}
	}

	// Whitespace or a leading '@' means cron syntax.
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return Cadence{Kind: CadenceCron, Cron: s}, nil
	}
	if reHHMM.MatchString(s) {
		d, err := parseHHMMDuration(s)
		if err != nil {
			return Cadence{}, err
		}
		return Cadence{Kind: CadenceInterval, Every: d}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return Cadence{}, fmt.Errorf("interval must be > 0")
		}
		return Cadence{Kind: CadenceInterval, Every: d}, nil
	}

	return Cadence{}, fmt.Errorf(
		"invalid cadence %q (use cron like '*/5 * * * *', HH:MM like '02:30', or duration like '45m')",
		raw,
	)
}

func parseInterval(v string) (time.Duration, error) {
	if v == "" {
		return 0, fmt.Errorf("interval required")
	}
	if reHHMM.MatchString(v) {
		return parseHHMMDuration(v)
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q (use HH:MM or Go duration like '45m'/'2h30m')", v)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	var hh int
	for i := 0; i < len(m[1]); i++ {
		hh = hh*10 + int(m[1][i]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}
