package pulse

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/o9nn/echo.go-sub000/internal/sched"
	logx "github.com/o9nn/echo.go-sub000/pkg/logx"
)

const scheduleWarnThrottle = 5 * time.Second

// Add parses the cadence string and registers the producer under name.
// Registering an existing name replaces it; the name is the stable handle
// for Remove.
func (s *Service) Add(name, cadence string, produce Producer) (string, error) {
	cd, err := ParseCadence(cadence)
	if err != nil {
		return "", err
	}
	switch cd.Kind {
	case CadenceCron:
		return s.AddCron(name, cd.Cron, produce)
	case CadenceInterval:
		return s.AddInterval(name, cd.Every, produce)
	default:
		return "", fmt.Errorf("unsupported cadence kind")
	}
}

func (s *Service) AddCron(name, spec string, produce Producer) (string, error) {
	return s.add(name, spec, "cron", produce)
}

func (s *Service) AddInterval(name string, every time.Duration, produce Producer) (string, error) {
	if every <= 0 {
		return "", errors.New("interval must be > 0")
	}
	return s.add(name, fmt.Sprintf("@every %s", every.String()), "interval", produce)
}

// AddDaily registers a cadence firing every day at HH:MM in the service
// timezone.
func (s *Service) AddDaily(name, atHHMM string, produce Producer) (string, error) {
	h, m, err := parseClock(atHHMM)
	if err != nil {
		return "", err
	}
	return s.AddCron(name, fmt.Sprintf("%d %d * * *", m, h), produce)
}

func (s *Service) add(name, spec, kind string, produce Producer) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("name required")
	}
	if produce == nil {
		return "", errors.New("producer required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Upsert by name so hot reloads and repeated registrations don't stack
	// duplicate triggers.
	_ = s.removeLocked(name)

	s.defs = append(s.defs, cadenceDef{
		id:      fmt.Sprintf("%s:%d", kind, time.Now().UnixNano()),
		name:    name,
		spec:    spec,
		produce: produce,
	})
	d := &s.defs[len(s.defs)-1]

	if s.c == nil {
		// Not started yet; the def activates on Start.
		return name, nil
	}
	if err := s.registerLocked(d); err != nil {
		s.log.Error("cadence register failed",
			logx.String("name", name), logx.String("spec", spec), logx.Any("err", err))
		return name, err
	}
	s.log.Debug("cadence registered",
		logx.String("name", name),
		logx.String("id", d.id),
		logx.String("spec", spec),
		logx.Duration("spread", d.startupSpread),
	)
	return name, nil
}

// Remove unregisters all cadences with the given name. Safe to call while
// stopped. It reports whether anything was removed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	removed := s.removeLocked(name)
	s.mu.Unlock()
	if removed {
		s.log.Debug("cadence removed", logx.String("name", name))
	}
	return removed
}

// removeLocked drops defs matching name and unregisters them from the
// running cron, if any. Call with s.mu held.
func (s *Service) removeLocked(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	removed := false
	if s.c != nil {
		for i := range s.defs {
			if s.defs[i].name == name && s.defs[i].entryID != 0 {
				s.c.Remove(s.defs[i].entryID)
				s.defs[i].entryID = 0
				removed = true
			}
		}
	}
	n := 0
	for _, d := range s.defs {
		if d.name == name {
			removed = true
			continue
		}
		s.defs[n] = d
		n++
	}
	s.defs = s.defs[:n]
	return removed
}

// registerLocked attaches a def to the running cron. Interval cadences get
// a jittered first trigger so a batch of producers registered at startup
// does not all fire at once. Call with s.mu held.
func (s *Service) registerLocked(d *cadenceDef) error {
	// Capture by value: d points into s.defs, whose backing array is
	// compacted on removal, so the closure must not hold the pointer.
	name, produce := d.name, d.produce
	job := cron.FuncJob(func() { s.fire(name, produce) })

	spec := strings.TrimSpace(d.spec)
	if strings.HasPrefix(spec, "@every") {
		everyStr := strings.TrimSpace(strings.TrimPrefix(spec, "@every"))
		if every, err := time.ParseDuration(everyStr); err == nil && every > 0 {
			loc := s.loc
			if loc == nil {
				loc = time.Local
			}
			schedule, jitter := intervalScheduleWithSpread(every, time.Now().In(loc), d.name)
			d.startupSpread = jitter
			d.entryID = s.c.Schedule(schedule, job)
			return nil
		}
	}

	d.startupSpread = 0
	eid, err := s.c.AddJob(spec, job)
	if err == nil {
		d.entryID = eid
	}
	return err
}

// fire produces one request and submits it to the scheduler.
func (s *Service) fire(name string, produce Producer) {
	if s.sink == nil {
		return
	}
	req := produce()
	id, err := s.sink.ScheduleTask(req)
	if err != nil {
		s.reportScheduleError(name, err)
		return
	}
	s.log.Debug("cadence fired",
		logx.String("name", name),
		logx.String("task", id),
		logx.String("type", string(req.Type)),
	)
}

func (s *Service) reportScheduleError(name string, err error) {
	// Rejections while the scheduler shuts down are expected.
	if errors.Is(err, sched.ErrStopped) {
		s.log.Debug("cadence trigger dropped", logx.String("cadence", name), logx.Any("err", err))
		return
	}

	now := time.Now()
	s.warnMu.Lock()
	last := s.lastWarn[name]
	if !last.IsZero() && now.Sub(last) < scheduleWarnThrottle {
		s.warnMu.Unlock()
		return
	}
	s.lastWarn[name] = now
	s.warnMu.Unlock()

	s.log.Warn("cadence failed to schedule task", logx.String("cadence", name), logx.Any("err", err))
}

func parseClock(v string) (hour, minute int, err error) {
	v = strings.TrimSpace(v)
	parts := strings.Split(v, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", v)
	}
	return h, m, nil
}
