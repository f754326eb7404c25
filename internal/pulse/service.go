package pulse

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/o9nn/echo.go-sub000/internal/sched"
	logx "github.com/o9nn/echo.go-sub000/pkg/logx"
)

// Sink receives produced task requests. *sched.Service satisfies it.
type Sink interface {
	ScheduleTask(req sched.TaskRequest) (string, error)
}

// Producer builds the task request for one trigger. It is invoked on the
// cron goroutine and must be cheap; expensive work belongs in the request's
// callback.
type Producer = func() sched.TaskRequest

// Config controls the pulse (trigger) service.
type Config struct {
	Enabled  bool
	Timezone string // IANA TZ, e.g. "Asia/Jakarta"
}

type cadenceDef struct {
	id            string
	name          string
	spec          string // cron spec or @every
	produce       Producer
	entryID       cron.EntryID
	startupSpread time.Duration
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	sink Sink

	parser cron.Parser
	c      *cron.Cron
	defs   []cadenceDef

	// Schedule-failure warn throttling, keyed by cadence name.
	warnMu   sync.Mutex
	lastWarn map[string]time.Time
}

// CadenceInfo describes one registered cadence for status surfaces.
type CadenceInfo struct {
	ID            string
	Name          string
	Spec          string
	Next          time.Time
	Prev          time.Time
	StartupSpread time.Duration
}

type Snapshot struct {
	Enabled  bool
	Timezone string
	Cadences []CadenceInfo
}

func New(cfg Config, sink Sink, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:  cfg,
		log:  log,
		sink: sink,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser:   cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		lastWarn: map[string]time.Time{},
	}
}

// Enabled reports the current config flag. Apply may run concurrently.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Apply installs a new config. A timezone change restarts the cron runner
// and re-registers every cadence in the new location.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	newTZ := strings.TrimSpace(cfg.Timezone)
	s.cfg = cfg

	if s.c == nil {
		return
	}
	if oldTZ != newTZ {
		s.restartLocked()
	}
}

// Start begins cron triggering. Cadences registered before Start are
// activated now; Start on a running service is a no-op.
func (s *Service) Start(ctx context.Context) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}

	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	for i := range s.defs {
		_ = s.registerLocked(&s.defs[i])
	}
	s.c.Start()
	s.log.Info("pulse started", logx.String("tz", loc.String()), logx.Int("cadences", len(s.defs)))
}

// Stop halts triggering. Cadence definitions survive so a later Start can
// resume them.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()

	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	s.log.Info("pulse stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) restartLocked() {
	if s.c != nil {
		<-s.c.Stop().Done()
	}
	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	for i := range s.defs {
		_ = s.registerLocked(&s.defs[i])
	}
	s.c.Start()
	s.log.Info("pulse restarted", logx.String("tz", loc.String()), logx.Int("cadences", len(s.defs)))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Any("err", err))
		return time.Local
	}
	return loc
}

// Snapshot reports the registered cadences with next/previous trigger times.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Enabled: s.cfg.Enabled, Timezone: strings.TrimSpace(s.cfg.Timezone)}
	for _, d := range s.defs {
		info := CadenceInfo{
			ID:            d.id,
			Name:          d.name,
			Spec:          d.spec,
			StartupSpread: d.startupSpread,
		}
		if s.c != nil && d.entryID != 0 {
			e := s.c.Entry(d.entryID)
			info.Next, info.Prev = e.Next, e.Prev
		}
		snap.Cadences = append(snap.Cadences, info)
	}
	return snap
}
