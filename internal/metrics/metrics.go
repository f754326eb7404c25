// Package metrics exposes scheduler activity as Prometheus series. It
// feeds counters from the event bus and refreshes gauges from scheduler
// snapshots, so the scheduler itself stays metrics-free.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/o9nn/echo.go-sub000/internal/eventbus"
	"github.com/o9nn/echo.go-sub000/internal/sched"
	logx "github.com/o9nn/echo.go-sub000/pkg/logx"
)

// Config controls the metrics listener.
type Config struct {
	Enabled bool
	Addr    string // e.g. ":9091"
}

const snapshotEvery = 10 * time.Second

// Service owns a private registry; nothing registers globally.
type Service struct {
	cfg      Config
	log      logx.Logger
	bus      eventbus.Bus
	snapshot func() sched.Snapshot

	reg *prometheus.Registry
	srv *http.Server

	tasksScheduled *prometheus.CounterVec
	tasksFinished  *prometheus.CounterVec
	cycles         prometheus.Counter

	pending        prometheus.Gauge
	pendingHigh    prometheus.Gauge
	budgetCost     prometheus.Gauge
	budgetCalls    prometheus.Gauge
	budgetActive   prometheus.Gauge
	currentStep    prometheus.Gauge
	completedTotal prometheus.Gauge

	mu       sync.Mutex
	unsub    func()
	stopCh   chan struct{}
	stopDone chan struct{}
}

func New(cfg Config, bus eventbus.Bus, snapshot func() sched.Snapshot, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Service{
		cfg:      cfg,
		log:      log,
		bus:      bus,
		snapshot: snapshot,
		reg:      reg,

		tasksScheduled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "echo_tasks_scheduled_total",
			Help: "Tasks accepted into the queue, by task type.",
		}, []string{"type"}),
		tasksFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "echo_tasks_finished_total",
			Help: "Tasks reaching a terminal state, by task type and status.",
		}, []string{"type", "status"}),
		cycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "echo_loop_cycles_total",
			Help: "Completed 12-step phase-clock traversals.",
		}),
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "echo_tasks_pending",
			Help: "Tasks currently waiting in the queue.",
		}),
		pendingHigh: factory.NewGauge(prometheus.GaugeOpts{
			Name: "echo_tasks_pending_high_water",
			Help: "Largest pending-queue depth observed since start.",
		}),
		budgetCost: factory.NewGauge(prometheus.GaugeOpts{
			Name: "echo_budget_cost_used",
			Help: "Cost consumed in the current budget window.",
		}),
		budgetCalls: factory.NewGauge(prometheus.GaugeOpts{
			Name: "echo_budget_calls_used",
			Help: "Calls consumed in the current budget window.",
		}),
		budgetActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "echo_budget_active",
			Help: "Callbacks currently holding a concurrency slot.",
		}),
		currentStep: factory.NewGauge(prometheus.GaugeOpts{
			Name: "echo_loop_step",
			Help: "Current phase-clock step (1..12).",
		}),
		completedTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "echo_tasks_completed",
			Help: "Terminal tasks recorded in the history.",
		}),
	}
}

// Handler returns the scrape handler for embedding into another mux.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})
}

// Start subscribes to the bus and, when an address is configured, serves
// /metrics on it.
func (s *Service) Start(ctx context.Context) {
	_ = ctx

	if !s.cfg.Enabled {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.stopDone = make(chan struct{})

	var events <-chan eventbus.Event
	if s.bus != nil {
		events, s.unsub = s.bus.Subscribe(64)
	}
	go s.consume(events, s.stopCh, s.stopDone)

	if s.cfg.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.Handler())
		s.srv = &http.Server{Addr: s.cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		srv := s.srv
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("metrics listener failed", logx.Any("err", err))
			}
		}()
		s.log.Info("metrics listening", logx.String("addr", s.cfg.Addr))
	}
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	stopCh, stopDone := s.stopCh, s.stopDone
	srv := s.srv
	unsub := s.unsub
	s.stopCh, s.stopDone, s.srv, s.unsub = nil, nil, nil, nil
	s.mu.Unlock()

	if stopCh == nil {
		return
	}
	if unsub != nil {
		unsub()
	}
	close(stopCh)
	select {
	case <-stopDone:
	case <-ctx.Done():
	}
	if srv != nil {
		_ = srv.Shutdown(ctx)
	}
}

// consume drains bus events into counters and refreshes the gauges on a
// fixed cadence.
func (s *Service) consume(events <-chan eventbus.Event, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(snapshotEvery)
	defer ticker.Stop()

	s.refresh()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.refresh()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.observe(ev)
		}
	}
}

func (s *Service) observe(ev eventbus.Event) {
	switch ev.Type {
	case eventbus.TypeCycleComplete:
		s.cycles.Inc()
	case eventbus.TypeTaskScheduled:
		if rec, ok := ev.Data.(sched.TaskRecord); ok {
			s.tasksScheduled.WithLabelValues(string(rec.Type)).Inc()
		}
	case eventbus.TypeTaskCompleted, eventbus.TypeTaskFailed:
		if rec, ok := ev.Data.(sched.TaskRecord); ok {
			s.tasksFinished.WithLabelValues(string(rec.Type), string(rec.Status)).Inc()
		}
	}
}

func (s *Service) refresh() {
	if s.snapshot == nil {
		return
	}
	snap := s.snapshot()
	s.pending.Set(float64(snap.PendingTasks))
	s.pendingHigh.Set(float64(snap.PendingHighWater))
	s.budgetCost.Set(float64(snap.Budget.CostUsed))
	s.budgetCalls.Set(float64(snap.Budget.CallsUsed))
	s.budgetActive.Set(float64(snap.Budget.Active))
	s.currentStep.Set(float64(snap.CurrentStep))
	s.completedTotal.Set(float64(snap.CompletedTasks))
}
