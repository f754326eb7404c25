package mind

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/o9nn/echo.go-sub000/internal/sched"
	"github.com/o9nn/echo.go-sub000/internal/storage"
	logx "github.com/o9nn/echo.go-sub000/pkg/logx"
)

// Config controls the built-in cognitive cadences.
type Config struct {
	Enabled bool

	ThoughtEvery       time.Duration
	ExplorationEvery   time.Duration
	SynthesisEvery     time.Duration
	GoalEvery          time.Duration
	ConsolidationEvery time.Duration
	ReflectionEvery    time.Duration

	MaxActiveGoals int
}

func (c Config) withDefaults() Config {
	def := func(d *time.Duration, v time.Duration) {
		if *d <= 0 {
			*d = v
		}
	}
	def(&c.ThoughtEvery, 90*time.Second)
	def(&c.ExplorationEvery, 5*time.Minute)
	def(&c.SynthesisEvery, 10*time.Minute)
	def(&c.GoalEvery, 7*time.Minute)
	def(&c.ConsolidationEvery, 15*time.Minute)
	def(&c.ReflectionEvery, 20*time.Minute)
	if c.MaxActiveGoals <= 0 {
		c.MaxActiveGoals = 3
	}
	return c
}

// Goal is one self-directed learning objective.
type Goal struct {
	ID          string    `json:"id"`
	Topic       string    `json:"topic"`
	Description string    `json:"description"`
	Priority    float64   `json:"priority"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Service owns the cognitive state and exposes the callbacks the scheduler
// runs. The store may be nil; the mind then lives entirely in memory.
type Service struct {
	cfg   Config
	log   logx.Logger
	store storage.Store

	interests *Interests
	wisdom    *Wisdom

	rmu sync.Mutex
	rng *rand.Rand

	gmu   sync.Mutex
	goals map[string]*Goal

	hmu      sync.Mutex
	lastSeen string // most recent thought content, for echoes
}

func New(cfg Config, store storage.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:       cfg.withDefaults(),
		log:       log,
		store:     store,
		interests: NewInterests(),
		wisdom:    NewWisdom(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		goals:     map[string]*Goal{},
	}
	s.restoreInterests()
	return s
}

func (s *Service) restoreInterests() {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	scores, err := s.store.Interests(ctx)
	if err != nil {
		s.log.Warn("interest restore failed", logx.Any("err", err))
		return
	}
	for _, sc := range scores {
		s.interests.Restore(TopicInterest{Topic: sc.Topic, Affinity: sc.Score, LastExposure: sc.UpdatedAt})
	}
	if len(scores) > 0 {
		s.log.Info("interests restored", logx.Int("topics", len(scores)))
	}
}

// Interests exposes the live interest map for status surfaces.
func (s *Service) Interests() *Interests { return s.interests }

// Wisdom exposes the live wisdom metrics.
func (s *Service) Wisdom() WisdomState { return s.wisdom.State() }

// Goals returns the active goals, a copy.
func (s *Service) Goals() []Goal {
	s.gmu.Lock()
	defer s.gmu.Unlock()
	out := make([]Goal, 0, len(s.goals))
	for _, g := range s.goals {
		out = append(out, *g)
	}
	return out
}

// Registry is the cadence surface the mind registers itself on.
// *pulse.Service satisfies it.
type Registry interface {
	AddInterval(name string, every time.Duration, produce func() sched.TaskRequest) (string, error)
}

// RegisterCadences installs the built-in recurring cognition on the
// registry. Each cadence produces a task request carrying the matching
// callback.
func (s *Service) RegisterCadences(reg Registry) error {
	cadences := []struct {
		name  string
		every time.Duration
		req   sched.TaskRequest
	}{
		{"thought-generation", s.cfg.ThoughtEvery, sched.TaskRequest{
			Type: sched.TypeThoughtGeneration, Description: "spontaneous thought", Callback: s.GenerateThought,
		}},
		{"interest-exploration", s.cfg.ExplorationEvery, sched.TaskRequest{
			Type: sched.TypeInterestExploration, Description: "explore a strong interest", Priority: sched.PriorityLow, Callback: s.ExploreInterest,
		}},
		{"wisdom-synthesis", s.cfg.SynthesisEvery, sched.TaskRequest{
			Type: sched.TypeWisdomSynthesis, Description: "fold recent activity into wisdom metrics", Callback: s.SynthesizeWisdom,
		}},
		{"goal-formation", s.cfg.GoalEvery, sched.TaskRequest{
			Type: sched.TypeGoalFormation, Description: "form a learning goal", Priority: sched.PriorityLow, Callback: s.FormGoal,
		}},
		{"memory-consolidation", s.cfg.ConsolidationEvery, sched.TaskRequest{
			Type: sched.TypeMemoryConsolidation, Description: "replay and consolidate recent thoughts", Priority: sched.PriorityBackground, Callback: s.ConsolidateMemory,
		}},
		{"meta-reflection", s.cfg.ReflectionEvery, sched.TaskRequest{
			Type: sched.TypeMetaReflection, Description: "review cognitive posture", Priority: sched.PriorityBackground, Callback: s.Reflect,
		}},
	}
	for _, c := range cadences {
		c := c
		if _, err := reg.AddInterval(c.name, c.every, func() sched.TaskRequest { return c.req }); err != nil {
			return err
		}
	}
	s.log.Info("cognitive cadences registered", logx.Int("count", len(cadences)))
	return nil
}

// GenerateThought composes one thought about a current interest, updates
// the affinity and persists it.
func (s *Service) GenerateThought(ctx context.Context, params map[string]any) (any, error) {
	topic := s.pickTopic()

	s.hmu.Lock()
	prior := s.lastSeen
	s.hmu.Unlock()

	s.rmu.Lock()
	content := composeThought(s.rng, topic, paramString(params, "mode"), prior)
	s.rmu.Unlock()

	it := s.interests.Update(topic, 0.05, "exposure")
	s.wisdom.NoteThought()

	s.hmu.Lock()
	s.lastSeen = content
	s.hmu.Unlock()

	th := storage.Thought{
		ID:       uuid.NewString(),
		At:       time.Now(),
		Type:     string(sched.TypeThoughtGeneration),
		Stream:   paramInt(params, "stream"),
		Step:     paramInt(params, "step"),
		Mode:     paramString(params, "mode"),
		Topic:    topic,
		Content:  content,
		Interest: it.Affinity,
		Wisdom:   s.wisdom.State().Overall(),
	}
	if s.store != nil {
		if err := s.store.AppendThought(ctx, th); err != nil {
			return nil, err
		}
		if err := s.store.UpsertInterest(ctx, topic, it.Affinity, time.Now()); err != nil {
			return nil, err
		}
	}
	return th, nil
}

// ExploreInterest deepens a strong interest slightly and, now and then,
// opens a fresh curiosity topic instead.
func (s *Service) ExploreInterest(ctx context.Context, params map[string]any) (any, error) {
	_ = ctx
	_ = params
	s.rmu.Lock()
	fresh := s.rng.Float64() >= 0.7
	var topic string
	if fresh {
		topic = curiosityTopics[s.rng.Intn(len(curiosityTopics))]
	} else {
		topic = s.interests.SuggestTopic(s.rng)
	}
	s.rmu.Unlock()

	it := s.interests.Update(topic, 0.02, "knowledge")
	s.wisdom.NoteKnowledge(1)
	if s.store != nil {
		if err := s.store.UpsertInterest(ctx, topic, it.Affinity, time.Now()); err != nil {
			return nil, err
		}
	}
	return it, nil
}

// SynthesizeWisdom closes one cultivation cycle; crossing an overall-score
// decile counts as an insight.
func (s *Service) SynthesizeWisdom(ctx context.Context, params map[string]any) (any, error) {
	_ = ctx
	_ = params
	before := s.wisdom.State().Overall()
	s.wisdom.NoteCycle()
	after := s.wisdom.State().Overall()
	if int(after*10) > int(before*10) {
		s.wisdom.NoteInsight()
		if top := s.interests.Top(1); len(top) > 0 {
			s.interests.Update(top[0].Topic, 0.03, "insight")
		}
	}
	return s.wisdom.State(), nil
}

// FormGoal opens a new learning goal around a suggested topic, bounded by
// MaxActiveGoals.
func (s *Service) FormGoal(ctx context.Context, params map[string]any) (any, error) {
	_ = ctx
	_ = params
	s.gmu.Lock()
	active := 0
	for _, g := range s.goals {
		if g.Status == "active" {
			active++
		}
	}
	if active >= s.cfg.MaxActiveGoals {
		s.gmu.Unlock()
		return nil, nil
	}
	s.gmu.Unlock()

	s.rmu.Lock()
	topic := s.interests.SuggestTopic(s.rng)
	s.rmu.Unlock()

	g := &Goal{
		ID:          uuid.NewString()[:8],
		Topic:       topic,
		Description: "acquire foundational understanding of " + topic,
		Priority:    s.interests.Affinity(topic),
		Status:      "active",
		CreatedAt:   time.Now(),
	}
	s.gmu.Lock()
	s.goals[g.ID] = g
	s.gmu.Unlock()

	s.log.Debug("goal formed", logx.String("id", g.ID), logx.String("topic", topic))
	return *g, nil
}

// ConsolidateMemory replays the recent thought journal and retires goals
// whose topics have saturated.
func (s *Service) ConsolidateMemory(ctx context.Context, params map[string]any) (any, error) {
	_ = params
	replayed := 0
	if s.store != nil {
		recent, err := s.store.RecentThoughts(ctx, 20)
		if err != nil {
			return nil, err
		}
		for _, th := range recent {
			if th.Topic != "" {
				s.interests.Update(th.Topic, 0.01, "exposure")
			}
		}
		replayed = len(recent)
	}

	retired := 0
	s.gmu.Lock()
	for _, g := range s.goals {
		if g.Status == "active" && s.interests.Affinity(g.Topic) >= 0.95 {
			g.Status = "achieved"
			retired++
		}
	}
	s.gmu.Unlock()

	return map[string]any{"replayed": replayed, "goals_retired": retired}, nil
}

// Reflect reports the cognitive posture: wisdom, strongest interests and
// goal load.
func (s *Service) Reflect(ctx context.Context, params map[string]any) (any, error) {
	_ = ctx
	_ = params
	st := s.wisdom.State()
	top := s.interests.Top(5)
	s.log.Info("meta reflection",
		logx.Float64("wisdom", st.Overall()),
		logx.Int("thoughts", st.Thoughts),
		logx.Int("insights", st.TotalInsights),
		logx.Int("goals", len(s.Goals())),
	)
	return map[string]any{"wisdom": st, "top_interests": top}, nil
}

// pickTopic chooses an interest-driven topic 70% of the time, else a raw
// curiosity topic.
func (s *Service) pickTopic() string {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	if s.rng.Float64() < 0.7 {
		return s.interests.SuggestTopic(s.rng)
	}
	return curiosityTopics[s.rng.Intn(len(curiosityTopics))]
}

func paramString(m map[string]any, k string) string {
	if v, ok := m[k].(string); ok {
		return v
	}
	return ""
}

func paramInt(m map[string]any, k string) int {
	if v, ok := m[k].(int); ok {
		return v
	}
	return 0
}
