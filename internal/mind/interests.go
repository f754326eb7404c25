package mind

import (
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
)

// TopicInterest tracks the evolving affinity for one topic. Affinity stays
// in [0,1].
type TopicInterest struct {
	Topic        string    `json:"topic"`
	Affinity     float64   `json:"affinity"`
	Exposure     int       `json:"exposure"`
	LastExposure time.Time `json:"last_exposure,omitempty"`
	Insights     int       `json:"insights"`
	Knowledge    int       `json:"knowledge"`
}

// engageThreshold is the minimum affinity for interest-driven engagement.
const engageThreshold = 0.3

// Interests is the topic-affinity map. Topics accrue affinity through
// exposure and decay toward indifference only by being outgrown, never
// automatically.
type Interests struct {
	mu sync.Mutex
	m  map[string]*TopicInterest
}

// NewInterests returns an interest map pre-seeded with the core topics.
func NewInterests() *Interests {
	in := &Interests{m: map[string]*TopicInterest{}}
	for topic, affinity := range map[string]float64{
		"consciousness": 0.8,
		"wisdom":        0.9,
		"learning":      0.7,
	} {
		in.m[topic] = &TopicInterest{Topic: topic, Affinity: affinity}
	}
	return in
}

func (in *Interests) get(topic string) *TopicInterest {
	t, ok := in.m[topic]
	if !ok {
		t = &TopicInterest{Topic: topic, Affinity: 0.5}
		in.m[topic] = t
	}
	return t
}

// Update shifts a topic's affinity by delta, clamped to [0,1], and counts
// the exposure. Reason "insight" and "knowledge" additionally bump the
// matching counters.
func (in *Interests) Update(topic string, delta float64, reason string) TopicInterest {
	topic = strings.TrimSpace(strings.ToLower(topic))
	if topic == "" {
		return TopicInterest{}
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	t := in.get(topic)
	t.Affinity += delta
	if t.Affinity < 0 {
		t.Affinity = 0
	}
	if t.Affinity > 1 {
		t.Affinity = 1
	}
	t.Exposure++
	t.LastExposure = time.Now()
	switch reason {
	case "insight":
		t.Insights++
	case "knowledge":
		t.Knowledge++
	}
	return *t
}

// Affinity reports the current affinity for a topic; unknown topics sit at
// the neutral 0.5.
func (in *Interests) Affinity(topic string) float64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.m[strings.ToLower(topic)]; ok {
		return t.Affinity
	}
	return 0.5
}

// ShouldEngage reports whether the topic clears the engagement threshold.
func (in *Interests) ShouldEngage(topic string) bool {
	return in.Affinity(topic) > engageThreshold
}

// Top returns the n highest-affinity topics, strongest first.
func (in *Interests) Top(n int) []TopicInterest {
	in.mu.Lock()
	out := make([]TopicInterest, 0, len(in.m))
	for _, t := range in.m {
		out = append(out, *t)
	}
	in.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Affinity > out[j].Affinity })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// SuggestTopic picks an exploration topic at random among the three
// strongest interests.
func (in *Interests) SuggestTopic(rng *rand.Rand) string {
	top := in.Top(3)
	if len(top) == 0 {
		return "consciousness"
	}
	return top[rng.Intn(len(top))].Topic
}

// Restore replaces a topic's state wholesale, used when loading persisted
// scores at startup.
func (in *Interests) Restore(t TopicInterest) {
	topic := strings.TrimSpace(strings.ToLower(t.Topic))
	if topic == "" {
		return
	}
	in.mu.Lock()
	cp := t
	cp.Topic = topic
	in.m[topic] = &cp
	in.mu.Unlock()
}
