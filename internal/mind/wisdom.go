package mind

import "sync"

// WisdomState tracks cultivation progress. All component scores live in
// [0,1]; InsightRate is insights per synthesis pass.
type WisdomState struct {
	KnowledgeDepth      float64 `json:"knowledge_depth"`
	ReasoningQuality    float64 `json:"reasoning_quality"`
	InsightRate         float64 `json:"insight_rate"`
	BehavioralCoherence float64 `json:"behavioral_coherence"`
	TotalInsights       int     `json:"total_insights"`
	TotalKnowledge      int     `json:"total_knowledge"`
	Thoughts            int     `json:"thoughts"`
	Cycles              int     `json:"cycles"`
}

// Overall folds the component scores into one wisdom figure.
func (w WisdomState) Overall() float64 {
	ir := w.InsightRate / 10
	if ir > 1 {
		ir = 1
	}
	return w.KnowledgeDepth*0.3 + w.ReasoningQuality*0.3 + ir*0.2 + w.BehavioralCoherence*0.2
}

// Wisdom is the concurrent wrapper; scheduler callbacks on different
// streams update it simultaneously.
type Wisdom struct {
	mu sync.Mutex
	st WisdomState
}

func NewWisdom() *Wisdom { return &Wisdom{} }

func (w *Wisdom) State() WisdomState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.st
}

// NoteThought records one generated thought. Reasoning quality grows
// slowly with total output.
func (w *Wisdom) NoteThought() {
	w.mu.Lock()
	w.st.Thoughts++
	w.st.ReasoningQuality = clamp01(float64(w.st.Thoughts) / 1000)
	w.mu.Unlock()
}

// NoteInsight records a synthesis insight and refreshes the insight rate.
func (w *Wisdom) NoteInsight() {
	w.mu.Lock()
	w.st.TotalInsights++
	if w.st.Cycles > 0 {
		w.st.InsightRate = float64(w.st.TotalInsights) / float64(w.st.Cycles)
	}
	w.mu.Unlock()
}

// NoteKnowledge records n acquired knowledge items. Depth saturates at 100
// items.
func (w *Wisdom) NoteKnowledge(n int) {
	w.mu.Lock()
	w.st.TotalKnowledge += n
	w.st.KnowledgeDepth = clamp01(float64(w.st.TotalKnowledge) / 100)
	w.mu.Unlock()
}

// NoteCycle records one completed synthesis cycle. Coherence grows with
// sustained operation.
func (w *Wisdom) NoteCycle() {
	w.mu.Lock()
	w.st.Cycles++
	w.st.BehavioralCoherence = clamp01(float64(w.st.Cycles) / 100)
	w.mu.Unlock()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
