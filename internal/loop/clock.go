package loop

// Mode is the cognitive processing mode of a step.
type Mode string

const (
	ModeExpressive Mode = "expressive" // outward-focused, action-oriented
	ModeReflective Mode = "reflective" // inward-focused, contemplative
)

// Steps is the number of steps in one full cycle.
const Steps = 12

// Streams is the number of logical concurrent streams.
// Each stream occupies every 4th step (120° phase offset).
const Streams = 3

type stepDef struct {
	mode  Mode
	phase string
}

// The 12-step cycle: 7 expressive steps and 5 reflective ones.
// Steps group into 4 repeating triads, each instance 3 steps apart:
// {1,5,9} relevance realization, {2,6,10} affordance interaction,
// {3,7,11} salience simulation, {4,8,12} meta-reflection.
var stepDefs = [Steps]stepDef{
	{ModeExpressive, "Relevance Realization 1"},
	{ModeExpressive, "Affordance Interaction 1"},
	{ModeExpressive, "Salience Simulation 1"},
	{ModeReflective, "Meta-Reflection 1"},
	{ModeExpressive, "Relevance Realization 2"},
	{ModeExpressive, "Affordance Interaction 2"},
	{ModeExpressive, "Salience Simulation 2"},
	{ModeReflective, "Meta-Reflection 2"},
	{ModeExpressive, "Relevance Realization 3"},
	{ModeReflective, "Affordance Interaction 3"},
	{ModeReflective, "Salience Simulation 3"},
	{ModeReflective, "Meta-Reflection 3"},
}

// streamSteps assigns steps to streams, 4 steps apart.
var streamSteps = map[int][4]int{
	1: {1, 4, 7, 10}, // perception-action
	2: {2, 5, 8, 11}, // reflection-planning
	3: {3, 6, 9, 12}, // simulation-synthesis
}

// Clock is the deterministic 12-step cycle generator.
//
// It is a pure step counter with no timers of its own; the scheduler driver
// advances it once per tick. Clock is not goroutine-safe: the owning
// scheduler serializes all access.
type Clock struct {
	step   int
	cycles uint64
}

// NewClock returns a clock positioned at step 1, cycle 0.
func NewClock() *Clock {
	return &Clock{step: 1}
}

// Step returns the current step (1..12).
func (c *Clock) Step() int { return c.step }

// Cycles returns the number of completed 12-step traversals.
func (c *Clock) Cycles() uint64 { return c.cycles }

// Advance moves the clock one step forward and returns the new step.
// Wrapping from step 12 to 1 increments the cycle count.
func (c *Clock) Advance() int {
	c.step++
	if c.step > Steps {
		c.step = 1
		c.cycles++
	}
	return c.step
}

// StepInfo returns the mode and phase name for a step.
// Out-of-range steps report expressive/"Unknown" rather than failing;
// the clock itself never produces such a step.
func StepInfo(step int) (Mode, string) {
	if step < 1 || step > Steps {
		return ModeExpressive, "Unknown"
	}
	d := stepDefs[step-1]
	return d.mode, d.phase
}

// StreamFor returns the stream (1..3) whose step set contains step.
func StreamFor(step int) int {
	for id, steps := range streamSteps {
		for _, s := range steps {
			if s == step {
				return id
			}
		}
	}
	return 1
}

// StreamSteps returns the step set of a stream (1..3).
func StreamSteps(stream int) [4]int {
	if s, ok := streamSteps[stream]; ok {
		return s
	}
	return streamSteps[1]
}

// StreamStates returns the current step as seen by each of the 3 streams.
// Streams run 4 steps (120°) apart, so stream N observes the clock shifted
// by 4*(N-1) steps.
func (c *Clock) StreamStates() map[int]int {
	return map[int]int{
		1: c.step,
		2: ((c.step + 3) % Steps) + 1,
		3: ((c.step + 7) % Steps) + 1,
	}
}
