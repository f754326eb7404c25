package loop

import "testing"

func TestAdvanceRoundTrip(t *testing.T) {
	t.Parallel()
	c := NewClock()
	start := c.Step()
	for i := 0; i < Steps; i++ {
		c.Advance()
	}
	if c.Step() != start {
		t.Fatalf("after 12 advances step = %d, want %d", c.Step(), start)
	}
	if c.Cycles() != 1 {
		t.Fatalf("cycles = %d, want 1", c.Cycles())
	}
}

func TestAdvanceThirteen(t *testing.T) {
	t.Parallel()
	c := NewClock()
	start := c.Step()
	for i := 0; i < Steps+1; i++ {
		c.Advance()
	}
	want := (start % Steps) + 1
	if c.Step() != want {
		t.Fatalf("after 13 advances step = %d, want %d", c.Step(), want)
	}
	if c.Cycles() != 1 {
		t.Fatalf("cycles = %d, want 1", c.Cycles())
	}
}

func TestStreamAssignment(t *testing.T) {
	t.Parallel()
	tests := []struct {
		stream int
		steps  [4]int
	}{
		{1, [4]int{1, 4, 7, 10}},
		{2, [4]int{2, 5, 8, 11}},
		{3, [4]int{3, 6, 9, 12}},
	}
	for _, tt := range tests {
		if got := StreamSteps(tt.stream); got != tt.steps {
			t.Fatalf("StreamSteps(%d) = %v, want %v", tt.stream, got, tt.steps)
		}
		for _, s := range tt.steps {
			if got := StreamFor(s); got != tt.stream {
				t.Fatalf("StreamFor(%d) = %d, want %d", s, got, tt.stream)
			}
		}
	}
}

func TestEveryStepHasExactlyOneStream(t *testing.T) {
	t.Parallel()
	seen := map[int]int{}
	for stream := 1; stream <= Streams; stream++ {
		for _, s := range StreamSteps(stream) {
			seen[s]++
		}
	}
	for step := 1; step <= Steps; step++ {
		if seen[step] != 1 {
			t.Fatalf("step %d appears in %d streams", step, seen[step])
		}
	}
}

func TestStepInfo(t *testing.T) {
	t.Parallel()
	expressive := 0
	for step := 1; step <= Steps; step++ {
		mode, phase := StepInfo(step)
		if phase == "" || phase == "Unknown" {
			t.Fatalf("step %d has no phase name", step)
		}
		if mode == ModeExpressive {
			expressive++
		}
	}
	// 7 expressive + 5 reflective.
	if expressive != 7 {
		t.Fatalf("expressive steps = %d, want 7", expressive)
	}

	if mode, phase := StepInfo(0); mode != ModeExpressive || phase != "Unknown" {
		t.Fatalf("StepInfo(0) = (%s, %s)", mode, phase)
	}
}

func TestStreamStatesOffsets(t *testing.T) {
	t.Parallel()
	c := NewClock()
	for i := 0; i < 2*Steps; i++ {
		states := c.StreamStates()
		if states[1] != c.Step() {
			t.Fatalf("stream 1 state = %d, want %d", states[1], c.Step())
		}
		// Streams sit 4 steps apart.
		if want := ((c.Step()+3)%Steps + 1); states[2] != want {
			t.Fatalf("stream 2 state = %d, want %d", states[2], want)
		}
		if want := ((c.Step()+7)%Steps + 1); states[3] != want {
			t.Fatalf("stream 3 state = %d, want %d", states[3], want)
		}
		c.Advance()
	}
}
