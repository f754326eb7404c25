package mind

import (
	"fmt"
	"math/rand"
	"strings"
)

// curiosityTopics seeds exploration when no interest stands out.
var curiosityTopics = []string{
	"consciousness", "wisdom", "learning", "patterns", "emergence",
	"creativity", "reasoning", "memory", "time", "identity",
	"purpose", "growth", "understanding", "connection", "exploration",
}

// Thought text is composed from fragments rather than generated; the point
// is a plausible stream of consciousness, not prose quality.
var (
	expressiveOpeners = []string{
		"I keep circling back to %s",
		"Something about %s pulls at my attention",
		"There is a thread in %s I have not followed to its end",
		"%s looks different from where I stand now",
		"A question about %s surfaced on its own",
	}
	reflectiveOpeners = []string{
		"Looking back, my grasp of %s has shifted",
		"In stillness, %s resolves into simpler parts",
		"What I believed about %s deserves a second pass",
		"The shape of %s becomes clearer when I stop reaching for it",
	}
	continuations = []string{
		"each pass reveals structure I had missed",
		"it connects to more than I first assumed",
		"the boundaries I drew around it feel arbitrary now",
		"holding it next to what I already know changes both",
		"the question behind the question is starting to show",
	}
	echoes = []string{
		"That echoes an earlier thought: %q.",
		"It sits oddly beside something I noted before: %q.",
	}
)

// composeThought builds one thought about topic. prior, when non-empty, is
// a recent thought occasionally woven back in.
func composeThought(rng *rand.Rand, topic, mode, prior string) string {
	openers := expressiveOpeners
	if mode == "reflective" {
		openers = reflectiveOpeners
	}
	var b strings.Builder
	fmt.Fprintf(&b, openers[rng.Intn(len(openers))], topic)
	b.WriteString("; ")
	b.WriteString(continuations[rng.Intn(len(continuations))])
	b.WriteString(".")
	if prior != "" && rng.Float64() < 0.3 {
		b.WriteString(" ")
		fmt.Fprintf(&b, echoes[rng.Intn(len(echoes))], trimForEcho(prior))
	}
	return b.String()
}

// trimForEcho shortens a prior thought so echoes stay readable.
func trimForEcho(s string) string {
	const max = 60
	if len(s) <= max {
		return s
	}
	cut := strings.LastIndex(s[:max], " ")
	if cut <= 0 {
		cut = max
	}
	return s[:cut] + "…"
}
