// Package loop implements the 12-step phase clock that paces cognitive task
// execution.
//
// One tick of the scheduler advances the clock one step. Three logical
// streams share the cycle at a 120° offset (4 steps apart), so all three
// make progress within every cycle without true parallelism.
package loop
