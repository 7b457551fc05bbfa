package draftrun

import "github.com/clipperhouse/uax29/v2/graphemes"

// CheckpointRecord is a rewind anchor recorded when a checkpoint signal is
// admitted. Position and AccumulatedText are always in sync: the
// grapheme-cluster length of AccumulatedText equals Position.
type CheckpointRecord struct {
	ID              string
	Position        int
	AccumulatedText string
}

// runContext is the mutable per-Run() state. It is owned exclusively by one
// Run invocation: created on entry, mutated only by the orchestrator's
// attempt loop, discarded on exit.
type runContext struct {
	accumulated string
	checkpoints map[string]CheckpointRecord

	charsSinceSignal int
	hints            []string
	backtracksUsed   int

	mode                string
	temperatureOverride *float64
}

func newRunContext(mode string, minTokensBetweenSignals int) *runContext {
	return &runContext{
		checkpoints:      make(map[string]CheckpointRecord),
		mode:             mode,
		charsSinceSignal: minTokensBetweenSignals, // first checkpoint is always admissible
	}
}

// graphemeLen counts s in Unicode grapheme clusters rather than bytes or
// runes, matching the "characters" semantics used throughout the protocol.
func graphemeLen(s string) int {
	if s == "" {
		return 0
	}
	n := 0
	iter := graphemes.FromString(s)
	for iter.Next() {
		n++
	}
	return n
}
