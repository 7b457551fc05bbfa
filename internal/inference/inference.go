// Package inference defines the abstract streaming capability the draft orchestrator
// drives: a cancellable source of text deltas, decoupled from any particular LLM
// provider's wire format.
package inference

import (
	"context"
	"errors"
	"time"
)

// Role identifies which party produced a Message.
type Role int

const (
	RoleUser Role = iota
	RoleSystem
	RoleAssistant
)

// Message is one turn of conversation sent to the model. The orchestrator only ever
// sends plain text turns; there are no tool calls in this protocol.
type Message struct {
	Role    Role
	Content string
}

// DeltaType distinguishes the shapes a Client can send on its stream.
type DeltaType string

const (
	// DeltaTypeText carries a chunk of assistant text as it is generated.
	DeltaTypeText DeltaType = "text"
	// DeltaTypeDone marks a successful end of stream. Usage may be set.
	DeltaTypeDone DeltaType = "done"
	// DeltaTypeError marks a terminal failure of the stream.
	DeltaTypeError DeltaType = "error"
	// DeltaTypeRetry indicates a transient error is being retried; the stream continues.
	DeltaTypeRetry DeltaType = "retry"
)

// Usage reports provider-side token accounting for a completed turn.
type Usage struct {
	TotalInputTokens  int64
	CachedInputTokens int64
	ReasoningTokens   int64
	TotalOutputTokens int64
}

// Delta is one event yielded by Client.Stream.
type Delta struct {
	Type  DeltaType
	Text  string // new text, only set for DeltaTypeText
	Usage Usage  // only meaningfully set for DeltaTypeDone
	Err   error  // only set for DeltaTypeError/DeltaTypeRetry
}

// Client is the abstract streaming capability consumed by the orchestrator. It never
// exposes provider-specific concepts: just a channel of deltas and a way to cancel it.
//
// Implementations must tolerate Cancel being called when no stream is active (a no-op),
// and must tolerate being called again for a new Stream after a prior one completed or
// was cancelled.
type Client interface {
	// Stream starts a streaming completion for messages (the first of which should be a
	// system message) using the temperature hint, and returns a channel of deltas.
	// The channel is closed after a DeltaTypeDone or DeltaTypeError delta is sent, or
	// when ctx is done. temperature may be nil to let the capability pick a default.
	Stream(ctx context.Context, messages []Message, temperature *float64) <-chan Delta

	// Cancel aborts any in-flight stream started by Stream. Idempotent; safe to call
	// when idle.
	Cancel()
}

// ErrRetryable marks an error as transient and worth retrying with backoff.
var ErrRetryable = errors.New("inference: retryable")

func makeRetryable(err error) error { return errors.Join(ErrRetryable, err) }
func isRetryable(err error) bool    { return errors.Is(err, ErrRetryable) }

// retrySleepDurations' i'th index is the sleep duration before the i'th retry. Any
// retry beyond the slice length reuses the last value. Mixes an eager first retry
// with exponential backoff, long enough for transient blips to clear but short
// enough that a caller doesn't think the stream hung.
var retrySleepDurations = []time.Duration{
	10 * time.Millisecond,
	500 * time.Millisecond,
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
}

func retrySleep(attempt int) time.Duration {
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(retrySleepDurations) {
		idx = len(retrySleepDurations) - 1
	}
	return retrySleepDurations[idx]
}
