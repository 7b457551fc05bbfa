// Package draftrun implements the stream orchestrator: it drives a
// cancellable inference capability, feeds its text deltas through a
// signalparse.Parser, admits checkpoints, executes backtracks against a
// per-run budget, and commits a final transcript turn.
package draftrun

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/draftloop/draftloop/internal/debuglog"
	"github.com/draftloop/draftloop/internal/draftconfig"
	"github.com/draftloop/draftloop/internal/draftprompt"
	"github.com/draftloop/draftloop/internal/health"
	"github.com/draftloop/draftloop/internal/inference"
	"github.com/draftloop/draftloop/internal/llmmodel"
	"github.com/draftloop/draftloop/internal/signalparse"
)

// health.Ctx gives Processor structured, logged error-wrapping for the one
// failure path that crosses into caller-visible territory: an upstream
// inference failure that survives the client's own retry budget.

// ErrAlreadyRunning is returned when Run is called while a previous Run on
// the same Processor is still in flight. A Processor serializes its own
// calls rather than queuing them.
var ErrAlreadyRunning = errors.New("draftrun: already running")

// errRestart is a private control-flow sentinel: it signals the attempt
// loop to start a fresh attempt after a backtrack. It is never wrapped and
// never returned from Run.
var errRestart = errors.New("draftrun: restart")

// budgetExhaustedSentinel is materialized into the visible stream when a
// backtrack arrives after the budget is spent.
const budgetExhaustedSentinel = " [backtrack budget exhausted] "

// Processor orchestrates one conversation's worth of Run calls against a
// single inference.Client. It is not safe for concurrent Run calls; a
// concurrent call while one is in flight returns ErrAlreadyRunning.
type Processor struct {
	health.Ctx

	client   inference.Client
	settings draftconfig.Settings

	mu         sync.Mutex
	running    bool
	turns      []Turn
	tokenUsage inference.Usage
	ctxTokens  int64
}

// NewProcessor returns a Processor that drives client using settings. Upstream
// failures are logged via slog.Default(); use NewProcessorWithLogger to
// supply a different logger.
func NewProcessor(client inference.Client, settings draftconfig.Settings) *Processor {
	return NewProcessorWithLogger(client, settings, slog.Default())
}

// NewProcessorWithLogger is NewProcessor with an explicit logger for wrapped
// upstream failures. A nil logger disables logging.
func NewProcessorWithLogger(client inference.Client, settings draftconfig.Settings, logger *slog.Logger) *Processor {
	return &Processor{Ctx: health.NewCtx(logger), client: client, settings: settings}
}

// TokenUsage returns the cumulative token usage across every attempt of
// every Run so far.
func (p *Processor) TokenUsage() inference.Usage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenUsage
}

// ContextUsagePercent estimates how much of the model's context window the
// latest completed attempt consumed. Returns 0 when unknown.
func (p *Processor) ContextUsagePercent() int {
	info := llmmodel.GetModelInfo(p.settings.Model)
	if info.ContextWindow <= 0 {
		return 0
	}

	p.mu.Lock()
	used := p.ctxTokens
	p.mu.Unlock()

	if used <= 0 {
		return 0
	}
	return percentOfContext(used, info.ContextWindow)
}

// Turns returns a snapshot of the conversation history so far.
func (p *Processor) Turns() []Turn {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Turn, len(p.turns))
	copy(out, p.turns)
	return out
}

// Run drives one user turn to completion: it streams inference output,
// admits checkpoints, executes backtracks (restarting the attempt each
// time) up to the configured budget, and on success commits a final
// assistant turn. cb is invoked synchronously throughout; see Callbacks.
func (p *Processor) Run(ctx context.Context, userMessage string, cb Callbacks) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.running = true
	p.turns = append(p.turns, Turn{Role: inference.RoleUser, Content: userMessage})
	history := make([]Turn, len(p.turns)-1)
	copy(history, p.turns[:len(p.turns)-1])
	p.mu.Unlock()

	committed := false
	defer func() {
		p.mu.Lock()
		p.running = false
		if !committed {
			// Drop the tentatively appended user turn so a retry from the
			// caller doesn't leave an orphan user turn in history.
			p.turns = p.turns[:len(p.turns)-1]
		}
		p.mu.Unlock()
	}()

	rc := newRunContext(p.settings.DefaultMode, p.settings.MinTokensBetweenSignals)

	for {
		err := p.attempt(ctx, rc, history, userMessage, cb)
		if err == nil {
			break
		}
		if errors.Is(err, errRestart) {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Caller cancellation: the deferred cleanup above rolls back the
			// pending user turn. No callback fires beyond whatever already did.
			return err
		}

		wrapped := p.LogWrappedErr("draftrun: inference stream failed", err)
		cb.onError(wrapped)
		return wrapped
	}

	p.mu.Lock()
	p.turns = append(p.turns, Turn{Role: inference.RoleAssistant, Content: rc.accumulated})
	p.mu.Unlock()

	committed = true
	cb.onDone(rc.accumulated)
	return nil
}

// attempt drives a single pass of the inference stream to completion.
// Returns nil on a successful attempt (the caller should commit), errRestart
// if a backtrack requires a fresh attempt, or any other error on upstream
// failure.
func (p *Processor) attempt(ctx context.Context, rc *runContext, history []Turn, userMessage string, cb Callbacks) error {
	rewound := ""
	if trimmed := strings.TrimSpace(rc.accumulated); trimmed != "" {
		rewound = rc.accumulated
	}
	messages := buildAPIMessages(history, userMessage, rewound)

	temperature := p.effectiveTemperature(rc)
	systemPrompt := draftprompt.BuildSystemPrompt(rc.hints, p.settings.MaxHintLength, rc.mode, temperature, p.settings.Modes)

	full := make([]inference.Message, 0, len(messages)+1)
	full = append(full, inference.Message{Role: inference.RoleSystem, Content: systemPrompt})
	full = append(full, messages...)

	parser := &signalparse.Parser{}
	temp := temperature
	ch := p.client.Stream(ctx, full, &temp)

	for delta := range ch {
		switch delta.Type {
		case inference.DeltaTypeText:
			if delta.Text == "" {
				continue
			}
			events := parser.Feed(delta.Text)
			if restart := p.dispatchEvents(events, rc, cb); restart {
				p.client.Cancel()
				drain(ch)
				return errRestart
			}

		case inference.DeltaTypeRetry:
			debuglog.Log("draftrun: inference retry: %v", delta.Err)

		case inference.DeltaTypeDone:
			p.addUsage(delta.Usage)

		case inference.DeltaTypeError:
			drain(ch)
			return delta.Err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	events := parser.Flush()
	if restart := p.dispatchEvents(events, rc, cb); restart {
		p.client.Cancel()
		return errRestart
	}

	return nil
}

// dispatchEvents processes every event a Feed/Flush call produced, mutating
// rc and invoking callbacks. Reports whether a backtrack requires the
// attempt loop to restart.
func (p *Processor) dispatchEvents(events []signalparse.Event, rc *runContext, cb Callbacks) bool {
	for _, ev := range events {
		switch ev.Type {
		case signalparse.EventText:
			rc.accumulated += ev.Text
			rc.charsSinceSignal += graphemeLen(ev.Text)
			cb.onText(ev.Text)

		case signalparse.EventCheckpoint:
			p.admitCheckpoint(rc, ev.CheckpointID)

		case signalparse.EventBacktrack:
			if p.executeBacktrack(rc, ev.Backtrack, cb) {
				return true
			}
		}
	}
	return false
}

func (p *Processor) admitCheckpoint(rc *runContext, id string) {
	if rc.charsSinceSignal < p.settings.MinTokensBetweenSignals {
		debuglog.Log("draftrun: checkpoint %q dropped, only %d chars since last signal", id, rc.charsSinceSignal)
		return
	}

	pos := graphemeLen(rc.accumulated)
	rc.checkpoints[id] = CheckpointRecord{
		ID:              id,
		Position:        pos,
		AccumulatedText: rc.accumulated,
	}
	rc.charsSinceSignal = 0
}

// executeBacktrack applies one backtrack signal to rc. Reports whether the
// attempt loop must restart (false means the current stream continues
// unaffected, e.g. a dropped or budget-exhausted backtrack).
func (p *Processor) executeBacktrack(rc *runContext, bt signalparse.BacktrackEvent, cb Callbacks) bool {
	if rc.backtracksUsed >= p.settings.MaxBacktracks {
		rc.accumulated += budgetExhaustedSentinel
		rc.charsSinceSignal += graphemeLen(budgetExhaustedSentinel)
		cb.onText(budgetExhaustedSentinel)
		return false
	}

	record, ok := rc.checkpoints[bt.CheckpointID]
	if !ok {
		debuglog.Log("draftrun: backtrack to unknown checkpoint %q dropped", bt.CheckpointID)
		return false
	}

	mode := rc.mode
	if bt.HasMode {
		if _, known := p.settings.ModeTemperature(bt.Mode); known {
			mode = bt.Mode
		} else {
			debuglog.Log("draftrun: backtrack mode %q unknown, field discarded", bt.Mode)
		}
	}

	var temperatureOverride *float64
	if bt.HasTemperature {
		if bt.Temperature >= 0.0 && bt.Temperature <= 1.0 {
			t := bt.Temperature
			temperatureOverride = &t
		} else {
			debuglog.Log("draftrun: backtrack temperature %v out of range, field discarded", bt.Temperature)
		}
	}

	p.client.Cancel()

	rc.accumulated = record.AccumulatedText
	for id, rec := range rc.checkpoints {
		if rec.Position > record.Position {
			delete(rc.checkpoints, id)
		}
	}
	rc.hints = append(rc.hints, bt.Reason)
	rc.mode = mode
	if temperatureOverride != nil {
		rc.temperatureOverride = temperatureOverride
	}
	rc.backtracksUsed++
	rc.charsSinceSignal = p.settings.MinTokensBetweenSignals

	cb.onBacktrack(bt, rc.accumulated)
	return true
}

func (p *Processor) effectiveTemperature(rc *runContext) float64 {
	if rc.temperatureOverride != nil {
		return *rc.temperatureOverride
	}
	if t, ok := p.settings.ModeTemperature(rc.mode); ok {
		return t
	}
	return 0
}

func (p *Processor) addUsage(usage inference.Usage) {
	if usage == (inference.Usage{}) {
		return
	}

	p.mu.Lock()
	p.tokenUsage.TotalInputTokens += usage.TotalInputTokens
	p.tokenUsage.CachedInputTokens += usage.CachedInputTokens
	p.tokenUsage.ReasoningTokens += usage.ReasoningTokens
	p.tokenUsage.TotalOutputTokens += usage.TotalOutputTokens

	if nonCached := clampNonNegative(usage.TotalInputTokens - usage.CachedInputTokens); nonCached > 0 || usage.CachedInputTokens > 0 {
		p.ctxTokens = nonCached + clampNonNegative(usage.CachedInputTokens)
	}
	p.mu.Unlock()
}

func clampNonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func percentOfContext(used, capacity int64) int {
	if used <= 0 || capacity <= 0 {
		return 0
	}
	if used >= capacity {
		return 100
	}
	scaled := used*100 + capacity/2
	percent := int(scaled / capacity)
	if percent > 100 {
		return 100
	}
	return percent
}

// drain exhausts ch until it is closed, discarding every value. Used after
// Cancel() or an error delta so no late delta from an aborted attempt is left
// unread; it returns once the producing goroutine closes the channel.
func drain(ch <-chan inference.Delta) {
	for range ch {
	}
}
