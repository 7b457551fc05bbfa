// Package draftconfig holds the process-wide defaults for a draftrun.Processor
// and the functional options used to override them per instance.
package draftconfig

import "github.com/draftloop/draftloop/internal/llmmodel"

// DefaultMaxBacktracks is the hard cap on backtracks per Run, absent an override.
const DefaultMaxBacktracks = 8

// DefaultMinTokensBetweenSignals is the minimum run of accumulated characters
// required before a checkpoint is admitted.
const DefaultMinTokensBetweenSignals = 20

// DefaultMode is the mode a Run starts in absent an override.
const DefaultMode = "balanced"

// DefaultMaxHintLength is the per-hint sanitized character cap.
const DefaultMaxHintLength = 200

// Settings configures a draftrun.Processor. Zero value is not meaningful;
// use New to get a populated Settings with defaults applied.
type Settings struct {
	Model                   llmmodel.ModelID
	MaxBacktracks           int
	MinTokensBetweenSignals int
	DefaultMode             string
	MaxHintLength           int
	Modes                   map[string]float64
}

// DefaultModes is the built-in name-to-temperature table. Callers that
// override Modes wholesale via WithModes are responsible for including
// whatever name they set as DefaultMode.
func DefaultModes() map[string]float64 {
	return map[string]float64{
		"precise":     0.2,
		"exploratory": 0.9,
		"adversarial": 0.7,
		"balanced":    0.6,
	}
}

// Option mutates a Settings being built by New.
type Option func(*Settings)

// New returns a Settings populated with defaults, then applies opts in order.
func New(opts ...Option) Settings {
	s := Settings{
		Model:                   llmmodel.DefaultModel,
		MaxBacktracks:           DefaultMaxBacktracks,
		MinTokensBetweenSignals: DefaultMinTokensBetweenSignals,
		DefaultMode:             DefaultMode,
		MaxHintLength:           DefaultMaxHintLength,
		Modes:                   DefaultModes(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithModel overrides the LLM model identifier.
func WithModel(model llmmodel.ModelID) Option {
	return func(s *Settings) { s.Model = model }
}

// WithMaxBacktracks overrides the per-run backtrack budget.
func WithMaxBacktracks(n int) Option {
	return func(s *Settings) { s.MaxBacktracks = n }
}

// WithMinTokensBetweenSignals overrides the minimum characters required
// between admitted signals.
func WithMinTokensBetweenSignals(n int) Option {
	return func(s *Settings) { s.MinTokensBetweenSignals = n }
}

// WithDefaultMode overrides the mode a run starts in.
func WithDefaultMode(mode string) Option {
	return func(s *Settings) { s.DefaultMode = mode }
}

// WithMaxHintLength overrides the per-hint sanitized character cap.
func WithMaxHintLength(n int) Option {
	return func(s *Settings) { s.MaxHintLength = n }
}

// WithModes replaces the mode-to-temperature table wholesale.
func WithModes(modes map[string]float64) Option {
	return func(s *Settings) { s.Modes = modes }
}

// ModeTemperature returns the default temperature for mode, and whether mode
// is known.
func (s Settings) ModeTemperature(mode string) (float64, bool) {
	t, ok := s.Modes[mode]
	return t, ok
}
