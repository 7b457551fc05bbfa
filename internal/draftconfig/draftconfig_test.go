package draftconfig

import "testing"

func TestNew_Defaults(t *testing.T) {
	s := New()
	if s.MaxBacktracks != DefaultMaxBacktracks {
		t.Fatalf("MaxBacktracks = %d, want %d", s.MaxBacktracks, DefaultMaxBacktracks)
	}
	if s.MinTokensBetweenSignals != DefaultMinTokensBetweenSignals {
		t.Fatalf("MinTokensBetweenSignals = %d, want %d", s.MinTokensBetweenSignals, DefaultMinTokensBetweenSignals)
	}
	if s.DefaultMode != DefaultMode {
		t.Fatalf("DefaultMode = %q, want %q", s.DefaultMode, DefaultMode)
	}
	if s.MaxHintLength != DefaultMaxHintLength {
		t.Fatalf("MaxHintLength = %d, want %d", s.MaxHintLength, DefaultMaxHintLength)
	}
	if temp, ok := s.ModeTemperature("balanced"); !ok || temp != 0.6 {
		t.Fatalf("ModeTemperature(balanced) = %v, %v", temp, ok)
	}
	if _, ok := s.ModeTemperature("nonexistent"); ok {
		t.Fatalf("expected unknown mode to report not-ok")
	}
}

func TestNew_Options(t *testing.T) {
	s := New(
		WithMaxBacktracks(3),
		WithMinTokensBetweenSignals(5),
		WithDefaultMode("precise"),
		WithMaxHintLength(50),
		WithModel("gpt-5.2-mini"),
	)
	if s.MaxBacktracks != 3 || s.MinTokensBetweenSignals != 5 || s.DefaultMode != "precise" || s.MaxHintLength != 50 {
		t.Fatalf("unexpected settings after options: %+v", s)
	}
	if s.Model != "gpt-5.2-mini" {
		t.Fatalf("Model = %q", s.Model)
	}
}

func TestWithModes_ReplacesTableWholesale(t *testing.T) {
	custom := map[string]float64{"only": 0.5}
	s := New(WithModes(custom))
	if _, ok := s.ModeTemperature("balanced"); ok {
		t.Fatalf("expected default modes to be replaced, not merged")
	}
	if temp, ok := s.ModeTemperature("only"); !ok || temp != 0.5 {
		t.Fatalf("ModeTemperature(only) = %v, %v", temp, ok)
	}
}
