package draftprompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var testModes = map[string]float64{
	"precise":     0.2,
	"exploratory": 0.9,
	"adversarial": 0.7,
	"balanced":    0.6,
}

func TestBuildSystemPrompt_NoHintsOmitsConstraints(t *testing.T) {
	prompt := BuildSystemPrompt(nil, 200, "balanced", 0.6, testModes)
	assert.Contains(t, prompt, "<<checkpoint:")
	assert.Contains(t, prompt, "<<backtrack:")
	assert.Contains(t, prompt, "balanced")
	assert.NotContains(t, prompt, "Constraints for This Attempt")
}

func TestBuildSystemPrompt_ListsAllModes(t *testing.T) {
	prompt := BuildSystemPrompt(nil, 200, "precise", 0.2, testModes)
	for name := range testModes {
		assert.Contains(t, prompt, name)
	}
}

func TestBuildSystemPrompt_IncludesHints(t *testing.T) {
	prompt := BuildSystemPrompt([]string{"avoid off-by-one errors", "be concise"}, 200, "balanced", 0.6, testModes)
	assert.Contains(t, prompt, "Constraints for This Attempt")
	assert.Contains(t, prompt, "avoid off-by-one errors")
	assert.Contains(t, prompt, "be concise")
}

func TestBuildSystemPrompt_HintsAreTruncatedAndSanitized(t *testing.T) {
	dirty := "this has a\x00null and\ttab then " + strings.Repeat("x", 50)
	prompt := BuildSystemPrompt([]string{dirty}, 20, "balanced", 0.6, testModes)

	if strings.Contains(prompt, "\x00") {
		t.Fatalf("expected non-printable byte to be stripped from prompt")
	}
	if strings.Contains(prompt, strings.Repeat("x", 50)) {
		t.Fatalf("expected hint to be truncated to 20 characters, found full run of x's")
	}
}

func TestSanitizeHint_KeepsOrdinarySpaces(t *testing.T) {
	got := sanitizeHint("two  spaces", 100)
	if got != "two  spaces" {
		t.Fatalf("sanitizeHint altered ordinary spaces: %q", got)
	}
}

func TestSanitizeHint_DropsControlCharacters(t *testing.T) {
	got := sanitizeHint("a\nb\tc\x01d", 100)
	if strings.ContainsAny(got, "\n\t\x01") {
		t.Fatalf("expected control characters to be stripped, got %q", got)
	}
}
