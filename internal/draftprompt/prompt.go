// Package draftprompt builds the system prompt that teaches a model the
// checkpoint/backtrack protocol and carries forward hints accumulated across
// backtracks within a single run.
package draftprompt

import (
	"bytes"
	_ "embed"
	"sort"
	"strings"
	"text/template"
	"unicode"
)

var (
	//go:embed fragments/protocol.md
	protocolSection string

	//go:embed fragments/state.md
	stateSection string

	//go:embed fragments/constraints.md
	constraintsSection string
)

// modeEntry is one row of the rendered mode table, in a deterministic order
// (map iteration order is not, hence this intermediate slice).
type modeEntry struct {
	Name        string
	Temperature float64
}

// BuildSystemPrompt renders the full system prompt for one inference attempt.
// hints accumulate across backtracks within a single run and are sanitized
// and truncated to maxHintLength before being rendered; an empty hints list
// omits the constraints fragment entirely.
func BuildSystemPrompt(hints []string, maxHintLength int, mode string, effectiveTemperature float64, modes map[string]float64) string {
	sections := []string{
		strings.TrimSpace(protocolSection),
		renderFragment(stateSection, map[string]any{
			"Mode":        mode,
			"Temperature": effectiveTemperature,
			"Modes":       sortedModes(modes),
		}),
	}

	if cleaned := sanitizeHints(hints, maxHintLength); len(cleaned) > 0 {
		sections = append(sections, renderFragment(constraintsSection, map[string]any{
			"Hints": cleaned,
		}))
	}

	return strings.Join(sections, "\n\n")
}

func sortedModes(modes map[string]float64) []modeEntry {
	entries := make([]modeEntry, 0, len(modes))
	for name, temp := range modes {
		entries = append(entries, modeEntry{Name: name, Temperature: temp})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// sanitizeHints strips non-printable characters (keeping ordinary spaces)
// from each hint and truncates it to maxHintLength runes.
func sanitizeHints(hints []string, maxHintLength int) []string {
	cleaned := make([]string, 0, len(hints))
	for _, h := range hints {
		s := sanitizeHint(h, maxHintLength)
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}

func sanitizeHint(hint string, maxHintLength int) string {
	var b strings.Builder
	count := 0
	for _, r := range hint {
		if maxHintLength > 0 && count >= maxHintLength {
			break
		}
		if r != ' ' && (unicode.IsControl(r) || !unicode.IsPrint(r)) {
			continue
		}
		b.WriteRune(r)
		count++
	}
	return strings.TrimSpace(b.String())
}

func renderFragment(fragment string, data any) string {
	tmpl, err := template.New("fragment").Option("missingkey=zero").Parse(strings.TrimSpace(fragment))
	if err != nil {
		return fragment
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fragment
	}
	return strings.TrimSpace(buf.String())
}
