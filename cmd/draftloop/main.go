// Command draftloop is a thin terminal driver: it reads one user message from
// stdin, wires a real OpenAI-backed inference.Client, and drives a
// draftrun.Processor, printing visible text to stdout and backtrack notices
// to stderr as they arrive. The terminal UI proper is out of scope; this exists so the
// protocol can be exercised end to end from a shell.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/draftloop/draftloop/internal/draftconfig"
	"github.com/draftloop/draftloop/internal/draftrun"
	"github.com/draftloop/draftloop/internal/inference"
	"github.com/draftloop/draftloop/internal/llmmodel"
	"github.com/draftloop/draftloop/internal/signalparse"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const statusWidth = 60

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "draftloop:", err)
		os.Exit(1)
	}
}

func run() error {
	settings := draftconfig.New()

	if llmmodel.GetAPIKey(settings.Model) == "" {
		key, err := promptForAPIKey()
		if err != nil {
			return fmt.Errorf("reading API key: %w", err)
		}
		os.Setenv("OPENAI_API_KEY", key)
	}

	message, err := readMessage()
	if err != nil {
		return fmt.Errorf("reading message: %w", err)
	}
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("no message given on stdin")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := inference.NewOpenAIClient(settings.Model)
	processor := draftrun.NewProcessor(client, settings)

	cb := draftrun.Callbacks{
		OnText: func(s string) { fmt.Print(s) },
		OnBacktrack: func(ev signalparse.BacktrackEvent, rewound string) {
			fmt.Fprintf(os.Stderr, "\n[backtrack: %s]\n", ev.Reason)
		},
		OnError: func(err error) { fmt.Fprintln(os.Stderr, "\ndraftloop: stream failed:", err) },
		OnDone:  func(string) { fmt.Println() },
	}

	runErr := processor.Run(ctx, message, cb)
	printStatusLine(processor)
	return runErr
}

// printStatusLine writes a fixed-width usage summary to stderr after a run,
// padded by display width (not byte length) so it lines up under varying
// terminal fonts regardless of how wide the summary text renders.
func printStatusLine(p *draftrun.Processor) {
	usage := p.TokenUsage()
	line := fmt.Sprintf("tokens in=%d out=%d  context=%d%%", usage.TotalInputTokens, usage.TotalOutputTokens, p.ContextUsagePercent())
	if pad := statusWidth - runewidth.StringWidth(line); pad > 0 {
		line += strings.Repeat(" ", pad)
	}
	fmt.Fprintln(os.Stderr, line)
}

func readMessage() (string, error) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var b strings.Builder
	for scanner.Scan() {
		b.WriteString(scanner.Text())
		b.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func promptForAPIKey() (string, error) {
	fmt.Fprint(os.Stderr, "OPENAI_API_KEY not set; enter API key: ")
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("stdin is not a terminal; set OPENAI_API_KEY instead")
	}
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}
