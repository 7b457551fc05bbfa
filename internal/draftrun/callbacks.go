package draftrun

import "github.com/draftloop/draftloop/internal/signalparse"

// Callbacks is the surface a caller (a CLI, a TUI, a chat UI) uses to observe
// a Run(). Any field may be left nil; nil callbacks are no-ops. Every
// callback is invoked synchronously on the goroutine running Run — Go has no
// implicit futures, so a caller that needs to do async work from a callback
// is responsible for its own synchronization before the callback returns.
type Callbacks struct {
	// OnText is called once per emitted text event, in the order the
	// characters appear after tag stripping. Append it to the current
	// assistant bubble.
	OnText func(text string)

	// OnBacktrack fires after a backtrack has been executed: rewound is the
	// full accumulated text as of the checkpoint it rewound to. It always
	// fires before the first OnText of the next attempt.
	OnBacktrack func(ev signalparse.BacktrackEvent, rewound string)

	// OnError fires at most once, in place of OnDone, when the inference
	// stream fails. Caller cancellation and ErrAlreadyRunning fire neither
	// OnError nor OnDone.
	OnError func(err error)

	// OnDone fires at most once, after all OnText of the accepted final
	// attempt, when Run succeeds.
	OnDone func(final string)
}

func (cb Callbacks) onText(text string) {
	if cb.OnText != nil {
		cb.OnText(text)
	}
}

func (cb Callbacks) onBacktrack(ev signalparse.BacktrackEvent, rewound string) {
	if cb.OnBacktrack != nil {
		cb.OnBacktrack(ev, rewound)
	}
}

func (cb Callbacks) onError(err error) {
	if cb.OnError != nil {
		cb.OnError(err)
	}
}

func (cb Callbacks) onDone(final string) {
	if cb.OnDone != nil {
		cb.OnDone(final)
	}
}
