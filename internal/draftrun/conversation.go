package draftrun

import "github.com/draftloop/draftloop/internal/inference"

// Turn is one entry in a Processor's conversation history.
type Turn struct {
	Role    inference.Role
	Content string
}

// continuationInstruction is appended after a rewound assistant turn on
// retry, telling the model to resume mid-stream rather than restart.
const continuationInstruction = "Continue your response directly from where you left off. " +
	"Do not repeat, summarize, or acknowledge this instruction. Pick up mid-sentence if needed."

// buildAPIMessages assembles the message list sent to the inference capability
// for one attempt: every turn prior to the in-flight user message, the user
// message itself, and — on a retry following a rewind — a synthesized
// assistant/user tail so the model resumes instead of restarting.
func buildAPIMessages(history []Turn, userMessage, rewoundText string) []inference.Message {
	msgs := make([]inference.Message, 0, len(history)+3)
	for _, t := range history {
		msgs = append(msgs, inference.Message{Role: t.Role, Content: t.Content})
	}
	msgs = append(msgs, inference.Message{Role: inference.RoleUser, Content: userMessage})

	if rewoundText != "" {
		msgs = append(msgs, inference.Message{Role: inference.RoleAssistant, Content: rewoundText})
		msgs = append(msgs, inference.Message{Role: inference.RoleUser, Content: continuationInstruction})
	}
	return msgs
}
