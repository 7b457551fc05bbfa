package llmmodel

import (
	_ "embed"
)

// Embedded provider configuration document. The protocol only ever talks to
// OpenAI (inference.OpenAIClient is the sole Client implementation), so this
// package registers that one provider rather than carrying a multi-provider
// catalog no component exercises.

//go:embed config/openai.json
var openAIConfig []byte

var embeddedProviderConfigs = map[ProviderID][]byte{
	ProviderIDOpenAI: openAIConfig,
}
