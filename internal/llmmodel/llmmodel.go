package llmmodel

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// ModelID is a user-visible ID for a model from the perspective of consumers of this package. It is NOT (necessarily) the same as the model ID sent to API endpoints.
type ModelID string

// DefaultModel is a good default model. It can be used in tests or in production code.
const DefaultModel ModelID = "gpt-5.2"

// ModelIDUnknown is an unknown model ID (which is also the zero value).
const ModelIDUnknown ModelID = ""

// Valid returns true if it is a known and valid model ID.
func (id ModelID) Valid() bool {
	if id == ModelIDUnknown {
		return false
	}
	modelsMu.RLock()
	defer modelsMu.RUnlock()
	_, ok := modelsByID[id]
	return ok
}

// ModelOverrides holds per-model overrides layered on top of its provider's defaults.
type ModelOverrides struct {
	APIActualKey    string // ex: "123-456"
	APIEnvKey       string // ex: "OPENAI_API_KEY"
	APIEndpointURL  string // ex: "https://api.openai.com/v1"
	ReasoningEffort string // ex: "high"
	ServiceTier     string // ex: "priority"
}

// ProviderID identifies an LLM provider.
type ProviderID string

// Constants for provider IDs. Only OpenAI is registered: it is the only provider
// inference.Client has a concrete implementation for.
const (
	ProviderIDUnknown ProviderID = ""
	ProviderIDOpenAI  ProviderID = "openai"
)

// ModelInfo describes one registered model.
type ModelInfo struct {
	ID              ModelID
	ProviderID      ProviderID
	ProviderModelID string // the model identifier used in API requests.
	IsDefault       bool
	APIEndpointURL  string

	ContextWindow      int64 // ContextWindow is the maximum token capacity supported by the model.
	MaxOutput          int64 // MaxOutput is the max number of output tokens the model can generate per request.
	CanReason          bool  // CanReason reports whether the model supports reasoning modes/capabilities.
	HasReasoningEffort bool  // HasReasoningEffort reports whether the API accepts a "reasoning_effort" parameter (or similar).
	SupportsImages     bool  // SupportsImages reports whether the model accepts image inputs.
	ModelOverrides
}

// GetModelInfo returns information for the corresponding model ID.
func GetModelInfo(id ModelID) ModelInfo {
	if id == ModelIDUnknown {
		return ModelInfo{}
	}
	modelsMu.RLock()
	defer modelsMu.RUnlock()

	info, ok := modelsByID[id]
	if !ok {
		return ModelInfo{}
	}
	return info
}

// GetAPIKey returns the API key for the model with id ("" if not found). This is the precedence:
//  1. ModelInfo.ModelOverrides.APIActualKey
//  2. Env[ModelInfo.ModelOverrides.APIEnvKey]
//  3. Env[the provider's default env var, ex: "OPENAI_API_KEY"]
func GetAPIKey(id ModelID) string {
	info := GetModelInfo(id)
	if info.ID == ModelIDUnknown {
		return ""
	}
	if info.APIActualKey != "" {
		return info.APIActualKey
	}
	if envKey := info.APIEnvKey; envKey != "" {
		if val := os.Getenv(envKey); val != "" {
			return val
		}
	}
	if env := providerEnvVars[info.ProviderID]; env != "" {
		return os.Getenv(env)
	}
	return ""
}

// GetAPIEndpointURL returns the API endpoint URL for the model with id ("" if not found). This is the precedence:
//  1. ModelInfo.ModelOverrides.APIEndpointURL
//  2. ModelInfo.APIEndpointURL
func GetAPIEndpointURL(id ModelID) string {
	info := GetModelInfo(id)
	if info.ID == ModelIDUnknown {
		return ""
	}
	if info.ModelOverrides.APIEndpointURL != "" {
		return info.ModelOverrides.APIEndpointURL
	}
	return info.APIEndpointURL
}

// internal structures and initialization.

type providerConfigFile struct {
	ID             string                 `json:"id"`
	APIEndpointURL string                 `json:"api_endpoint_url"`
	APIKey         string                 `json:"api_key"`
	DefaultModelID string                 `json:"default_model_id"`
	Models         []providerModelPayload `json:"models"`
}

type providerModelPayload struct {
	ID                 string `json:"id"`
	ContextWindow      int64  `json:"context_window"`
	MaxOutput          int64  `json:"max_output"`
	CanReason          bool   `json:"can_reason"`
	HasReasoningEffort bool   `json:"has_reasoning_effort"`
	SupportsImages     bool   `json:"supports_images"`
}

var (
	modelsMu         sync.RWMutex
	modelsByID       = make(map[ModelID]ModelInfo)
	providerEnvVars  = make(map[ProviderID]string)
	providerDefaults = make(map[ProviderID]ModelID)
)

func init() {
	if err := loadProviders(); err != nil {
		panic(err)
	}
}

func loadProviders() error {
	for pid, raw := range embeddedProviderConfigs {
		if len(raw) == 0 {
			return fmt.Errorf("empty embedded config for provider %q", pid)
		}

		var cfg providerConfigFile
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("provider %q config invalid: %w", pid, err)
		}
		if cfg.ID == "" {
			return fmt.Errorf("provider %q has blank id", pid)
		}
		if ProviderID(cfg.ID) != pid {
			return fmt.Errorf("provider id mismatch: expected %q got %q", pid, cfg.ID)
		}
		if len(cfg.Models) == 0 {
			return fmt.Errorf("provider %q has no models", pid)
		}

		envKey := cfg.APIKey
		providerEnvVars[pid] = envKey

		modelsMu.Lock()
		for _, m := range cfg.Models {
			info := ModelInfo{
				ID:                 ModelID(m.ID),
				ProviderID:         pid,
				ProviderModelID:    m.ID,
				IsDefault:          m.ID == cfg.DefaultModelID,
				APIEndpointURL:     cfg.APIEndpointURL,
				ContextWindow:      m.ContextWindow,
				MaxOutput:          m.MaxOutput,
				CanReason:          m.CanReason,
				HasReasoningEffort: m.HasReasoningEffort,
				SupportsImages:     m.SupportsImages,
			}
			modelsByID[info.ID] = info
			if info.IsDefault {
				providerDefaults[pid] = info.ID
			}
		}
		modelsMu.Unlock()
	}
	return nil
}
