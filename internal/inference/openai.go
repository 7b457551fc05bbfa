package inference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/draftloop/draftloop/internal/health"
	"github.com/draftloop/draftloop/internal/llmmodel"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"
)

// OpenAIClient wraps the OpenAI Responses API streaming endpoint as a Client. One
// instance is meant to back a single draftrun.Processor: it keeps at most one
// in-flight stream and a stable prompt-cache key so repeated system-prompt prefixes
// across attempts of the same run are eligible for provider-side caching.
type OpenAIClient struct {
	health.Ctx

	modelID        llmmodel.ModelID
	promptCacheKey string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewOpenAIClient returns a Client backed by modelID. The API key/endpoint are
// resolved via llmmodel.GetAPIKey/GetAPIEndpointURL, which layer environment
// variables over provider defaults. Terminal stream failures are logged via
// slog.Default(); use NewOpenAIClientWithLogger for a different logger. Retries
// are not logged here; they are reported on the stream as DeltaTypeRetry.
func NewOpenAIClient(modelID llmmodel.ModelID) *OpenAIClient {
	return NewOpenAIClientWithLogger(modelID, slog.Default())
}

// NewOpenAIClientWithLogger is NewOpenAIClient with an explicit logger.
func NewOpenAIClientWithLogger(modelID llmmodel.ModelID, logger *slog.Logger) *OpenAIClient {
	return &OpenAIClient{
		Ctx:            health.NewCtx(logger),
		modelID:        modelID,
		promptCacheKey: newPromptCacheKey(),
	}
}

func (c *OpenAIClient) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (c *OpenAIClient) Stream(ctx context.Context, messages []Message, temperature *float64) <-chan Delta {
	out := make(chan Delta, 64)

	streamCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			c.mu.Lock()
			if c.cancel != nil {
				c.cancel()
				c.cancel = nil
			}
			c.mu.Unlock()
		}()

		modelInfo := llmmodel.GetModelInfo(c.modelID)
		if modelInfo.ID == llmmodel.ModelIDUnknown {
			sendDelta(streamCtx, out, Delta{Type: DeltaTypeError, Err: fmt.Errorf("inference: unknown model %q", c.modelID)})
			return
		}

		apiKey := llmmodel.GetAPIKey(c.modelID)
		if apiKey == "" {
			sendDelta(streamCtx, out, Delta{Type: DeltaTypeError, Err: fmt.Errorf("inference: no API key configured for model %q", c.modelID)})
			return
		}

		const maxAttempts = 3
		var err error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			err = c.streamOnce(streamCtx, out, messages, temperature, modelInfo, apiKey)
			if err == nil {
				return
			}
			if !isRetryable(err) || attempt >= maxAttempts {
				break
			}

			sleep := retrySleep(attempt)
			timer := time.NewTimer(sleep)
			select {
			case <-timer.C:
			case <-streamCtx.Done():
				timer.Stop()
				sendDelta(streamCtx, out, Delta{Type: DeltaTypeError, Err: streamCtx.Err()})
				return
			}
			sendDelta(streamCtx, out, Delta{Type: DeltaTypeRetry, Err: err})
		}

		sendDelta(streamCtx, out, Delta{Type: DeltaTypeError, Err: c.LogWrappedErr("inference: openai stream failed", err, "model", c.modelID)})
	}()

	return out
}

// streamOnce performs a single attempt against the Responses API streaming endpoint.
// Returns nil on success (a DeltaTypeDone has already been sent) or an error, which
// may be wrapped with ErrRetryable.
func (c *OpenAIClient) streamOnce(ctx context.Context, out chan<- Delta, messages []Message, temperature *float64, modelInfo llmmodel.ModelInfo, apiKey string) error {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL := llmmodel.GetAPIEndpointURL(c.modelID); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	params := responses.ResponseNewParams{
		Model: modelInfo.ProviderModelID,
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: buildInputItems(messages)},
	}
	if c.promptCacheKey != "" {
		params.PromptCacheKey = param.NewOpt(c.promptCacheKey)
	}
	if temperature != nil {
		params.Temperature = param.NewOpt(*temperature)
	}

	stream := client.Responses.NewStreaming(ctx, params)
	if stream == nil {
		return fmt.Errorf("inference: openai stream unavailable")
	}
	defer stream.Close()

	var textBuilder strings.Builder
	var usage Usage

	for stream.Next() {
		evt := stream.Current()

		switch evt.Type {
		case "response.output_text.delta":
			d := evt.AsResponseOutputTextDelta()
			if d.Delta == "" {
				continue
			}
			textBuilder.WriteString(d.Delta)
			if !sendDelta(ctx, out, Delta{Type: DeltaTypeText, Text: d.Delta}) {
				return ctx.Err()
			}
		case "response.completed":
			completed := evt.AsResponseCompleted()
			usage = usageFromResponse(completed.Response)
			debugPrint("response.completed", usage)
			sendDelta(ctx, out, Delta{Type: DeltaTypeDone, Usage: usage})
			return nil
		case "response.failed":
			failed := evt.AsResponseFailed()
			msg := failed.Response.Error.Message
			if msg == "" {
				msg = "openai response failed"
			}
			return makeRetryable(fmt.Errorf("%s (code=%s)", msg, failed.Response.Error.Code))
		case "response.incomplete":
			incomplete := evt.AsResponseIncomplete()
			reason := incomplete.Response.IncompleteDetails.Reason
			if reason == "" {
				reason = "incomplete"
			}
			return fmt.Errorf("inference: response incomplete: %s", reason)
		case "error":
			errEvt := evt.AsError()
			msg := errEvt.Message
			if msg == "" {
				msg = "openai streaming error"
			}
			return fmt.Errorf("%s (code=%s)", msg, errEvt.Code)
		}
	}

	if err := stream.Err(); err != nil {
		return makeRetryable(err)
	}

	// Stream closed without an explicit completed/failed event: treat whatever text
	// accumulated as a (possibly empty) successful turn rather than hanging forever.
	sendDelta(ctx, out, Delta{Type: DeltaTypeDone, Usage: usage})
	return nil
}

func usageFromResponse(resp responses.Response) Usage {
	return Usage{
		TotalInputTokens:  resp.Usage.InputTokens,
		CachedInputTokens: resp.Usage.InputTokensDetails.CachedTokens,
		ReasoningTokens:   resp.Usage.OutputTokensDetails.ReasoningTokens,
		TotalOutputTokens: resp.Usage.OutputTokens,
	}
}

func buildInputItems(messages []Message) responses.ResponseInputParam {
	items := make(responses.ResponseInputParam, 0, len(messages))
	for _, m := range messages {
		content := responses.ResponseInputMessageContentListParam{
			responses.ResponseInputContentParamOfInputText(m.Content),
		}
		msg := responses.EasyInputMessageParam{
			Role:    mapRole(m.Role),
			Type:    "message",
			Content: responses.EasyInputMessageContentUnionParam{OfInputItemContentList: content},
		}
		items = append(items, responses.ResponseInputItemUnionParam{OfMessage: &msg})
	}
	return items
}

func mapRole(r Role) responses.EasyInputMessageRole {
	switch r {
	case RoleSystem:
		return responses.EasyInputMessageRoleSystem
	case RoleAssistant:
		return responses.EasyInputMessageRoleAssistant
	default:
		return responses.EasyInputMessageRoleUser
	}
}

// sendDelta sends d on out, but fast-fails if ctx is done. Reports whether d was sent.
func sendDelta(ctx context.Context, out chan<- Delta, d Delta) bool {
	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}
