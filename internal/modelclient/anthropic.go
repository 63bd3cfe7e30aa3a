package modelclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient drives the agent loop against the Anthropic Messages API.
type AnthropicClient struct {
	sdk       anthropic.Client
	maxTokens int64
}

// NewAnthropicClient constructs a Client using apiKey (falls back to the
// SDK's default environment-variable resolution when empty).
func NewAnthropicClient(apiKey string, maxTokens int64) *AnthropicClient {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &AnthropicClient{
		sdk:       anthropic.NewClient(opts...),
		maxTokens: maxTokens,
	}
}

// Run implements Client.
func (c *AnthropicClient) Run(ctx context.Context, req Request, executor ToolExecutor) (<-chan Event, error) {
	out := make(chan Event, 64)
	go c.runLoop(ctx, req, executor, out)
	return out, nil
}

func (c *AnthropicClient) runLoop(ctx context.Context, req Request, executor ToolExecutor, out chan<- Event) {
	defer close(out)

	model := anthropic.Model(req.Model)
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
	}

	maxTurns := req.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 1
	}

	for turn := 0; turn < maxTurns; turn++ {
		select {
		case <-ctx.Done():
			emit(ctx, out, Event{Type: EventError, Text: ctx.Err().Error()})
			return
		default:
		}

		params := anthropic.MessageNewParams{
			Model:     model,
			MaxTokens: c.maxTokens,
			System:    []anthropic.TextBlockParam{{Text: req.SystemPrompt}},
			Messages:  messages,
			Tools:     toolDefinitions(),
		}
		if req.Temperature != nil {
			params.Temperature = anthropic.Float(*req.Temperature)
		}

		resp, err := c.sdk.Messages.New(ctx, params)
		if err != nil {
			emit(ctx, out, Event{Type: EventError, Text: fmt.Sprintf("model call failed: %v", err)})
			return
		}

		usage := Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens}

		var assistantBlocks []anthropic.ContentBlockParamUnion
		var toolResultBlocks []anthropic.ContentBlockParamUnion

		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				emit(ctx, out, Event{Type: EventAssistant, Text: variant.Text, Usage: usage})
				assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(variant.Text))

			case anthropic.ToolUseBlock:
				call := ToolCall{ID: variant.ID, Name: variant.Name, Input: decodeToolInput(variant.Input)}
				emit(ctx, out, Event{Type: EventContentBlockStart, Tool: &call, Usage: usage})

				result := executor.Execute(ctx, call)
				emit(ctx, out, Event{Type: EventUser, Text: result.Content})

				assistantBlocks = append(assistantBlocks, anthropic.NewToolUseBlock(variant.ID, variant.Input, variant.Name))
				toolResultBlocks = append(toolResultBlocks, anthropic.NewToolResultBlock(variant.ID, result.Content, result.IsError))
			}
		}

		if resp.StopReason == anthropic.StopReasonEndTurn {
			var finalText string
			for _, block := range resp.Content {
				if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
					finalText += variant.Text
				}
			}
			emit(ctx, out, Event{Type: EventResult, Text: finalText, Usage: usage, StopTurn: true})
			return
		}

		messages = append(messages, anthropic.NewAssistantMessage(assistantBlocks...))
		if len(toolResultBlocks) > 0 {
			messages = append(messages, anthropic.NewUserMessage(toolResultBlocks...))
		}
	}

	emit(ctx, out, Event{Type: EventResult, Text: "", StopTurn: true})
}

func emit(ctx context.Context, out chan<- Event, event Event) {
	select {
	case out <- event:
	case <-ctx.Done():
	}
}

func decodeToolInput(raw []byte) map[string]any {
	var decoded map[string]any
	if len(raw) == 0 {
		return nil
	}
	_ = json.Unmarshal(raw, &decoded)
	return decoded
}
