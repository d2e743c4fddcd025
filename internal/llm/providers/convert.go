package providers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/threatforge/threatforge/internal/llm"
)

// toLangchainMessages converts threatforge messages to langchaingo
// MessageContent, preserving tool calls and tool results so multi-turn
// tool conversations round-trip through the provider.
func toLangchainMessages(systemPrompt string, messages []llm.Message) []llms.MessageContent {
	result := make([]llms.MessageContent, 0, len(messages)+1)

	if systemPrompt != "" {
		result = append(result, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		})
	}

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			result = append(result, llms.MessageContent{
				Role:  llms.ChatMessageTypeSystem,
				Parts: []llms.ContentPart{llms.TextPart(msg.Content)},
			})

		case llm.RoleAssistant:
			parts := make([]llms.ContentPart, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				parts = append(parts, llms.TextPart(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			result = append(result, llms.MessageContent{
				Role:  llms.ChatMessageTypeAI,
				Parts: parts,
			})

		case llm.RoleTool:
			result = append(result, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: msg.ToolCallID,
						Content:    msg.Content,
					},
				},
			})

		default:
			parts := []llms.ContentPart{llms.TextPart(msg.Content)}
			if len(msg.Image) > 0 {
				parts = append(parts, llms.BinaryPart(http.DetectContentType(msg.Image), msg.Image))
			}
			result = append(result, llms.MessageContent{
				Role:  llms.ChatMessageTypeHuman,
				Parts: parts,
			})
		}
	}

	return result
}

// fromLangchainResponse converts a langchaingo response to a threatforge response
func fromLangchainResponse(resp *llms.ContentResponse, model string) *llm.CompletionResponse {
	if resp == nil {
		return &llm.CompletionResponse{
			Model: model,
			ID:    uuid.New().String(),
		}
	}

	var content string
	var toolCalls []llm.ToolCall
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		content = choice.Content

		if len(choice.ToolCalls) > 0 {
			toolCalls = make([]llm.ToolCall, 0, len(choice.ToolCalls))
			for _, tc := range choice.ToolCalls {
				var name, arguments string
				if tc.FunctionCall != nil {
					name = tc.FunctionCall.Name
					arguments = tc.FunctionCall.Arguments
				}

				id := tc.ID
				if id == "" {
					id = uuid.New().String()
				}

				toolCalls = append(toolCalls, llm.ToolCall{
					ID:        id,
					Name:      name,
					Arguments: arguments,
				})
			}
		}
	}

	finishReason := llm.FinishReasonStop
	if len(resp.Choices) > 0 {
		switch resp.Choices[0].StopReason {
		case "stop", "end_turn", "":
			finishReason = llm.FinishReasonStop
		case "length", "max_tokens":
			finishReason = llm.FinishReasonLength
		case "tool_calls", "tool_use", "function_call":
			finishReason = llm.FinishReasonToolCalls
		case "content_filter":
			finishReason = llm.FinishReasonContentFilter
		default:
			finishReason = llm.FinishReasonStop
		}

		if len(toolCalls) > 0 && finishReason == llm.FinishReasonStop {
			finishReason = llm.FinishReasonToolCalls
		}
	}

	return &llm.CompletionResponse{
		ID:    uuid.New().String(),
		Model: model,
		Message: llm.Message{
			Role:      llm.RoleAssistant,
			Content:   content,
			ToolCalls: toolCalls,
		},
		FinishReason: finishReason,
		Usage:        llm.CompletionTokenUsage{},
	}
}

// buildCallOptions converts a threatforge request to langchaingo call options
func buildCallOptions(req llm.CompletionRequest) []llms.CallOption {
	callOpts := make([]llms.CallOption, 0)

	if req.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(req.Temperature))
	}

	if req.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(req.MaxTokens))
	}

	if req.Model != "" {
		callOpts = append(callOpts, llms.WithModel(req.Model))
	}

	return callOpts
}

// toLangchainTools converts threatforge ToolDefs to langchaingo Tool format
func toLangchainTools(tools []llm.ToolDef) []llms.Tool {
	if len(tools) == 0 {
		return nil
	}

	result := make([]llms.Tool, 0, len(tools))
	for _, tool := range tools {
		result = append(result, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters.ToMap(),
			},
		})
	}
	return result
}

// buildCallOptionsWithTools adds tools and the tool-choice policy to call options.
// A named choice maps to the provider's forced-tool mechanism where one exists;
// otherwise the provider treats it as unconstrained and the caller parses
// the response defensively.
func buildCallOptionsWithTools(req llm.CompletionRequest, tools []llm.ToolDef, choice llm.ToolChoice) []llms.CallOption {
	callOpts := buildCallOptions(req)
	if len(tools) > 0 {
		callOpts = append(callOpts, llms.WithTools(toLangchainTools(tools)))
	}

	switch choice.Type {
	case "tool":
		if choice.Name != "" {
			callOpts = append(callOpts, llms.WithToolChoice(map[string]any{
				"type":     "function",
				"function": map[string]any{"name": choice.Name},
			}))
		}
	}

	return callOpts
}
