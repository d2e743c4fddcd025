package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/threatforge/threatforge/internal/schema"
)

// Client wraps a Provider with the two invocation shapes the engine uses:
// structured single-shot completions decoded against a response schema,
// and tool-carrying conversational turns.
type Client struct {
	provider    Provider
	model       string
	temperature float64
	maxTokens   int
	tracer      trace.Tracer
}

// ClientOption configures a Client at construction.
type ClientOption func(*Client)

// WithTemperature sets the sampling temperature placed on every request.
func WithTemperature(temperature float64) ClientOption {
	return func(c *Client) { c.temperature = temperature }
}

// WithMaxTokens caps the completion length of every request.
func WithMaxTokens(maxTokens int) ClientOption {
	return func(c *Client) { c.maxTokens = maxTokens }
}

// NewClient creates a client bound to one provider and model.
func NewClient(provider Provider, model string, opts ...ClientOption) *Client {
	c := &Client{
		provider: provider,
		model:    model,
		tracer:   otel.Tracer("threatforge/llm"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newRequest stamps the client-wide generation parameters onto a request.
func (c *Client) newRequest(systemPrompt string, messages []Message) CompletionRequest {
	return CompletionRequest{
		Model:        c.model,
		SystemPrompt: systemPrompt,
		Messages:     messages,
		Temperature:  c.temperature,
		MaxTokens:    c.maxTokens,
	}
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}

// StructuredResult carries both the raw model text and the extracted JSON
// for a structured invocation. The decoded value lands in the out pointer
// passed to Structured.
type StructuredResult struct {
	Raw  string `json:"raw"`
	JSON string `json:"json"`
}

// Structured sends a system prompt and user message, instructs the model to
// answer with JSON matching responseSchema, and decodes the reply into out.
// Malformed or missing structured output is reported as a parse error
// distinct from provider failure.
func (c *Client) Structured(ctx context.Context, systemPrompt, userMessage string, responseSchema schema.JSONSchema, out any) (*StructuredResult, error) {
	return c.structured(ctx, systemPrompt, NewUserMessage(userMessage), responseSchema, out)
}

// StructuredWithImage is Structured with a binary attachment on the user
// message, typically the architecture diagram. A nil image degrades to a
// plain text invocation.
func (c *Client) StructuredWithImage(ctx context.Context, systemPrompt, userMessage string, image []byte, responseSchema schema.JSONSchema, out any) (*StructuredResult, error) {
	if len(image) == 0 {
		return c.structured(ctx, systemPrompt, NewUserMessage(userMessage), responseSchema, out)
	}
	return c.structured(ctx, systemPrompt, NewUserImageMessage(userMessage, image), responseSchema, out)
}

func (c *Client) structured(ctx context.Context, systemPrompt string, userMessage Message, responseSchema schema.JSONSchema, out any) (*StructuredResult, error) {
	ctx, span := c.tracer.Start(ctx, "llm.structured",
		trace.WithAttributes(attribute.String("llm.model", c.model)))
	defer span.End()

	schemaJSON, err := json.Marshal(responseSchema)
	if err != nil {
		return nil, NewParseError("failed to encode response schema", err)
	}

	system := fmt.Sprintf("%s\n\nRespond with a single JSON document matching this schema, and nothing else:\n%s",
		systemPrompt, string(schemaJSON))

	req := c.newRequest(system, []Message{userMessage})

	resp, err := c.provider.Complete(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, TranslateError(c.provider.Name(), err)
	}

	raw := resp.Message.Content
	jsonStr, err := ExtractJSON(raw)
	if err != nil {
		span.SetStatus(codes.Error, "no structured output")
		return nil, NewParseError("model response contained no structured output", err)
	}

	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		span.SetStatus(codes.Error, "structured output mismatch")
		return nil, NewParseError("model response did not match the expected schema", err)
	}

	span.SetAttributes(attribute.Int("llm.tokens.total", resp.Usage.TotalTokens))
	return &StructuredResult{Raw: raw, JSON: jsonStr}, nil
}

// CompleteWithTools runs one conversational turn with the given history and
// tool set. The returned response may carry tool calls, plain content, or both.
func (c *Client) CompleteWithTools(ctx context.Context, systemPrompt string, history []Message, tools []ToolDef, choice ToolChoice) (*CompletionResponse, error) {
	ctx, span := c.tracer.Start(ctx, "llm.complete_with_tools",
		trace.WithAttributes(
			attribute.String("llm.model", c.model),
			attribute.Int("llm.tools", len(tools)),
			attribute.String("llm.tool_choice", choice.Type),
		))
	defer span.End()

	req := c.newRequest(systemPrompt, history)

	resp, err := c.provider.CompleteWithTools(ctx, req, tools, choice)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, TranslateError(c.provider.Name(), err)
	}

	span.SetAttributes(attribute.Int("llm.tool_calls", len(resp.Message.ToolCalls)))
	return resp, nil
}

// StructuredTool asks for the decision via a forced tool call: the
// response schema is presented as the parameters of a single tool the
// model is told to call by name. Providers that cannot force a tool
// answer however they like, so a response with no matching tool call
// falls back to extracting JSON from the message text.
func (c *Client) StructuredTool(ctx context.Context, systemPrompt, userMessage, toolName string, responseSchema schema.JSONSchema, out any) error {
	ctx, span := c.tracer.Start(ctx, "llm.structured_tool",
		trace.WithAttributes(
			attribute.String("llm.model", c.model),
			attribute.String("llm.tool", toolName),
		))
	defer span.End()

	tool := NewToolDef(toolName,
		"Report the decision. Call this tool exactly once with the decision as its arguments.",
		responseSchema)

	req := c.newRequest(systemPrompt, []Message{NewUserMessage(userMessage)})

	resp, err := c.provider.CompleteWithTools(ctx, req, []ToolDef{tool}, ToolChoiceNamed(toolName))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return TranslateError(c.provider.Name(), err)
	}

	for _, call := range resp.Message.ToolCalls {
		if call.Name == toolName {
			if err := json.Unmarshal([]byte(call.Arguments), out); err != nil {
				span.SetStatus(codes.Error, "tool arguments mismatch")
				return NewParseError("tool call arguments did not match the expected schema", err)
			}
			return nil
		}
	}

	jsonStr, err := ExtractJSON(resp.Message.Content)
	if err != nil {
		span.SetStatus(codes.Error, "no structured output")
		return NewParseError("model response contained neither the tool call nor structured output", err)
	}
	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		span.SetStatus(codes.Error, "structured output mismatch")
		return NewParseError("model response did not match the expected schema", err)
	}
	return nil
}
