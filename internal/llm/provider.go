package llm

import "context"

// Provider defines the interface all LLM providers implement. It is the
// unified abstraction over different model services (Anthropic Claude,
// OpenAI GPT, test mocks). Providers are unreliable, latency-heavy
// external dependencies: every call takes a context and every error is
// translated into the threatforge error taxonomy.
type Provider interface {
	// Name returns the provider name (e.g., "anthropic", "openai", "mock")
	Name() string

	// Complete sends a completion request and returns the full response.
	// This is a blocking call that waits for the entire response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CompleteWithTools sends a completion request with tool definitions.
	// The model may choose to call one or more tools in its response.
	// The tool choice is honored best-effort; providers that cannot force
	// a specific tool proceed unconstrained.
	CompleteWithTools(ctx context.Context, req CompletionRequest, tools []ToolDef, choice ToolChoice) (*CompletionResponse, error)
}
