package providers

import (
	"fmt"

	"github.com/threatforge/threatforge/internal/llm"
)

// Config holds provider construction options.
type Config struct {
	// APIKey authenticates against the provider. When empty the
	// provider-specific environment variable is consulted.
	APIKey string

	// DefaultModel is used when a request names no model.
	DefaultModel string

	// BaseURL overrides the provider endpoint (OpenAI-compatible gateways).
	BaseURL string
}

// New constructs a provider by name.
func New(name string, cfg Config) (llm.Provider, error) {
	switch name {
	case "anthropic":
		return NewAnthropicProvider(cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	case "mock":
		return NewMockProvider(nil), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", name)
	}
}
