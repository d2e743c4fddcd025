package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/threatforge/threatforge/internal/llm"
)

// MockCall records one call to the mock provider.
type MockCall struct {
	Request    llm.CompletionRequest
	Tools      []llm.ToolDef
	ToolChoice llm.ToolChoice
}

// MockTurn scripts one response from the mock provider. Exactly one of
// Response or Err is consumed per call, in script order; the last turn
// repeats once the script is exhausted.
type MockTurn struct {
	Response *llm.CompletionResponse
	Err      error
}

// TextTurn scripts a plain assistant text response.
func TextTurn(content string) MockTurn {
	return MockTurn{Response: &llm.CompletionResponse{
		ID:           uuid.New().String(),
		Model:        "mock-model",
		Message:      llm.NewAssistantMessage(content),
		FinishReason: llm.FinishReasonStop,
	}}
}

// ToolTurn scripts an assistant response carrying tool calls.
func ToolTurn(calls ...llm.ToolCall) MockTurn {
	return MockTurn{Response: &llm.CompletionResponse{
		ID:    uuid.New().String(),
		Model: "mock-model",
		Message: llm.Message{
			Role:      llm.RoleAssistant,
			ToolCalls: calls,
		},
		FinishReason: llm.FinishReasonToolCalls,
	}}
}

// ErrTurn scripts a provider failure.
func ErrTurn(err error) MockTurn {
	return MockTurn{Err: err}
}

// MockProvider implements llm.Provider for testing. Responses are scripted
// as turns; all calls are recorded for assertions.
type MockProvider struct {
	mu        sync.Mutex
	turns     []MockTurn
	turnIndex int
	calls     []MockCall
}

// NewMockProvider creates a mock provider with the given script.
func NewMockProvider(turns []MockTurn) *MockProvider {
	return &MockProvider{
		turns: turns,
		calls: make([]MockCall, 0),
	}
}

// Name returns the provider name
func (p *MockProvider) Name() string {
	return "mock"
}

// Complete returns the next scripted turn
func (p *MockProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return p.next(ctx, MockCall{Request: req})
}

// CompleteWithTools returns the next scripted turn. The mock cannot force
// tool choice; the script decides what comes back.
func (p *MockProvider) CompleteWithTools(ctx context.Context, req llm.CompletionRequest, tools []llm.ToolDef, choice llm.ToolChoice) (*llm.CompletionResponse, error) {
	return p.next(ctx, MockCall{Request: req, Tools: tools, ToolChoice: choice})
}

func (p *MockProvider) next(ctx context.Context, call MockCall) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, call)

	if len(p.turns) == 0 {
		return nil, llm.NewProviderError("mock", fmt.Errorf("no responses configured"))
	}

	idx := p.turnIndex
	if idx >= len(p.turns) {
		idx = len(p.turns) - 1
	}
	p.turnIndex++

	turn := p.turns[idx]
	if turn.Err != nil {
		return nil, turn.Err
	}

	resp := *turn.Response
	return &resp, nil
}

// GetCalls returns all recorded calls (thread-safe)
func (p *MockProvider) GetCalls() []MockCall {
	p.mu.Lock()
	defer p.mu.Unlock()

	calls := make([]MockCall, len(p.calls))
	copy(calls, p.calls)
	return calls
}

// CallCount returns the number of calls made so far
func (p *MockProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// SetTurns replaces the script and rewinds it
func (p *MockProvider) SetTurns(turns []MockTurn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.turns = turns
	p.turnIndex = 0
}

// Reset clears recorded calls and rewinds the script
func (p *MockProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = make([]MockCall, 0)
	p.turnIndex = 0
}
