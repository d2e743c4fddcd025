package llm

import (
	"encoding/json"
	"fmt"

	"github.com/threatforge/threatforge/internal/schema"
)

// ToolDef defines a tool that an LLM can call during completion.
type ToolDef struct {
	// Name is the unique identifier for this tool
	Name string `json:"name"`

	// Description explains what the tool does and when to use it
	Description string `json:"description"`

	// Parameters defines the JSON schema for the tool's input parameters
	Parameters schema.JSONSchema `json:"parameters"`
}

// NewToolDef creates a new tool definition with the given name, description, and parameters
func NewToolDef(name, description string, params schema.JSONSchema) ToolDef {
	if params.Type == "" {
		params.Type = "object"
	}

	return ToolDef{
		Name:        name,
		Description: description,
		Parameters:  params,
	}
}

// Validate checks if the tool definition is valid
func (t ToolDef) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}

	if t.Description == "" {
		return fmt.Errorf("tool description is required")
	}

	if t.Parameters.Type != "" && t.Parameters.Type != "object" {
		return fmt.Errorf("tool parameters must be an object schema, got %s", t.Parameters.Type)
	}

	return nil
}

// ToolChoice controls which tool (if any) the provider is asked to call.
type ToolChoice struct {
	// Type is "auto" or "tool".
	Type string `json:"type"`

	// Name is the forced tool name when Type is "tool". Forcing a specific
	// tool is provider-dependent: providers that cannot force proceed
	// unconstrained and callers parse the response defensively.
	Name string `json:"name,omitempty"`
}

// ToolChoiceAuto lets the model decide whether to call a tool.
func ToolChoiceAuto() ToolChoice {
	return ToolChoice{Type: "auto"}
}

// ToolChoiceNamed asks the model to call one specific tool.
func ToolChoiceNamed(name string) ToolChoice {
	return ToolChoice{Type: "tool", Name: name}
}

// ToolCall represents a tool call made by the LLM during completion.
type ToolCall struct {
	// ID is a unique identifier for this tool call
	ID string `json:"id"`

	// Name is the name of the tool to call
	Name string `json:"name"`

	// Arguments contains the JSON-encoded arguments for the tool
	Arguments string `json:"arguments"`
}

// ParseArguments deserializes the tool call arguments into the provided type.
func (t ToolCall) ParseArguments(v any) error {
	if t.Arguments == "" {
		return fmt.Errorf("tool call arguments are empty")
	}

	if err := json.Unmarshal([]byte(t.Arguments), v); err != nil {
		return fmt.Errorf("failed to parse tool call arguments: %w", err)
	}

	return nil
}

// Validate checks if the tool call is valid
func (t ToolCall) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("tool call ID is required")
	}

	if t.Name == "" {
		return fmt.Errorf("tool call name is required")
	}

	if t.Arguments == "" {
		return fmt.Errorf("tool call arguments are required")
	}

	var tmp any
	if err := json.Unmarshal([]byte(t.Arguments), &tmp); err != nil {
		return fmt.Errorf("tool call arguments must be valid JSON: %w", err)
	}

	return nil
}

// ToolResult represents the result of executing a tool call.
// This is returned to the LLM so it can incorporate the result into its response.
type ToolResult struct {
	// ToolCallID is the ID of the tool call this result corresponds to
	ToolCallID string `json:"tool_call_id"`

	// Content is the result content to return to the LLM
	Content string `json:"content"`

	// IsError indicates whether the tool execution resulted in an error
	IsError bool `json:"is_error,omitempty"`
}

// NewToolResult creates a successful tool result
func NewToolResult(toolCallID string, content string) ToolResult {
	return ToolResult{
		ToolCallID: toolCallID,
		Content:    content,
		IsError:    false,
	}
}

// NewToolError creates an error tool result
func NewToolError(toolCallID string, errorMessage string) ToolResult {
	return ToolResult{
		ToolCallID: toolCallID,
		Content:    errorMessage,
		IsError:    true,
	}
}
