package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatforge/threatforge/internal/llm"
	"github.com/threatforge/threatforge/internal/llm/providers"
	"github.com/threatforge/threatforge/internal/schema"
)

func decisionSchema() schema.JSONSchema {
	return schema.NewObjectSchema(map[string]schema.SchemaField{
		"stop": schema.NewBooleanField("Whether to stop"),
		"gap":  schema.NewStringField("The gap to close"),
	}, []string{"stop"})
}

type decision struct {
	Stop bool   `json:"stop"`
	Gap  string `json:"gap"`
}

func TestClientStampsGenerationParameters(t *testing.T) {
	mock := providers.NewMockProvider([]providers.MockTurn{
		providers.TextTurn(`{"stop": true, "gap": ""}`),
		providers.TextTurn("done"),
	})
	client := llm.NewClient(mock, "mock-model",
		llm.WithTemperature(0.4),
		llm.WithMaxTokens(2048))

	ctx := context.Background()
	var out decision
	_, err := client.Structured(ctx, "system", "user", decisionSchema(), &out)
	require.NoError(t, err)

	_, err = client.CompleteWithTools(ctx, "system",
		[]llm.Message{llm.NewUserMessage("user")}, nil, llm.ToolChoiceAuto())
	require.NoError(t, err)

	calls := mock.GetCalls()
	require.Len(t, calls, 2)
	for _, call := range calls {
		assert.Equal(t, 0.4, call.Request.Temperature)
		assert.Equal(t, 2048, call.Request.MaxTokens)
	}
}

func TestStructuredToolForcesTheNamedTool(t *testing.T) {
	mock := providers.NewMockProvider([]providers.MockTurn{
		providers.ToolTurn(llm.ToolCall{
			ID:        "c1",
			Name:      "report_decision",
			Arguments: `{"stop": false, "gap": "no DoS coverage"}`,
		}),
	})
	client := llm.NewClient(mock, "mock-model")

	var out decision
	err := client.StructuredTool(context.Background(), "system", "user",
		"report_decision", decisionSchema(), &out)
	require.NoError(t, err)

	assert.False(t, out.Stop)
	assert.Equal(t, "no DoS coverage", out.Gap)

	calls := mock.GetCalls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Tools, 1)
	assert.Equal(t, "report_decision", calls[0].Tools[0].Name)
	assert.Equal(t, "tool", calls[0].ToolChoice.Type)
	assert.Equal(t, "report_decision", calls[0].ToolChoice.Name)
}

func TestStructuredToolFallsBackToTextJSON(t *testing.T) {
	// A provider that cannot force a tool answers in prose; the decision
	// is still recovered from the message text.
	mock := providers.NewMockProvider([]providers.MockTurn{
		providers.TextTurn("The catalog looks complete.\n```json\n{\"stop\": true, \"gap\": \"\"}\n```"),
	})
	client := llm.NewClient(mock, "mock-model")

	var out decision
	err := client.StructuredTool(context.Background(), "system", "user",
		"report_decision", decisionSchema(), &out)
	require.NoError(t, err)
	assert.True(t, out.Stop)
}

func TestStructuredToolRejectsUnparseableReply(t *testing.T) {
	mock := providers.NewMockProvider([]providers.MockTurn{
		providers.TextTurn("I cannot decide."),
	})
	client := llm.NewClient(mock, "mock-model")

	var out decision
	err := client.StructuredTool(context.Background(), "system", "user",
		"report_decision", decisionSchema(), &out)
	assert.Error(t, err)
}
