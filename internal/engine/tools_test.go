package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatforge/threatforge/internal/llm"
	"github.com/threatforge/threatforge/internal/llm/providers"
	"github.com/threatforge/threatforge/internal/threat"
	"github.com/threatforge/threatforge/internal/types"
)

func analyzedState(iteration int) *AgentState {
	state := NewAgentState(iteration)
	state.Assets = []Asset{
		{Type: AssetTypeAsset, Name: "API", Description: "the API"},
		{Type: AssetTypeAsset, Name: "Database", Description: "the DB"},
	}
	state.Architecture = Architecture{
		ThreatSources: []ThreatSource{{Category: "External attacker", Description: "d", Example: "e"}},
	}
	return state
}

func newToolContext(state *AgentState, limits Limits) *ToolContext {
	return &ToolContext{
		State:   state,
		Monitor: &stubMonitor{},
		Limits:  limits.withDefaults(),
		Logger:  discardLogger(),
	}
}

func addThreatsCall(threatJSONs ...string) llm.ToolCall {
	return llm.ToolCall{
		ID:   "call-1",
		Name: toolAddThreats,
		Arguments: fmt.Sprintf(`{"threats": [%s]}`,
			joinJSON(threatJSONs)),
	}
}

func joinJSON(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ", "
		}
		out += item
	}
	return out
}

func TestAddThreatsValidBatch(t *testing.T) {
	eng, _ := newTestEngine(t, Limits{}, nil)
	state := analyzedState(0)
	tctx := newToolContext(state, Limits{})

	result, err := eng.executeTool(context.Background(), addThreatsCall(threatJSON("T1")), tctx)
	require.NoError(t, err)

	assert.False(t, result.IsError)
	assert.Contains(t, result.Content, "added 1")
	assert.Equal(t, []string{"T1"}, state.ThreatList.Names())
	assert.Equal(t, 1, state.ToolUse)
}

func TestAddThreatsForcesStarredOff(t *testing.T) {
	eng, _ := newTestEngine(t, Limits{}, nil)
	state := analyzedState(0)
	tctx := newToolContext(state, Limits{})

	starred := `{
		"name": "Sneaky", "stride_category": "Spoofing", "description": "d",
		"target": "API", "impact": "i", "likelihood": "High",
		"mitigations": ["m1", "m2"], "source": "External attacker",
		"starred": true
	}`

	_, err := eng.executeTool(context.Background(), addThreatsCall(starred), tctx)
	require.NoError(t, err)

	require.Len(t, state.ThreatList, 1)
	assert.False(t, state.ThreatList[0].Starred, "model-added threats never arrive starred")
}

func TestAddThreatsOneInvalidRejectsWholeBatch(t *testing.T) {
	eng, _ := newTestEngine(t, Limits{}, nil)
	state := analyzedState(0)
	tctx := newToolContext(state, Limits{})

	bad := `{
		"name": "Bad", "stride_category": "Tampering", "description": "d",
		"target": "Load Balancer", "impact": "i", "likelihood": "Low",
		"mitigations": ["m1", "m2"], "source": "External attacker"
	}`

	result, err := eng.executeTool(context.Background(), addThreatsCall(threatJSON("Good"), bad), tctx)
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "no budget was consumed")
	assert.Contains(t, result.Content, "Load Balancer")
	assert.Empty(t, state.ThreatList, "catalog untouched when any candidate is invalid")
	assert.Equal(t, 0, state.ToolUse, "budget untouched when any candidate is invalid")
}

func TestAddThreatsStructuralViolationRejects(t *testing.T) {
	eng, _ := newTestEngine(t, Limits{}, nil)
	state := analyzedState(0)
	tctx := newToolContext(state, Limits{})

	tooFewMitigations := `{
		"name": "Thin", "stride_category": "Tampering", "description": "d",
		"target": "API", "impact": "i", "likelihood": "Low",
		"mitigations": ["only one"], "source": "External attacker"
	}`

	result, err := eng.executeTool(context.Background(), addThreatsCall(tooFewMitigations), tctx)
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Empty(t, state.ThreatList)
	assert.Equal(t, 0, state.ToolUse)
}

func TestAddThreatsBudgetRefusalPointsAtGapAnalysis(t *testing.T) {
	eng, _ := newTestEngine(t, Limits{}, nil)
	state := analyzedState(0)
	limits := Limits{MaxAddThreatsUses: 2, MaxGapAnalysisUses: 3}
	tctx := newToolContext(state, limits)
	state.ToolUse = 2

	result, err := eng.executeTool(context.Background(), addThreatsCall(threatJSON("T1")), tctx)
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "call gap_analysis")
	assert.Empty(t, state.ThreatList)
	assert.Equal(t, 2, state.ToolUse, "refusal consumes nothing")
}

func TestAddThreatsBudgetRefusalWhenGapAlsoSpent(t *testing.T) {
	eng, _ := newTestEngine(t, Limits{}, nil)
	state := analyzedState(0)
	limits := Limits{MaxAddThreatsUses: 2, MaxGapAnalysisUses: 1}
	tctx := newToolContext(state, limits)
	state.ToolUse = 2
	state.GapToolUse = 1

	result, err := eng.executeTool(context.Background(), addThreatsCall(threatJSON("T1")), tctx)
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "no gap_analysis uses remain")
	assert.Equal(t, 2, state.ToolUse)
	assert.Equal(t, 1, state.GapToolUse)
}

func TestRemoveThreat(t *testing.T) {
	eng, _ := newTestEngine(t, Limits{}, nil)
	state := analyzedState(0)
	state.ThreatList = threat.Catalog{
		{Name: "Keep"}, {Name: "Drop"},
	}
	tctx := newToolContext(state, Limits{})

	call := llm.ToolCall{ID: "c", Name: toolRemoveThreat, Arguments: `{"names": ["Drop", "Missing"]}`}
	result, err := eng.executeTool(context.Background(), call, tctx)
	require.NoError(t, err)

	assert.False(t, result.IsError)
	assert.Contains(t, result.Content, "removed 1 of 2")
	assert.Equal(t, []string{"Keep"}, state.ThreatList.Names())
}

func TestReadThreatCatalog(t *testing.T) {
	eng, _ := newTestEngine(t, Limits{}, nil)
	state := analyzedState(0)
	tctx := newToolContext(state, Limits{})

	call := llm.ToolCall{ID: "c", Name: toolReadThreatCatalog, Arguments: `{}`}
	result, err := eng.executeTool(context.Background(), call, tctx)
	require.NoError(t, err)
	assert.Contains(t, result.Content, "empty")

	state.ThreatList = threat.Catalog{{Name: "T1", StrideCategory: threat.CategorySpoofing, Likelihood: threat.LikelihoodLow, Mitigations: []string{"a", "b"}}}

	result, err = eng.executeTool(context.Background(), call, tctx)
	require.NoError(t, err)
	assert.Contains(t, result.Content, "T1")
	assert.NotContains(t, result.Content, "stride_category", "names-only by default")

	verbose := llm.ToolCall{ID: "c", Name: toolReadThreatCatalog, Arguments: `{"verbose": true}`}
	result, err = eng.executeTool(context.Background(), verbose, tctx)
	require.NoError(t, err)
	assert.Contains(t, result.Content, "stride_category")
}

func TestGapAnalysisRefreshesBudgetAndLogsGap(t *testing.T) {
	eng, mock := newTestEngine(t, Limits{}, []providers.MockTurn{
		providers.TextTurn(`{"stop": false, "gap": "nothing covers the Database"}`),
	})
	state := analyzedState(0)
	state.ToolUse = 3
	tctx := newToolContext(state, Limits{})

	call := llm.ToolCall{ID: "c", Name: toolGapAnalysis, Arguments: `{}`}
	result, err := eng.executeTool(context.Background(), call, tctx)
	require.NoError(t, err)

	assert.False(t, result.IsError)
	assert.Contains(t, result.Content, "nothing covers the Database")
	assert.Equal(t, 0, state.ToolUse, "successful audit refreshes the add budget")
	assert.Equal(t, 1, state.GapToolUse)
	assert.Equal(t, []string{"nothing covers the Database"}, state.GapLog)
	assert.Equal(t, 1, mock.CallCount())
}

func TestGapAnalysisStopSignal(t *testing.T) {
	eng, _ := newTestEngine(t, Limits{}, []providers.MockTurn{
		providers.TextTurn(`{"stop": true, "gap": ""}`),
	})
	state := analyzedState(0)
	tctx := newToolContext(state, Limits{})

	call := llm.ToolCall{ID: "c", Name: toolGapAnalysis, Arguments: `{}`}
	result, err := eng.executeTool(context.Background(), call, tctx)
	require.NoError(t, err)

	assert.False(t, result.IsError)
	assert.True(t, state.Stop)
	assert.Empty(t, state.GapLog)
	assert.Contains(t, result.Content, "finish")
}

func TestGapAnalysisBudgetRefusal(t *testing.T) {
	eng, mock := newTestEngine(t, Limits{}, nil)
	state := analyzedState(0)
	limits := Limits{MaxGapAnalysisUses: 1}
	tctx := newToolContext(state, limits)
	state.GapToolUse = 1

	call := llm.ToolCall{ID: "c", Name: toolGapAnalysis, Arguments: `{}`}
	result, err := eng.executeTool(context.Background(), call, tctx)
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "budget is spent")
	assert.Equal(t, 0, mock.CallCount(), "refused audit never reaches the model")
}

func TestGapAnalysisContainsProviderFailures(t *testing.T) {
	scenarios := []struct {
		name    string
		err     error
		mention string
	}{
		{"rate limited", llm.NewRateLimitError("mock"), "rate limited"},
		{"auth", llm.NewAuthError("mock", fmt.Errorf("bad key")), "credentials"},
		{"timeout", llm.NewTimeoutError("took too long"), "timed out"},
		{"content policy", llm.NewContentFilteredError("mock"), "content policy"},
		{"generic", llm.NewCompletionError("model exploded", nil), "gap analysis failed"},
	}

	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			eng, _ := newTestEngine(t, Limits{}, []providers.MockTurn{providers.ErrTurn(sc.err)})
			state := analyzedState(0)
			state.ToolUse = 2
			tctx := newToolContext(state, Limits{})

			call := llm.ToolCall{ID: "c", Name: toolGapAnalysis, Arguments: `{}`}
			result, err := eng.executeTool(context.Background(), call, tctx)
			require.NoError(t, err, "provider failures are contained, not thrown")

			assert.True(t, result.IsError)
			assert.Contains(t, result.Content, sc.mention)
			assert.Equal(t, 2, state.ToolUse, "failed audit refreshes nothing")
			assert.Equal(t, 0, state.GapToolUse)
			assert.Empty(t, state.GapLog)
		})
	}
}

func TestExecuteToolUnknownName(t *testing.T) {
	eng, _ := newTestEngine(t, Limits{}, nil)
	tctx := newToolContext(analyzedState(0), Limits{})

	call := llm.ToolCall{ID: "c", Name: "launch_missiles", Arguments: `{}`}
	result, err := eng.executeTool(context.Background(), call, tctx)
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "unknown tool")
}

func TestExecuteToolObservesCancellationFirst(t *testing.T) {
	eng, mock := newTestEngine(t, Limits{}, nil)
	state := analyzedState(0)
	tctx := &ToolContext{
		State:   state,
		Monitor: &stubMonitor{cancelled: true},
		Limits:  Limits{}.withDefaults(),
		Logger:  discardLogger(),
	}

	for _, call := range []llm.ToolCall{
		addThreatsCall(threatJSON("T1")),
		{ID: "c2", Name: toolRemoveThreat, Arguments: `{"names": ["T1"]}`},
		{ID: "c3", Name: toolReadThreatCatalog, Arguments: `{}`},
		{ID: "c4", Name: toolGapAnalysis, Arguments: `{}`},
	} {
		_, err := eng.executeTool(context.Background(), call, tctx)
		assert.Equal(t, types.JOB_CANCELLED, types.CodeOf(err), call.Name)
	}

	assert.Empty(t, state.ThreatList, "no tool mutates state after cancellation")
	assert.Zero(t, state.ToolUse)
	assert.Zero(t, state.GapToolUse)
	assert.Zero(t, mock.CallCount(), "no model call happens after cancellation")
}
