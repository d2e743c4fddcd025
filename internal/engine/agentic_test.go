package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatforge/threatforge/internal/llm"
	"github.com/threatforge/threatforge/internal/llm/providers"
	"github.com/threatforge/threatforge/internal/types"
)

func agenticRequest() Request {
	return Request{JobID: types.NewID(), Mode: types.ModeAgentic, Title: "t", Description: "d"}
}

func TestRunAgenticStopsWhenModelStopsCallingTools(t *testing.T) {
	turns := []providers.MockTurn{
		providers.ToolTurn(addThreatsCall(threatJSON("T1"))),
		providers.TextTurn("The catalog covers the system; finishing here."),
	}
	eng, mock := newTestEngine(t, Limits{}, turns)

	state := analyzedState(0)
	monitor := &stubMonitor{}

	require.NoError(t, eng.runAgentic(context.Background(), agenticRequest(), state, monitor, discardLogger()))

	assert.Equal(t, []string{"T1"}, state.ThreatList.Names())
	assert.Equal(t, 1, state.ToolUse)
	assert.Equal(t, 2, state.Retry)
	assert.Equal(t, 2, mock.CallCount())
}

func TestRunAgenticGapStopEndsLoop(t *testing.T) {
	gapCall := llm.ToolCall{ID: "g1", Name: toolGapAnalysis, Arguments: `{}`}
	turns := []providers.MockTurn{
		providers.ToolTurn(addThreatsCall(threatJSON("T1"))),
		providers.ToolTurn(gapCall),
		// Consumed by the gap audit's structured call.
		providers.TextTurn(`{"stop": true, "gap": ""}`),
		// Consumed by the closing summary turn.
		providers.TextTurn("Catalog complete: one tampering threat against the API."),
	}
	eng, mock := newTestEngine(t, Limits{}, turns)

	state := analyzedState(0)
	monitor := &stubMonitor{}

	require.NoError(t, eng.runAgentic(context.Background(), agenticRequest(), state, monitor, discardLogger()))

	assert.True(t, state.Stop)
	assert.Equal(t, 1, state.GapToolUse)
	assert.Equal(t, 0, state.ToolUse, "gap analysis refreshed the budget")
	assert.Equal(t, 4, mock.CallCount())
}

func TestRunAgenticTurnCeiling(t *testing.T) {
	readCall := llm.ToolCall{ID: "r1", Name: toolReadThreatCatalog, Arguments: `{}`}
	turns := []providers.MockTurn{providers.ToolTurn(readCall)}
	eng, mock := newTestEngine(t, Limits{MaxTurns: 3}, turns)

	state := analyzedState(0)

	require.NoError(t, eng.runAgentic(context.Background(), agenticRequest(), state, &stubMonitor{}, discardLogger()))

	assert.Equal(t, 3, mock.CallCount(), "loop ends at the turn ceiling")
	assert.Equal(t, 2, state.Retry)
}

func TestRunAgenticToolsExposed(t *testing.T) {
	turns := []providers.MockTurn{providers.TextTurn("nothing to do")}
	eng, mock := newTestEngine(t, Limits{}, turns)

	require.NoError(t, eng.runAgentic(context.Background(), agenticRequest(), analyzedState(0), &stubMonitor{}, discardLogger()))

	calls := mock.GetCalls()
	require.Len(t, calls, 1)

	names := make([]string, len(calls[0].Tools))
	for i, tool := range calls[0].Tools {
		names[i] = tool.Name
	}
	assert.ElementsMatch(t, []string{toolAddThreats, toolRemoveThreat, toolReadThreatCatalog, toolGapAnalysis}, names)
}

func TestRunAgenticCancelled(t *testing.T) {
	eng, mock := newTestEngine(t, Limits{}, []providers.MockTurn{providers.TextTurn("unused")})

	monitor := &stubMonitor{cancelled: true}
	err := eng.runAgentic(context.Background(), agenticRequest(), analyzedState(0), monitor, discardLogger())

	require.Error(t, err)
	assert.True(t, types.IsCancellation(err))
	assert.Equal(t, 0, mock.CallCount())
}

func TestRunAgenticFullRun(t *testing.T) {
	turns := append(preludeTurns(),
		providers.ToolTurn(addThreatsCall(threatJSON("T1"), threatJSON("T2"))),
		providers.TextTurn("done"),
	)
	eng, _ := newTestEngine(t, Limits{}, turns)

	state := NewAgentState(0)
	monitor := &stubMonitor{}
	req := agenticRequest()

	require.NoError(t, eng.Run(context.Background(), req, state, monitor))

	assert.Equal(t, []string{"T1", "T2"}, state.ThreatList.Names())

	states := monitor.seenStates()
	require.NotEmpty(t, states)
	assert.Equal(t, types.JobStateFinalize, states[len(states)-1])
}

func TestRunRejectsUnknownMode(t *testing.T) {
	eng, _ := newTestEngine(t, Limits{}, preludeTurns())

	req := agenticRequest()
	req.Mode = "interactive"

	err := eng.Run(context.Background(), req, NewAgentState(0), &stubMonitor{})
	require.Error(t, err)
	assert.Equal(t, types.SUBMISSION_INVALID, types.CodeOf(err))
}
