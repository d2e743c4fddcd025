package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/threatforge/threatforge/internal/types"
)

// stage identifies a node of the graph-mode iteration loop. The prelude
// stages run unconditionally before the loop; only the threat/gap cycle
// needs routing.
type stage string

const (
	stageThreats  stage = "threats"
	stageGap      stage = "gap"
	stageFinalize stage = "finalize"
)

// stageEvent is the outcome a stage reports; routing is a pure lookup on
// (stage, event), testable without executing anything.
type stageEvent string

const (
	// eventGenerated: a threat pass completed in auto mode; audit next.
	eventGenerated stageEvent = "generated"

	// eventIterate: a threat pass completed under a fixed iteration
	// budget; loop straight back without a gap audit.
	eventIterate stageEvent = "iterate"

	// eventRetryExhausted: the pass ceiling was reached before generating.
	eventRetryExhausted stageEvent = "retry_exhausted"

	// eventBudgetSpent: the fixed iteration budget is used up.
	eventBudgetSpent stageEvent = "budget_spent"

	// eventGapFound: the audit produced a new gap to close.
	eventGapFound stageEvent = "gap_found"

	// eventCatalogComplete: the audit decided the catalog is done.
	eventCatalogComplete stageEvent = "catalog_complete"
)

// graphTransitions is the routing table for the iteration loop.
var graphTransitions = map[stage]map[stageEvent]stage{
	stageThreats: {
		eventGenerated:      stageGap,
		eventIterate:        stageThreats,
		eventRetryExhausted: stageFinalize,
		eventBudgetSpent:    stageFinalize,
	},
	stageGap: {
		eventGapFound:        stageThreats,
		eventCatalogComplete: stageFinalize,
	},
}

// nextStage resolves one routing step.
func nextStage(current stage, event stageEvent) (stage, error) {
	events, ok := graphTransitions[current]
	if !ok {
		return "", fmt.Errorf("no transitions from stage %q", current)
	}

	next, ok := events[event]
	if !ok {
		return "", fmt.Errorf("no transition from stage %q on event %q", current, event)
	}

	return next, nil
}

// threatStageEvent evaluates the threat-stage decision rule before any
// generation happens: the pass ceiling first, then the fixed iteration
// budget. Returning an empty event means the stage should generate.
func threatStageEvent(state *AgentState, limits Limits) stageEvent {
	if state.Retry > limits.MaxRetry {
		return eventRetryExhausted
	}
	if state.Iteration != 0 && state.Retry > state.Iteration {
		return eventBudgetSpent
	}
	return ""
}

// runGraph drives the threat/gap cycle until a transition lands on the
// finalize stage. The prelude stages have already populated the state.
func (e *Engine) runGraph(ctx context.Context, req Request, state *AgentState, monitor Monitor, logger *slog.Logger) error {
	current := stageThreats

	for current != stageFinalize {
		var event stageEvent
		var err error

		switch current {
		case stageThreats:
			event = threatStageEvent(state, e.limits)
			if event == "" {
				added, genErr := e.runThreatPass(ctx, req, state, monitor)
				if genErr != nil {
					return genErr
				}
				logger.Info("threat pass complete", "pass", state.Retry-1, "added", added)

				if state.Iteration == 0 {
					event = eventGenerated
				} else {
					event = eventIterate
				}
			} else {
				logger.Info("threat stage exhausted", "event", string(event), "pass", state.Retry)
			}

		case stageGap:
			decision, auditErr := e.runGapAudit(ctx, state, monitor)
			if auditErr != nil {
				return auditErr
			}

			if decision.Stop {
				state.Stop = true
				event = eventCatalogComplete
				logger.Info("gap analysis complete", "passes", state.Retry-1)
			} else {
				state.GapLog = append(state.GapLog, decision.Gap)
				event = eventGapFound
				logger.Info("gap identified", "gap_count", len(state.GapLog))

				if trailErr := monitor.AppendTrail(ctx, TrailUpdate{Gaps: decision.Gap}); trailErr != nil {
					return types.WrapError(types.INTERNAL_ERROR, "failed to record trail", trailErr)
				}
			}

		default:
			return types.NewError(types.INTERNAL_ERROR, fmt.Sprintf("unexpected stage %q", current))
		}

		current, err = nextStage(current, event)
		if err != nil {
			return types.WrapError(types.INTERNAL_ERROR, "stage routing failed", err)
		}
	}

	return nil
}
