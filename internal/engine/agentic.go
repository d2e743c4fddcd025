package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/threatforge/threatforge/internal/llm"
	"github.com/threatforge/threatforge/internal/types"
)

// runAgentic drives the tool-calling conversation. The model builds the
// catalog itself through add_threats/remove_threat/read_threat_catalog
// and refreshes its budget through gap_analysis; the loop only enforces
// cancellation, the turn ceiling, and the stop conditions.
func (e *Engine) runAgentic(ctx context.Context, req Request, state *AgentState, monitor Monitor, logger *slog.Logger) error {
	ctx, span := e.tracer.Start(ctx, "engine.agentic")
	defer span.End()

	if err := monitor.UpdateStatus(ctx, state.StatusLabel(), state.Retry, "agentic threat generation"); err != nil {
		return types.WrapError(types.INTERNAL_ERROR, "failed to record status", err)
	}

	tools := agenticTools()
	tctx := &ToolContext{
		State:   state,
		Monitor: monitor,
		Limits:  e.limits,
		Logger:  logger,
	}

	opening := buildSystemDescription(req) + "\n" + buildAnalysisContext(state)
	if req.Replay && len(state.ThreatList) > 0 {
		opening += fmt.Sprintf(
			"\n## Prior catalog\nThe catalog starts with %d user-pinned threats from a previous run. Build on them; do not remove them unless they are wrong.\n",
			len(state.ThreatList))
	}

	history := []llm.Message{llm.NewUserMessage(opening)}
	if len(state.ImageData) > 0 {
		history[0] = llm.NewUserImageMessage(opening, state.ImageData)
	}

	for turn := 0; turn < e.limits.MaxTurns; turn++ {
		if err := checkCancelled(ctx, monitor); err != nil {
			return err
		}

		resp, err := e.client.CompleteWithTools(ctx, agenticSystemPrompt, history, tools, llm.ToolChoiceAuto())
		if err != nil {
			return err
		}

		if err := checkCancelled(ctx, monitor); err != nil {
			return err
		}

		history = append(history, resp.Message)

		if len(resp.Message.ToolCalls) == 0 {
			// The model stopped calling tools; the conversation is over.
			logger.Info("agentic loop finished", "turns", turn+1, "threats", len(state.ThreatList))
			span.SetAttributes(attribute.Int("turns", turn+1))
			state.Retry++
			return nil
		}

		for _, call := range resp.Message.ToolCalls {
			result, execErr := e.executeTool(ctx, call, tctx)
			if execErr != nil {
				return execErr
			}
			history = append(history, llm.NewToolResultMessage(result.ToolCallID, result.Content))
		}

		if state.Stop {
			// Give the model one closing turn after gap analysis declares
			// the catalog complete, then end regardless of its reply.
			closing, err := e.client.CompleteWithTools(ctx, agenticSystemPrompt, history, nil, llm.ToolChoice{})
			if err != nil {
				logger.Warn("closing summary failed", "error", err)
			} else if closing.Message.Content != "" {
				history = append(history, closing.Message)
			}

			logger.Info("agentic loop finished on gap-analysis stop",
				"turns", turn+1, "threats", len(state.ThreatList))
			span.SetAttributes(attribute.Int("turns", turn+1), attribute.Bool("stopped_by_gap", true))
			state.Retry++
			return nil
		}
	}

	logger.Warn("agentic loop hit turn ceiling", "max_turns", e.limits.MaxTurns, "threats", len(state.ThreatList))
	span.SetAttributes(attribute.Int("turns", e.limits.MaxTurns), attribute.Bool("turn_ceiling", true))
	state.Retry++

	return nil
}
