// Package engine drives the iterative construction of a threat catalog
// for one job. It owns the per-job AgentState, the fixed-stage graph
// controller, the agentic tool loop, and the budgets that bound both.
// Persistence and scheduling belong to the job lifecycle manager; the
// engine only reports through a Monitor.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/threatforge/threatforge/internal/llm"
	"github.com/threatforge/threatforge/internal/types"
)

// Engine executes jobs against one LLM client. It is safe to share one
// Engine across jobs: all mutable state lives in the per-job AgentState.
type Engine struct {
	client *llm.Client
	limits Limits
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates an engine. Zero limits are replaced with defaults.
func New(client *llm.Client, limits Limits, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		client: client,
		limits: limits.withDefaults(),
		logger: logger.With("component", "engine"),
		tracer: otel.Tracer("threatforge/engine"),
	}
}

// Run executes one job to the finalize point: the shared prelude stages
// (summary, assets, flows) followed by either the graph-mode iteration
// loop or the agentic tool loop. On return with a nil error the state
// holds the finished analysis and the caller snapshots it into results.
func (e *Engine) Run(ctx context.Context, req Request, state *AgentState, monitor Monitor) error {
	ctx, span := e.tracer.Start(ctx, "engine.run",
		trace.WithAttributes(
			attribute.String("job.id", req.JobID.String()),
			attribute.String("job.mode", string(req.Mode)),
		))
	defer span.End()

	logger := e.logger.With("job_id", req.JobID.String(), "mode", string(req.Mode))

	if err := e.runSummary(ctx, req, state, monitor); err != nil {
		return err
	}
	if err := e.runAssets(ctx, req, state, monitor); err != nil {
		return err
	}
	if err := e.runFlows(ctx, req, state, monitor); err != nil {
		return err
	}

	var err error
	switch req.Mode {
	case types.ModeAgentic:
		err = e.runAgentic(ctx, req, state, monitor, logger)
	case types.ModeGraph, "":
		err = e.runGraph(ctx, req, state, monitor, logger)
	default:
		err = types.NewError(types.SUBMISSION_INVALID, fmt.Sprintf("unknown execution mode: %s", req.Mode))
	}
	if err != nil {
		return err
	}

	if err := monitor.UpdateStatus(ctx, types.JobStateFinalize, state.Retry,
		fmt.Sprintf("catalog holds %d threats", len(state.ThreatList))); err != nil {
		return types.WrapError(types.INTERNAL_ERROR, "failed to record finalize status", err)
	}

	logger.Info("execution finished",
		"threats", len(state.ThreatList),
		"passes", state.Retry-1,
		"gap_findings", len(state.GapLog))

	return nil
}
