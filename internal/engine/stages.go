package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/threatforge/threatforge/internal/threat"
	"github.com/threatforge/threatforge/internal/types"
)

// runSummary produces the opening architecture summary.
func (e *Engine) runSummary(ctx context.Context, req Request, state *AgentState, monitor Monitor) error {
	ctx, span := e.tracer.Start(ctx, "engine.stage.summary")
	defer span.End()

	if err := monitor.UpdateStatus(ctx, types.JobStateStart, state.Retry, "summarizing architecture"); err != nil {
		return types.WrapError(types.INTERNAL_ERROR, "failed to record status", err)
	}

	if err := checkCancelled(ctx, monitor); err != nil {
		return err
	}

	var resp summaryResponse
	if _, err := e.client.StructuredWithImage(ctx, SummarySystemPrompt, buildSystemDescription(req), state.ImageData, summarySchema(), &resp); err != nil {
		return err
	}

	if err := checkCancelled(ctx, monitor); err != nil {
		return err
	}

	state.Summary = resp.Summary
	return nil
}

// runAssets identifies the assets and entities threats may target.
func (e *Engine) runAssets(ctx context.Context, req Request, state *AgentState, monitor Monitor) error {
	ctx, span := e.tracer.Start(ctx, "engine.stage.assets")
	defer span.End()

	if err := monitor.UpdateStatus(ctx, types.JobStateAssets, state.Retry, "identifying assets"); err != nil {
		return types.WrapError(types.INTERNAL_ERROR, "failed to record status", err)
	}

	if err := checkCancelled(ctx, monitor); err != nil {
		return err
	}

	user := buildSystemDescription(req)
	if state.Summary != "" {
		user += "\n## Architecture summary\n" + state.Summary + "\n"
	}

	var resp assetsResponse
	if _, err := e.client.StructuredWithImage(ctx, AssetsSystemPrompt, user, state.ImageData, assetsSchema(), &resp); err != nil {
		return err
	}

	if err := checkCancelled(ctx, monitor); err != nil {
		return err
	}

	state.Assets = resp.Assets
	span.SetAttributes(attribute.Int("assets", len(resp.Assets)))

	if err := monitor.AppendTrail(ctx, TrailUpdate{Assets: resp.Reasoning}); err != nil {
		return types.WrapError(types.INTERNAL_ERROR, "failed to record trail", err)
	}

	return nil
}

// runFlows maps data flows, trust boundaries, and threat sources.
func (e *Engine) runFlows(ctx context.Context, req Request, state *AgentState, monitor Monitor) error {
	ctx, span := e.tracer.Start(ctx, "engine.stage.flows")
	defer span.End()

	if err := monitor.UpdateStatus(ctx, types.JobStateFlow, state.Retry, "mapping data flows"); err != nil {
		return types.WrapError(types.INTERNAL_ERROR, "failed to record status", err)
	}

	if err := checkCancelled(ctx, monitor); err != nil {
		return err
	}

	user := buildSystemDescription(req) + "\n" + buildAnalysisContext(state)

	var resp architectureResponse
	if _, err := e.client.StructuredWithImage(ctx, FlowsSystemPrompt, user, state.ImageData, architectureSchema(), &resp); err != nil {
		return err
	}

	if err := checkCancelled(ctx, monitor); err != nil {
		return err
	}

	state.Architecture = Architecture{
		DataFlows:       resp.DataFlows,
		TrustBoundaries: resp.TrustBoundaries,
		ThreatSources:   resp.ThreatSources,
	}
	span.SetAttributes(attribute.Int("threat_sources", len(resp.ThreatSources)))

	if err := monitor.AppendTrail(ctx, TrailUpdate{Flows: resp.Reasoning}); err != nil {
		return types.WrapError(types.INTERNAL_ERROR, "failed to record trail", err)
	}

	return nil
}

// runThreatPass performs one threat-generation pass: the first pass
// identifies threats from scratch, later passes improve the catalog
// conditioned on what has accumulated. The pass merges the response into
// the catalog and increments the pass counter; it is the only place the
// counter moves.
func (e *Engine) runThreatPass(ctx context.Context, req Request, state *AgentState, monitor Monitor) (int, error) {
	ctx, span := e.tracer.Start(ctx, "engine.stage.threats",
		trace.WithAttributes(attribute.Int("pass", state.Retry)))
	defer span.End()

	detail := fmt.Sprintf("threat generation pass %d", state.Retry)
	if err := monitor.UpdateStatus(ctx, state.StatusLabel(), state.Retry, detail); err != nil {
		return 0, types.WrapError(types.INTERNAL_ERROR, "failed to record status", err)
	}

	if err := checkCancelled(ctx, monitor); err != nil {
		return 0, err
	}

	system := identifyThreatsSystemPrompt
	user := buildSystemDescription(req) + "\n" + buildAnalysisContext(state)
	if state.Retry > 1 {
		system = improveThreatsSystemPrompt
		user = buildImprovePrompt(req, state)
	}

	var resp threatsResponse
	if _, err := e.client.Structured(ctx, system, user, threatsSchema(), &resp); err != nil {
		return 0, err
	}

	if err := checkCancelled(ctx, monitor); err != nil {
		return 0, err
	}

	before := len(state.ThreatList)
	state.ThreatList = threat.Merge(state.ThreatList, resp.Threats)
	added := len(state.ThreatList) - before
	state.Retry++

	span.SetAttributes(attribute.Int("threats.added", added))

	if err := monitor.AppendTrail(ctx, TrailUpdate{Threats: resp.Reasoning}); err != nil {
		return 0, types.WrapError(types.INTERNAL_ERROR, "failed to record trail", err)
	}

	return added, nil
}

// runGapAudit asks the model whether the catalog is complete. The
// decision comes back through a forced tool call where the provider
// supports forcing, plain structured output otherwise. It returns the
// decision; appending to the gap log is the caller's move so graph mode
// and the agentic tool share one invocation path.
func (e *Engine) runGapAudit(ctx context.Context, state *AgentState, monitor Monitor) (*gapResponse, error) {
	ctx, span := e.tracer.Start(ctx, "engine.stage.gap")
	defer span.End()

	if err := checkCancelled(ctx, monitor); err != nil {
		return nil, err
	}

	kpis := threat.ComputeKPIs(state.ThreatList)
	user := buildGapPrompt(state, kpis.Summary())

	var resp gapResponse
	if err := e.client.StructuredTool(ctx, gapAnalysisSystemPrompt, user, "report_gap_decision", gapSchema(), &resp); err != nil {
		return nil, err
	}

	if err := checkCancelled(ctx, monitor); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Bool("gap.stop", resp.Stop))
	return &resp, nil
}
