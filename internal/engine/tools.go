package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/threatforge/threatforge/internal/llm"
	"github.com/threatforge/threatforge/internal/schema"
	"github.com/threatforge/threatforge/internal/threat"
	"github.com/threatforge/threatforge/internal/types"
)

// Agentic tool names.
const (
	toolAddThreats        = "add_threats"
	toolRemoveThreat      = "remove_threat"
	toolReadThreatCatalog = "read_threat_catalog"
	toolGapAnalysis       = "gap_analysis"
)

// ToolContext carries everything a tool execution needs. Tools receive
// their dependencies explicitly rather than capturing them, so each tool
// is a plain function over (context, arguments, ToolContext).
type ToolContext struct {
	State   *AgentState
	Monitor Monitor
	Limits  Limits
	Logger  *slog.Logger
}

// agenticTools returns the tool surface exposed to the model.
func agenticTools() []llm.ToolDef {
	return []llm.ToolDef{
		llm.NewToolDef(toolAddThreats,
			"Add candidate threats to the catalog. Every target must match a listed asset name and every source a listed threat-source category; a single invalid candidate rejects the whole call.",
			schema.NewObjectSchema(map[string]schema.SchemaField{
				"threats": schema.NewArrayField("Candidate threats to add", threatField()),
			}, []string{"threats"})),
		llm.NewToolDef(toolRemoveThreat,
			"Remove catalog entries by exact name. Names that match nothing are ignored.",
			schema.NewObjectSchema(map[string]schema.SchemaField{
				"names": schema.NewArrayField("Exact names of threats to remove",
					schema.NewStringField("One threat name")),
			}, []string{"names"})),
		llm.NewToolDef(toolReadThreatCatalog,
			"Inspect the current threat catalog.",
			schema.NewObjectSchema(map[string]schema.SchemaField{
				"verbose": schema.NewBooleanField("True for full threat records, false for names only"),
			}, nil)),
		llm.NewToolDef(toolGapAnalysis,
			"Audit the catalog for coverage gaps. On success the add_threats budget is refreshed; the audit either names the most important gap to close next or declares the catalog complete.",
			schema.NewObjectSchema(map[string]schema.SchemaField{}, nil)),
	}
}

// executeTool dispatches one model tool call. Every tool opens with a
// cancellation check so an abort observed between turns stops the job
// before any catalog mutation. Domain outcomes, including refusals and
// contained provider failures, come back as the tool result; the error
// return is reserved for cancellation, which must abort the conversation
// rather than feed back into it.
func (e *Engine) executeTool(ctx context.Context, call llm.ToolCall, tctx *ToolContext) (llm.ToolResult, error) {
	if err := checkCancelled(ctx, tctx.Monitor); err != nil {
		return llm.ToolResult{}, err
	}

	switch call.Name {
	case toolAddThreats:
		return e.runAddThreats(call, tctx), nil
	case toolRemoveThreat:
		return e.runRemoveThreat(call, tctx), nil
	case toolReadThreatCatalog:
		return e.runReadCatalog(call, tctx), nil
	case toolGapAnalysis:
		return e.runGapTool(ctx, call, tctx)
	default:
		return llm.NewToolError(call.ID, fmt.Sprintf("unknown tool %q", call.Name)), nil
	}
}

type addThreatsArgs struct {
	Threats []threat.Threat `json:"threats"`
}

// runAddThreats gates catalog growth. The budget check runs before any
// validation so a refused call leaves counters and catalog untouched, and
// a single invalid candidate rejects the whole batch without consuming
// budget.
func (e *Engine) runAddThreats(call llm.ToolCall, tctx *ToolContext) llm.ToolResult {
	state := tctx.State

	if state.ToolUse >= tctx.Limits.MaxAddThreatsUses {
		if state.GapToolUse < tctx.Limits.MaxGapAnalysisUses {
			return llm.NewToolError(call.ID,
				"add_threats budget is spent; call gap_analysis to audit the catalog and refresh the budget before adding more threats")
		}
		return llm.NewToolError(call.ID,
			"add_threats budget is spent and no gap_analysis uses remain; only remove_threat, read_threat_catalog, or finishing remain")
	}

	var args addThreatsArgs
	if err := call.ParseArguments(&args); err != nil {
		return llm.NewToolError(call.ID, fmt.Sprintf("invalid add_threats arguments: %v", err))
	}
	if len(args.Threats) == 0 {
		return llm.NewToolError(call.ID, "add_threats requires at least one candidate threat")
	}

	violations := make([]string, 0)
	for _, t := range args.Threats {
		if err := t.Validate(); err != nil {
			violations = append(violations, fmt.Sprintf("%s: %v", t.Name, err))
		}
	}
	valid, refViolations := threat.Partition(args.Threats, state.AssetNames(), state.SourceCategories())
	for _, v := range refViolations {
		violations = append(violations, v.String())
	}

	if len(violations) > 0 {
		return llm.NewToolError(call.ID, fmt.Sprintf(
			"rejected: %d of %d candidates are invalid, no threats were added and no budget was consumed. Fix every candidate and resubmit the full batch:\n- %s",
			len(violations), len(args.Threats), strings.Join(violations, "\n- ")))
	}

	// Starring is a user decision; model-added threats never arrive starred.
	for i := range valid {
		valid[i].Starred = false
	}

	before := len(state.ThreatList)
	state.ThreatList = threat.Merge(state.ThreatList, valid)
	added := len(state.ThreatList) - before
	state.ToolUse++

	tctx.Logger.Info("threats added via tool",
		"submitted", len(args.Threats),
		"added", added,
		"tool_use", state.ToolUse)

	return llm.NewToolResult(call.ID, fmt.Sprintf(
		"added %d threats (%d were duplicates of existing names); catalog now holds %d threats; %d add_threats uses remain before the next gap_analysis",
		added, len(valid)-added, len(state.ThreatList), tctx.Limits.MaxAddThreatsUses-state.ToolUse))
}

type removeThreatArgs struct {
	Names []string `json:"names"`
}

func (e *Engine) runRemoveThreat(call llm.ToolCall, tctx *ToolContext) llm.ToolResult {
	var args removeThreatArgs
	if err := call.ParseArguments(&args); err != nil {
		return llm.NewToolError(call.ID, fmt.Sprintf("invalid remove_threat arguments: %v", err))
	}
	if len(args.Names) == 0 {
		return llm.NewToolError(call.ID, "remove_threat requires at least one name")
	}

	state := tctx.State
	before := len(state.ThreatList)
	state.ThreatList = state.ThreatList.Remove(args.Names)
	removed := before - len(state.ThreatList)

	tctx.Logger.Info("threats removed via tool", "requested", len(args.Names), "removed", removed)

	return llm.NewToolResult(call.ID, fmt.Sprintf(
		"removed %d of %d requested threats; catalog now holds %d threats",
		removed, len(args.Names), len(state.ThreatList)))
}

type readCatalogArgs struct {
	Verbose bool `json:"verbose"`
}

func (e *Engine) runReadCatalog(call llm.ToolCall, tctx *ToolContext) llm.ToolResult {
	var args readCatalogArgs
	if call.Arguments != "" {
		// tolerate missing/empty arguments; verbose defaults to false
		_ = call.ParseArguments(&args)
	}

	catalog := tctx.State.ThreatList
	if len(catalog) == 0 {
		return llm.NewToolResult(call.ID, "the threat catalog is empty")
	}

	if args.Verbose {
		encoded, err := json.MarshalIndent(catalog, "", "  ")
		if err != nil {
			return llm.NewToolError(call.ID, fmt.Sprintf("failed to render catalog: %v", err))
		}
		return llm.NewToolResult(call.ID, string(encoded))
	}

	return llm.NewToolResult(call.ID, fmt.Sprintf(
		"%d threats in the catalog:\n- %s",
		len(catalog), strings.Join(catalog.Names(), "\n- ")))
}

// runGapTool wraps the shared gap audit for agentic mode. A successful
// audit is the only thing that refreshes the add_threats budget. Provider
// failures are contained into the tool result so the conversation can
// steer around them; only cancellation propagates.
func (e *Engine) runGapTool(ctx context.Context, call llm.ToolCall, tctx *ToolContext) (llm.ToolResult, error) {
	state := tctx.State

	if state.GapToolUse >= tctx.Limits.MaxGapAnalysisUses {
		return llm.NewToolError(call.ID,
			"gap_analysis budget is spent; refine the catalog with remove_threat or finish"), nil
	}

	decision, err := e.runGapAudit(ctx, state, tctx.Monitor)
	if err != nil {
		if types.IsCancellation(err) {
			return llm.ToolResult{}, err
		}
		tctx.Logger.Warn("gap analysis failed inside tool call", "error", err)
		return llm.NewToolError(call.ID, containedGapFailure(err)), nil
	}

	state.GapToolUse++
	state.ToolUse = 0

	if decision.Stop {
		state.Stop = true
		tctx.Logger.Info("gap analysis declared catalog complete", "gap_tool_use", state.GapToolUse)
		return llm.NewToolResult(call.ID,
			"the catalog is complete; summarize it briefly and finish without calling further tools"), nil
	}

	state.GapLog = append(state.GapLog, decision.Gap)
	if trailErr := tctx.Monitor.AppendTrail(ctx, TrailUpdate{Gaps: decision.Gap}); trailErr != nil {
		return llm.ToolResult{}, types.WrapError(types.INTERNAL_ERROR, "failed to record trail", trailErr)
	}

	tctx.Logger.Info("gap analysis found coverage gap",
		"gap_tool_use", state.GapToolUse,
		"gaps_total", len(state.GapLog))

	return llm.NewToolResult(call.ID, fmt.Sprintf(
		"your add_threats budget has been refreshed; close this coverage gap next: %s", decision.Gap)), nil
}

// containedGapFailure translates a provider failure into guidance the
// model can act on instead of an error the loop would have to abort on.
func containedGapFailure(err error) string {
	var forgeErr *types.ForgeError
	if !errors.As(err, &forgeErr) {
		return fmt.Sprintf("gap analysis failed: %v; try again or finish with the current catalog", err)
	}

	switch forgeErr.Code {
	case llm.ErrProviderRateLimited:
		return "gap analysis is rate limited right now; continue refining with your remaining budget or finish with the current catalog"
	case llm.ErrProviderUnauthorized:
		return "gap analysis is unavailable because the analysis service rejected the credentials; finish with the current catalog"
	case llm.ErrTimeoutExceeded:
		return "gap analysis timed out; try again or finish with the current catalog"
	case llm.ErrContentFiltered:
		return "the gap analysis response was blocked by the provider's content policy; finish with the current catalog"
	default:
		return fmt.Sprintf("gap analysis failed: %s; try again or finish with the current catalog", forgeErr.Message)
	}
}
