package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SummarySystemPrompt drives the opening architecture summary stage.
const SummarySystemPrompt = `You are a senior security architect performing threat modeling.
Read the system description and produce a concise technical summary of the
architecture: its purpose, major components, external dependencies, and the
data it handles. Stay factual; do not invent components the description
does not support.`

// AssetsSystemPrompt drives the asset identification stage.
const AssetsSystemPrompt = `You are a senior security architect performing threat modeling.
Identify every asset and external entity in the described system.

- An Asset is a component, datastore, service, or data set the system owns.
- An Entity is an external actor or system that interacts with it.

Name each one uniquely and describe it in one or two sentences. Threats
identified later may only target assets you list here, so be thorough.`

// FlowsSystemPrompt drives the data-flow and threat-source stage.
const FlowsSystemPrompt = `You are a senior security architect performing threat modeling.
Describe the system's data flows, trust boundaries, and the categories of
threat source relevant to it.

- Data flows: how information moves between assets and entities.
- Trust boundaries: where the level of trust changes as data crosses.
- Threat sources: adversary categories (e.g. "External attacker",
  "Malicious insider"), each with a description and a concrete example.

Threats identified later may only cite source categories you list here.`

// identifyThreatsSystemPrompt drives the first threat-generation pass.
const identifyThreatsSystemPrompt = `You are a senior security architect performing STRIDE threat modeling.
Identify concrete threats against the described system. For every threat provide:

- a short unique name
- the STRIDE category
- a description of the attack
- the targeted asset (must be one of the listed assets)
- the impact if it succeeds
- likelihood (Low, Medium, or High)
- 2 to 5 concrete mitigations
- the threat source category (must be one of the listed categories)
- prerequisites the attacker needs, if any
- the attack vector

Cover every asset and every STRIDE category that plausibly applies. Do not
fabricate targets or sources outside the provided lists.`

// improveThreatsSystemPrompt drives subsequent passes, conditioned on the
// accumulated catalog and gap log.
const improveThreatsSystemPrompt = `You are a senior security architect improving an existing STRIDE threat catalog.
You are given the current catalog, the asset list, the threat-source list,
and the findings of prior gap analyses. Produce ADDITIONAL threats that
close the identified gaps.

- Do not repeat threats already in the catalog; entries with an existing
  name are discarded.
- Follow the same field requirements as the original identification pass.
- Focus on the gaps called out in the gap log; depth beats breadth.`

// gapAnalysisSystemPrompt drives the completeness audit.
const gapAnalysisSystemPrompt = `You are a principal security reviewer auditing a STRIDE threat catalog for completeness.
You are given catalog statistics, the asset list, the threat-source list,
and the history of prior gap findings.

Decide whether the catalog is complete enough to stop iterating.

- If coverage is adequate across assets, STRIDE categories, and threat
  sources, answer stop = true.
- Otherwise answer stop = false and name, in the gap field, the single
  most important gap to close next: which assets, categories, or sources
  are under-covered and what kind of threats are missing.

Do not repeat a gap already addressed in the history unless it is still open.`

// agenticSystemPrompt drives tool-mode execution, where the model itself
// curates the catalog through tool calls.
const agenticSystemPrompt = `You are a senior security architect building a STRIDE threat catalog for the described system.
You work by calling tools. Available tools:

1. **add_threats** - add candidate threats to the catalog. Every target
   must be a listed asset name and every source a listed threat-source
   category; invalid candidates are rejected with a per-item report and
   the call does not count against your budget until fully valid.
2. **remove_threat** - remove catalog entries by exact name.
3. **read_threat_catalog** - inspect the current catalog.
4. **gap_analysis** - audit catalog completeness. A successful audit
   refreshes your add_threats budget and tells you where coverage is thin,
   or tells you to stop when the catalog is complete.

Budget rules: add_threats has a limited number of uses that only
gap_analysis can refresh, and gap_analysis itself can only run a limited
number of times. When you are told to run gap analysis, run it. When gap
analysis says the catalog is complete, or no budget remains, summarize the
catalog briefly and finish without calling further tools.`

// buildSystemDescription renders the job submission into the user message
// shared by every stage prompt.
func buildSystemDescription(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# System: %s\n\n%s\n", req.Title, req.Description)

	if len(req.Assumptions) > 0 {
		b.WriteString("\n## Assumptions\n")
		for _, a := range req.Assumptions {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}

	if req.Instructions != "" {
		fmt.Fprintf(&b, "\n## Additional instructions\n%s\n", req.Instructions)
	}

	return b.String()
}

// buildAnalysisContext renders the accumulated architecture view appended
// to threat and gap prompts.
func buildAnalysisContext(state *AgentState) string {
	var b strings.Builder

	if state.Summary != "" {
		fmt.Fprintf(&b, "## Architecture summary\n%s\n", state.Summary)
	}

	b.WriteString("\n## Assets and entities (valid threat targets)\n")
	for _, a := range state.Assets {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", a.Type, a.Name, a.Description)
	}

	if len(state.Architecture.DataFlows) > 0 {
		b.WriteString("\n## Data flows\n")
		for _, f := range state.Architecture.DataFlows {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	if len(state.Architecture.TrustBoundaries) > 0 {
		b.WriteString("\n## Trust boundaries\n")
		for _, t := range state.Architecture.TrustBoundaries {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}

	b.WriteString("\n## Threat sources (valid threat source categories)\n")
	for _, s := range state.Architecture.ThreatSources {
		fmt.Fprintf(&b, "- %s: %s (e.g. %s)\n", s.Category, s.Description, s.Example)
	}

	return b.String()
}

// buildImprovePrompt renders the user message for improvement passes.
func buildImprovePrompt(req Request, state *AgentState) string {
	var b strings.Builder

	b.WriteString(buildSystemDescription(req))
	b.WriteString("\n")
	b.WriteString(buildAnalysisContext(state))

	b.WriteString("\n## Current catalog\n")
	catalogJSON, err := json.MarshalIndent(state.ThreatList, "", "  ")
	if err == nil {
		b.Write(catalogJSON)
		b.WriteString("\n")
	}

	if len(state.GapLog) > 0 {
		b.WriteString("\n## Gap analysis findings so far\n")
		for i, g := range state.GapLog {
			fmt.Fprintf(&b, "%d. %s\n", i+1, g)
		}
	}

	return b.String()
}

// buildGapPrompt renders the user message for a gap-analysis audit.
func buildGapPrompt(state *AgentState, kpiSummary string) string {
	var b strings.Builder

	b.WriteString("## Catalog statistics\n")
	b.WriteString(kpiSummary)
	b.WriteString("\n")
	b.WriteString(buildAnalysisContext(state))

	if len(state.GapLog) > 0 {
		b.WriteString("\n## Prior gap findings\n")
		for i, g := range state.GapLog {
			fmt.Fprintf(&b, "%d. %s\n", i+1, g)
		}
	}

	return b.String()
}
