package engine

import (
	"github.com/threatforge/threatforge/internal/threat"
	"github.com/threatforge/threatforge/internal/types"
)

// AssetType distinguishes system assets from external entities.
type AssetType string

const (
	AssetTypeAsset  AssetType = "Asset"
	AssetTypeEntity AssetType = "Entity"
)

// Asset is one element of the analyzed architecture that threats may target.
type Asset struct {
	Type        AssetType `json:"type"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// ThreatSource is one category of adversary the analysis considers.
type ThreatSource struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Example     string `json:"example"`
}

// Architecture captures the data-flow view of the analyzed system.
type Architecture struct {
	DataFlows       []string       `json:"data_flows"`
	TrustBoundaries []string       `json:"trust_boundaries"`
	ThreatSources   []ThreatSource `json:"threat_sources"`
}

// AgentState is the per-job working memory. It lives for the duration of
// one execution (initial or replay), is mutated exclusively by the
// controller that owns the job, and is never shared across jobs.
type AgentState struct {
	Summary      string         `json:"summary,omitempty"`
	Assets       []Asset        `json:"assets"`
	Architecture Architecture   `json:"system_architecture"`
	ThreatList   threat.Catalog `json:"threat_list"`

	// GapLog is the append-only record of gap-analysis findings.
	GapLog []string `json:"gap_log"`

	// Stop is set when gap analysis decides the catalog is complete.
	Stop bool `json:"stop"`

	// Iteration selects the improvement budget: 0 lets gap analysis decide
	// when to stop, >0 runs a fixed number of passes with no gap analysis.
	Iteration int `json:"iteration"`

	// Retry counts threat-generation passes, 1-indexed. Only the threat
	// stage increments it.
	Retry int `json:"retry"`

	// ToolUse and GapToolUse are the agentic-mode budgets. A successful
	// gap analysis refreshes ToolUse back to zero.
	ToolUse    int `json:"tool_use"`
	GapToolUse int `json:"gap_tool_use"`

	// ImageData holds the resolved architecture diagram, nil when the
	// reference was absent or could not be resolved. Absence is valid.
	ImageData []byte `json:"-"`
}

// NewAgentState builds the working memory for a fresh execution:
// first pass pending, empty catalog, nothing accumulated.
func NewAgentState(iteration int) *AgentState {
	return &AgentState{
		ThreatList: threat.Catalog{},
		GapLog:     []string{},
		Iteration:  iteration,
		Retry:      1,
	}
}

// NewReplayState builds working memory for a replay: the catalog starts
// from the prior run's user-pinned entries only, counters and the gap log
// reset, and iteration is taken from the new submission.
func NewReplayState(iteration int, priorCatalog threat.Catalog) *AgentState {
	state := NewAgentState(iteration)
	state.ThreatList = priorCatalog.Starred()
	return state
}

// AssetNames returns the names threats may legally target.
func (s *AgentState) AssetNames() []string {
	names := make([]string, len(s.Assets))
	for i, a := range s.Assets {
		names[i] = a.Name
	}
	return names
}

// SourceCategories returns the threat-source categories threats may
// legally cite.
func (s *AgentState) SourceCategories() []string {
	categories := make([]string, len(s.Architecture.ThreatSources))
	for i, src := range s.Architecture.ThreatSources {
		categories[i] = src.Category
	}
	return categories
}

// StatusLabel maps the pass counter onto the THREAT/THREAT_RETRY label.
// The two labels share one code path; only the reported state differs.
func (s *AgentState) StatusLabel() types.JobState {
	if s.Retry > 1 {
		return types.JobStateThreatRetry
	}
	return types.JobStateThreat
}

// Request describes one execution the engine should perform. The job
// lifecycle manager builds it from the authoritative job record; the
// engine never reads the store itself.
type Request struct {
	JobID        types.ID
	Mode         types.ExecutionMode
	Title        string
	Description  string
	Assumptions  []string
	Instructions string
	Iteration    int
	Replay       bool
}

// Limits caps engine resource use. Zero values are replaced by defaults
// at construction.
type Limits struct {
	// MaxRetry is the ceiling on threat-generation passes in graph mode.
	MaxRetry int

	// MaxAddThreatsUses caps successful add_threats calls between
	// gap-analysis refreshes in agentic mode.
	MaxAddThreatsUses int

	// MaxGapAnalysisUses caps gap_analysis calls per execution.
	MaxGapAnalysisUses int

	// MaxTurns caps agentic conversation turns so a tool-less model
	// cannot spin.
	MaxTurns int
}

// Default limit values.
const (
	DefaultMaxRetry           = 15
	DefaultMaxAddThreatsUses  = 5
	DefaultMaxGapAnalysisUses = 3
	DefaultMaxTurns           = 40
)

// withDefaults fills unset limits.
func (l Limits) withDefaults() Limits {
	if l.MaxRetry <= 0 {
		l.MaxRetry = DefaultMaxRetry
	}
	if l.MaxAddThreatsUses <= 0 {
		l.MaxAddThreatsUses = DefaultMaxAddThreatsUses
	}
	if l.MaxGapAnalysisUses <= 0 {
		l.MaxGapAnalysisUses = DefaultMaxGapAnalysisUses
	}
	if l.MaxTurns <= 0 {
		l.MaxTurns = DefaultMaxTurns
	}
	return l
}
