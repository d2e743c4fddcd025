// Package job owns the threat-modeling job lifecycle: the authoritative
// job record, its status and trail, the persistence contract, and the
// manager that schedules, polls, cancels, and replays executions.
package job

import (
	"time"

	"github.com/threatforge/threatforge/internal/engine"
	"github.com/threatforge/threatforge/internal/threat"
	"github.com/threatforge/threatforge/internal/types"
)

// Submission is what a caller hands in to start a job: the system
// description plus the knobs that shape the run. DiagramRef is a
// best-effort pointer; a dangling reference degrades to a text-only
// analysis instead of failing the submission.
type Submission struct {
	// ID optionally names the job; when zero the manager generates one.
	ID types.ID `json:"id,omitempty"`

	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Assumptions  []string            `json:"assumptions,omitempty"`
	Instructions string              `json:"instructions,omitempty"`
	DiagramRef   string              `json:"diagram_ref,omitempty"`
	Mode         types.ExecutionMode `json:"mode,omitempty"`

	// Iteration selects the improvement budget: 0 lets gap analysis
	// decide when to stop, >0 runs that many passes without gap analysis.
	Iteration int `json:"iteration"`
}

// Validate rejects submissions the engine could not act on.
func (s Submission) Validate() error {
	if !s.ID.IsZero() {
		if err := s.ID.Validate(); err != nil {
			return types.NewError(types.SUBMISSION_INVALID, "invalid job id: "+err.Error())
		}
	}
	if s.Title == "" {
		return types.NewError(types.SUBMISSION_INVALID, "title is required")
	}
	if s.Description == "" {
		return types.NewError(types.SUBMISSION_INVALID, "description is required")
	}
	if s.Iteration < 0 {
		return types.NewError(types.SUBMISSION_INVALID, "iteration must not be negative")
	}
	if s.Mode != "" && !s.Mode.IsValid() {
		return types.NewError(types.SUBMISSION_INVALID, "unknown execution mode: "+s.Mode.String())
	}
	return nil
}

// Status is the polled view of a job. Detail is a human-readable note
// about what the job is doing; RetryCount is the 1-indexed pass counter.
type Status struct {
	ID         types.ID       `json:"id"`
	State      types.JobState `json:"state"`
	RetryCount int            `json:"retry_count"`
	Detail     string         `json:"detail,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Trail accumulates the model's stage-by-stage reasoning so a finished
// job can show its work. Gaps is append-only across gap-analysis calls.
type Trail struct {
	Assets  string   `json:"assets,omitempty"`
	Flows   string   `json:"flows,omitempty"`
	Threats string   `json:"threats,omitempty"`
	Gaps    []string `json:"gaps,omitempty"`
}

// Backup is the pre-replay snapshot of everything a replay overwrites:
// the assets, the architecture, and the full catalog including the
// unstarred threats the replay drops.
type Backup struct {
	Assets       []engine.Asset      `json:"assets,omitempty"`
	Architecture engine.Architecture `json:"system_architecture"`
	ThreatList   threat.Catalog      `json:"threat_list"`
}

// Results is the snapshot a terminal job leaves behind. A FAILED job
// keeps whatever the run produced before the failure; Backup holds the
// pre-replay snapshot so a replay is recoverable.
type Results struct {
	JobID        types.ID            `json:"job_id"`
	Title        string              `json:"title"`
	Summary      string              `json:"summary,omitempty"`
	Assets       []engine.Asset      `json:"assets,omitempty"`
	Architecture engine.Architecture `json:"system_architecture"`
	ThreatList   threat.Catalog      `json:"threat_list"`
	GapLog       []string            `json:"gap_log,omitempty"`
	Backup       *Backup             `json:"backup,omitempty"`
	Error        string              `json:"error,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// IndexEntry is one row of the job index used for listings.
type IndexEntry struct {
	ID        types.ID            `json:"id"`
	Title     string              `json:"title"`
	Mode      types.ExecutionMode `json:"mode"`
	CreatedAt time.Time           `json:"created_at"`
}
