package engine

import (
	"context"

	"github.com/threatforge/threatforge/internal/types"
)

// TrailUpdate is a partial append to the per-stage reasoning trace.
// Non-empty fields are appended; the trail is observational only and is
// never read back into control logic.
type TrailUpdate struct {
	Assets  string `json:"assets,omitempty"`
	Flows   string `json:"flows,omitempty"`
	Threats string `json:"threats,omitempty"`
	Gaps    string `json:"gaps,omitempty"`
}

// Monitor is the engine's only channel back to the job lifecycle manager.
// Persistence is the manager's side effect; inner components never touch
// the store directly.
type Monitor interface {
	// UpdateStatus records the job's current state, progress counter,
	// and a human-readable detail string.
	UpdateStatus(ctx context.Context, state types.JobState, progress int, detail string) error

	// AppendTrail records a partial reasoning trace for observability.
	AppendTrail(ctx context.Context, update TrailUpdate) error

	// Cancelled reports whether the job has been cancelled out of band.
	// Tools and stage transitions consult it around every suspension.
	Cancelled(ctx context.Context) (bool, error)
}

// checkCancelled returns a cancellation error when either the context has
// been cancelled or the job has been marked cancelled in the store. It is
// invoked immediately before and after every model call so a cancellation
// takes effect within one suspension boundary, never mid-mutation.
func checkCancelled(ctx context.Context, monitor Monitor) error {
	if err := ctx.Err(); err != nil {
		return types.WrapError(types.JOB_CANCELLED, "execution aborted", err)
	}

	cancelled, err := monitor.Cancelled(ctx)
	if err != nil {
		return types.WrapError(types.INTERNAL_ERROR, "failed to read cancellation state", err)
	}
	if cancelled {
		return types.NewError(types.JOB_CANCELLED, "job cancelled")
	}

	return nil
}
