package job

import (
	"context"

	"github.com/threatforge/threatforge/internal/types"
)

// Store is the persistence contract for job state. Implementations must
// be safe for concurrent use; the manager reads and writes from both the
// request path and the per-job execution goroutines.
type Store interface {
	// GetStatus returns the current status of a job, or a JOB_NOT_FOUND
	// error when no such job exists.
	GetStatus(ctx context.Context, id types.ID) (*Status, error)

	// SetStatus records a status update for a job, creating the record on
	// first write.
	SetStatus(ctx context.Context, status *Status) error

	// GetResults returns the stored results of a job, or JOB_NOT_FOUND
	// when the job has never stored results.
	GetResults(ctx context.Context, id types.ID) (*Results, error)

	// SetResults stores or replaces the results snapshot for a job.
	SetResults(ctx context.Context, results *Results) error

	// GetTrail returns the reasoning trail of a job, or JOB_NOT_FOUND.
	GetTrail(ctx context.Context, id types.ID) (*Trail, error)

	// UpdateTrail stores or replaces the trail for a job.
	UpdateTrail(ctx context.Context, id types.ID, trail *Trail) error

	// AddToIndex records a job in the listing index.
	AddToIndex(ctx context.Context, entry IndexEntry) error

	// ListIndex returns the index newest-first.
	ListIndex(ctx context.Context) ([]IndexEntry, error)

	// Close releases the store's resources.
	Close() error
}
