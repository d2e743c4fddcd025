package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/threatforge/threatforge/internal/blob"
	"github.com/threatforge/threatforge/internal/engine"
	"github.com/threatforge/threatforge/internal/types"
)

// DefaultPollInterval is how often PollUntilDone re-reads job status.
const DefaultPollInterval = 2 * time.Second

// Manager owns the job lifecycle: it validates submissions, schedules
// executions on their own goroutines, persists status and results through
// the store, and routes cancellation to the running execution.
type Manager struct {
	store    Store
	engine   *engine.Engine
	resolver blob.Resolver
	logger   *slog.Logger
	tracer   trace.Tracer

	mu     sync.Mutex
	active map[types.ID]*handle
}

// handle tracks one running execution.
type handle struct {
	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}
}

// NewManager creates a manager. A nil resolver disables diagram
// resolution rather than failing submissions that carry a reference.
func NewManager(store Store, eng *engine.Engine, resolver blob.Resolver, logger *slog.Logger) *Manager {
	if resolver == nil {
		resolver = blob.NopResolver{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		store:    store,
		engine:   eng,
		resolver: resolver,
		logger:   logger.With("component", "jobs"),
		tracer:   otel.Tracer("threatforge/jobs"),
		active:   make(map[types.ID]*handle),
	}
}

// StartNew validates and schedules a fresh job, returning its ID as soon
// as the initial status is durable. A caller-supplied id is honored
// unless that job is already running; otherwise one is generated. The
// execution itself runs on its own goroutine detached from the caller's
// context.
func (m *Manager) StartNew(ctx context.Context, sub Submission) (types.ID, error) {
	if err := sub.Validate(); err != nil {
		return "", err
	}

	id := sub.ID
	if id.IsZero() {
		id = types.NewID()
	} else {
		m.mu.Lock()
		_, running := m.active[id]
		m.mu.Unlock()
		if running {
			return "", types.NewError(types.JOB_ALREADY_ACTIVE, "job is already running: "+id.String())
		}
	}
	state := engine.NewAgentState(sub.Iteration)
	state.ImageData = m.resolveDiagram(ctx, sub.DiagramRef)

	if err := m.prepare(ctx, id, sub, nil); err != nil {
		return "", err
	}

	m.launch(id, m.buildRequest(id, sub, false), state)
	m.logger.Info("job started", "job_id", id.String(), "mode", string(sub.Mode), "iteration", sub.Iteration)
	return id, nil
}

// StartReplay re-runs a finished job. The prior catalog is backed up into
// the new results and only user-starred threats carry over; counters, the
// gap log, and the trail all reset. A job with no stored results cannot
// be replayed.
func (m *Manager) StartReplay(ctx context.Context, id types.ID, sub Submission) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	_, running := m.active[id]
	m.mu.Unlock()
	if running {
		return types.NewError(types.JOB_ALREADY_ACTIVE, "job is already running: "+id.String())
	}

	prior, err := m.store.GetResults(ctx, id)
	if err != nil {
		return err
	}

	state := engine.NewReplayState(sub.Iteration, prior.ThreatList)
	state.ImageData = m.resolveDiagram(ctx, sub.DiagramRef)

	backup := &Backup{
		Assets:       prior.Assets,
		Architecture: prior.Architecture,
		ThreatList:   prior.ThreatList,
	}
	if err := m.prepare(ctx, id, sub, backup); err != nil {
		return err
	}

	m.launch(id, m.buildRequest(id, sub, true), state)
	m.logger.Info("job replay started",
		"job_id", id.String(),
		"carried_over", len(state.ThreatList),
		"backed_up", len(prior.ThreatList))
	return nil
}

// prepare writes the durable starting point: START status with the pass
// counter at 1, an empty trail, the index entry, and for replays a
// results record holding the backup so a failed replay stays recoverable.
func (m *Manager) prepare(ctx context.Context, id types.ID, sub Submission, backup *Backup) error {
	now := time.Now().UTC()

	if err := m.store.SetStatus(ctx, &Status{
		ID:         id,
		State:      types.JobStateStart,
		RetryCount: 1,
		Detail:     "queued",
		UpdatedAt:  now,
	}); err != nil {
		return types.WrapError(types.STORE_WRITE_FAILED, "failed to record initial status", err)
	}

	if err := m.store.UpdateTrail(ctx, id, &Trail{}); err != nil {
		return types.WrapError(types.STORE_WRITE_FAILED, "failed to reset trail", err)
	}

	mode := sub.Mode
	if mode == "" {
		mode = types.ModeGraph
	}
	if err := m.store.AddToIndex(ctx, IndexEntry{
		ID:        id,
		Title:     sub.Title,
		Mode:      mode,
		CreatedAt: now,
	}); err != nil {
		return types.WrapError(types.STORE_WRITE_FAILED, "failed to index job", err)
	}

	if backup != nil {
		if err := m.store.SetResults(ctx, &Results{
			JobID:     id,
			Title:     sub.Title,
			Backup:    backup,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return types.WrapError(types.STORE_WRITE_FAILED, "failed to back up prior results", err)
		}
	}

	return nil
}

func (m *Manager) buildRequest(id types.ID, sub Submission, replay bool) engine.Request {
	mode := sub.Mode
	if mode == "" {
		mode = types.ModeGraph
	}

	return engine.Request{
		JobID:        id,
		Mode:         mode,
		Title:        sub.Title,
		Description:  sub.Description,
		Assumptions:  sub.Assumptions,
		Instructions: sub.Instructions,
		Iteration:    sub.Iteration,
		Replay:       replay,
	}
}

// resolveDiagram fetches the referenced diagram, degrading to nil on any
// failure. A job never fails because its diagram could not be read.
func (m *Manager) resolveDiagram(ctx context.Context, ref string) []byte {
	if ref == "" {
		return nil
	}

	data, err := m.resolver.Resolve(ctx, ref)
	if err != nil {
		m.logger.Warn("diagram resolution failed, continuing without it", "ref", ref, "error", err)
		return nil
	}
	return data
}

// launch registers the job as active and starts its execution goroutine.
// The execution context is detached from the caller: submission returns
// immediately and the job outlives the request that created it.
func (m *Manager) launch(id types.ID, req engine.Request, state *engine.AgentState) {
	runCtx, cancel := context.WithCancel(context.Background())
	h := &handle{cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.active[id] = h
	m.mu.Unlock()

	go m.runJob(runCtx, req, state, h)
}

// runJob executes one job to a terminal state. Whatever the run produced
// before failing or being cancelled is still snapshotted into results.
func (m *Manager) runJob(ctx context.Context, req engine.Request, state *engine.AgentState, h *handle) {
	defer close(h.done)
	defer func() {
		m.mu.Lock()
		delete(m.active, req.JobID)
		m.mu.Unlock()
	}()

	ctx, span := m.tracer.Start(ctx, "job.run",
		trace.WithAttributes(attribute.String("job.id", req.JobID.String())))
	defer span.End()

	logger := m.logger.With("job_id", req.JobID.String())
	monitor := &storeMonitor{store: m.store, jobID: req.JobID, handle: h}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", "panic", r)
			m.finish(req, state, types.JobStateFailed, fmt.Sprintf("internal panic: %v", r))
		}
	}()

	err := m.engine.Run(ctx, req, state, monitor)
	switch {
	case err == nil:
		m.finish(req, state, types.JobStateComplete, "")
		logger.Info("job complete", "threats", len(state.ThreatList))
	case types.IsCancellation(err), ctx.Err() != nil:
		m.finish(req, state, types.JobStateCancelled, "")
		logger.Info("job cancelled", "threats", len(state.ThreatList))
	default:
		m.finish(req, state, types.JobStateFailed, err.Error())
		logger.Error("job failed", "error", err)
	}
}

// finish snapshots the working state into results and records the
// terminal status. It runs on a fresh context so cancellation of the run
// cannot block the terminal write.
func (m *Manager) finish(req engine.Request, state *engine.AgentState, terminal types.JobState, errMsg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	results := &Results{
		JobID:        req.JobID,
		Title:        req.Title,
		Summary:      state.Summary,
		Assets:       state.Assets,
		Architecture: state.Architecture,
		ThreatList:   state.ThreatList,
		GapLog:       state.GapLog,
		Error:        errMsg,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if prior, err := m.store.GetResults(ctx, req.JobID); err == nil {
		results.Backup = prior.Backup
		results.CreatedAt = prior.CreatedAt
	}

	if err := m.store.SetResults(ctx, results); err != nil {
		m.logger.Error("failed to store results", "job_id", req.JobID.String(), "error", err)
	}

	detail := errMsg
	if terminal == types.JobStateComplete {
		detail = fmt.Sprintf("catalog holds %d threats", len(state.ThreatList))
	}
	if err := m.store.SetStatus(ctx, &Status{
		ID:         req.JobID,
		State:      terminal,
		RetryCount: state.Retry,
		Detail:     detail,
		UpdatedAt:  now,
	}); err != nil {
		m.logger.Error("failed to store terminal status", "job_id", req.JobID.String(), "error", err)
	}
}

// GetStatus returns the polled status of a job.
func (m *Manager) GetStatus(ctx context.Context, id types.ID) (*Status, error) {
	return m.store.GetStatus(ctx, id)
}

// GetResults returns the stored results of a job.
func (m *Manager) GetResults(ctx context.Context, id types.ID) (*Results, error) {
	return m.store.GetResults(ctx, id)
}

// GetTrail returns the reasoning trail of a job.
func (m *Manager) GetTrail(ctx context.Context, id types.ID) (*Trail, error) {
	return m.store.GetTrail(ctx, id)
}

// List returns the job index, newest first.
func (m *Manager) List(ctx context.Context) ([]IndexEntry, error) {
	return m.store.ListIndex(ctx)
}

// Cancel requests cancellation of a running job. The job reaches the
// CANCELLED state at its next suspension boundary, not instantly.
// Cancelling a job that already reached a terminal state is a no-op.
func (m *Manager) Cancel(ctx context.Context, id types.ID) error {
	m.mu.Lock()
	h, running := m.active[id]
	m.mu.Unlock()

	if running {
		h.cancelled.Store(true)
		h.cancel()
		m.logger.Info("job cancellation requested", "job_id", id.String())
		return nil
	}

	status, err := m.store.GetStatus(ctx, id)
	if err != nil {
		return err
	}
	if status.State.IsTerminal() {
		return nil
	}

	return types.NewError(types.JOB_NOT_FOUND, "job is not running: "+id.String())
}

// PollUntilDone blocks until the job reaches a terminal state, checking
// at the given interval. A non-positive interval selects the default; a
// positive timeout bounds the wait with a JOB_POLL_TIMEOUT error. The
// terminal status is always returned, but only COMPLETE returns it with
// a nil error: a FAILED job fails the poll with its stored error and a
// CANCELLED job with a cancellation error.
func (m *Manager) PollUntilDone(ctx context.Context, id types.ID, interval, timeout time.Duration) (*Status, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := m.store.GetStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		if status.State.IsTerminal() {
			return status, m.terminalError(ctx, status)
		}

		select {
		case <-ctx.Done():
			return nil, types.WrapError(types.JOB_CANCELLED, "polling aborted", ctx.Err())
		case <-deadline:
			return nil, types.NewError(types.JOB_POLL_TIMEOUT,
				fmt.Sprintf("job %s did not finish within %s", id.String(), timeout))
		case <-ticker.C:
		}
	}
}

// terminalError converts a terminal status into the poll outcome. FAILED
// surfaces the error recorded in results, falling back to the status
// detail when the results row is missing.
func (m *Manager) terminalError(ctx context.Context, status *Status) error {
	switch status.State {
	case types.JobStateFailed:
		msg := status.Detail
		if results, err := m.store.GetResults(ctx, status.ID); err == nil && results.Error != "" {
			msg = results.Error
		}
		return types.NewError(types.JOB_FAILED, "job failed: "+msg)
	case types.JobStateCancelled:
		return types.NewError(types.JOB_CANCELLED, "job was cancelled: "+status.ID.String())
	default:
		return nil
	}
}

// Wait blocks until the identified execution goroutine exits. It is a
// test hook; production callers poll.
func (m *Manager) Wait(id types.ID) {
	m.mu.Lock()
	h, ok := m.active[id]
	m.mu.Unlock()

	if ok {
		<-h.done
	}
}

// Close cancels every running job and waits for their goroutines.
func (m *Manager) Close() {
	m.mu.Lock()
	handles := make([]*handle, 0, len(m.active))
	for _, h := range m.active {
		h.cancelled.Store(true)
		h.cancel()
		handles = append(handles, h)
	}
	m.mu.Unlock()

	for _, h := range handles {
		<-h.done
	}
}

// storeMonitor is the engine's view of the manager: status and trail
// writes go to the store, cancellation reads the handle flag so a cancel
// is observed even before the context propagates.
type storeMonitor struct {
	store  Store
	jobID  types.ID
	handle *handle
}

var _ engine.Monitor = (*storeMonitor)(nil)

func (s *storeMonitor) UpdateStatus(ctx context.Context, state types.JobState, progress int, detail string) error {
	return s.store.SetStatus(ctx, &Status{
		ID:         s.jobID,
		State:      state,
		RetryCount: progress,
		Detail:     detail,
		UpdatedAt:  time.Now().UTC(),
	})
}

func (s *storeMonitor) AppendTrail(ctx context.Context, update engine.TrailUpdate) error {
	trail, err := s.store.GetTrail(ctx, s.jobID)
	if err != nil {
		trail = &Trail{}
	}

	if update.Assets != "" {
		trail.Assets = update.Assets
	}
	if update.Flows != "" {
		trail.Flows = update.Flows
	}
	if update.Threats != "" {
		trail.Threats = update.Threats
	}
	if update.Gaps != "" {
		trail.Gaps = append(trail.Gaps, update.Gaps)
	}

	return s.store.UpdateTrail(ctx, s.jobID, trail)
}

func (s *storeMonitor) Cancelled(ctx context.Context) (bool, error) {
	return s.handle.cancelled.Load(), nil
}
