package job

import (
	"context"
	"sort"
	"sync"

	"github.com/threatforge/threatforge/internal/types"
)

// MemoryStore is an in-process Store for tests and the ephemeral CLI
// path. Values are copied on the way in and out so callers cannot mutate
// stored state through retained pointers.
type MemoryStore struct {
	mu       sync.RWMutex
	statuses map[types.ID]Status
	results  map[types.ID]Results
	trails   map[types.ID]Trail
	index    []IndexEntry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		statuses: make(map[types.ID]Status),
		results:  make(map[types.ID]Results),
		trails:   make(map[types.ID]Trail),
	}
}

func (m *MemoryStore) GetStatus(ctx context.Context, id types.ID) (*Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statuses[id]
	if !ok {
		return nil, types.NewError(types.JOB_NOT_FOUND, "job not found: "+id.String())
	}
	return &status, nil
}

func (m *MemoryStore) SetStatus(ctx context.Context, status *Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statuses[status.ID] = *status
	return nil
}

func (m *MemoryStore) GetResults(ctx context.Context, id types.ID) (*Results, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results, ok := m.results[id]
	if !ok {
		return nil, types.NewError(types.JOB_NOT_FOUND, "no results for job: "+id.String())
	}

	copied := results
	copied.ThreatList = append(results.ThreatList[:0:0], results.ThreatList...)
	copied.Backup = copyBackup(results.Backup)
	copied.GapLog = append(results.GapLog[:0:0], results.GapLog...)
	return &copied, nil
}

func (m *MemoryStore) SetResults(ctx context.Context, results *Results) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *results
	copied.ThreatList = append(results.ThreatList[:0:0], results.ThreatList...)
	copied.Backup = copyBackup(results.Backup)
	copied.GapLog = append(results.GapLog[:0:0], results.GapLog...)
	m.results[results.JobID] = copied
	return nil
}

func copyBackup(b *Backup) *Backup {
	if b == nil {
		return nil
	}
	return &Backup{
		Assets:       append(b.Assets[:0:0], b.Assets...),
		Architecture: b.Architecture,
		ThreatList:   append(b.ThreatList[:0:0], b.ThreatList...),
	}
}

func (m *MemoryStore) GetTrail(ctx context.Context, id types.ID) (*Trail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trail, ok := m.trails[id]
	if !ok {
		return nil, types.NewError(types.JOB_NOT_FOUND, "no trail for job: "+id.String())
	}

	copied := trail
	copied.Gaps = append(trail.Gaps[:0:0], trail.Gaps...)
	return &copied, nil
}

func (m *MemoryStore) UpdateTrail(ctx context.Context, id types.ID, trail *Trail) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *trail
	copied.Gaps = append(trail.Gaps[:0:0], trail.Gaps...)
	m.trails[id] = copied
	return nil
}

func (m *MemoryStore) AddToIndex(ctx context.Context, entry IndexEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.index {
		if existing.ID == entry.ID {
			m.index[i] = entry
			return nil
		}
	}
	m.index = append(m.index, entry)
	return nil
}

func (m *MemoryStore) ListIndex(ctx context.Context) ([]IndexEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := append(m.index[:0:0], m.index...)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
