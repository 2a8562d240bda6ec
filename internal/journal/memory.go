package journal

import (
	"context"
	"sort"
	"strings"
	"sync"

	xerrors "transfer-ever/internal/errors"
)

// DefaultMemoryCapacity bounds the runs a MemoryStore retains.
const DefaultMemoryCapacity = 1000

// MemoryStore keeps the most recent runs in process memory. Once full, saving
// a new run evicts the oldest one by creation time.
type MemoryStore struct {
	mu       sync.RWMutex
	runs     map[string]*Run
	capacity int
}

// NewMemoryStore creates an empty store holding DefaultMemoryCapacity runs.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithCapacity(DefaultMemoryCapacity)
}

// NewMemoryStoreWithCapacity creates an empty store holding at most capacity
// runs. Non-positive values fall back to DefaultMemoryCapacity.
func NewMemoryStoreWithCapacity(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{runs: make(map[string]*Run), capacity: capacity}
}

func (s *MemoryStore) Save(ctx context.Context, run *Run) error {
	if run == nil || strings.TrimSpace(run.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.runs[run.ID]; ok && !existing.CreatedAt.IsZero() {
		cp := run.Clone()
		cp.CreatedAt = existing.CreatedAt
		s.runs[run.ID] = cp
		return nil
	}
	if _, ok := s.runs[run.ID]; !ok && len(s.runs) >= s.capacity {
		s.evictOldestLocked()
	}
	s.runs[run.ID] = run.Clone()
	return nil
}

func (s *MemoryStore) evictOldestLocked() {
	var oldest *Run
	for _, run := range s.runs {
		if oldest == nil || run.CreatedAt.Before(oldest.CreatedAt) ||
			(run.CreatedAt.Equal(oldest.CreatedAt) && run.ID < oldest.ID) {
			oldest = run
		}
	}
	if oldest != nil {
		delete(s.runs, oldest.ID)
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return run.Clone(), nil
}

func (s *MemoryStore) ListLatest(ctx context.Context, limit int) ([]*Run, error) {
	limit = NormalizeLimit(limit)
	s.mu.RLock()
	out := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
