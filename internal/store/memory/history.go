package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/salesimport/internal/core"
)

// NewSession hands out the store itself. Runs share the store's pending
// writes, so the service's limiter should admit one run at a time.
func (s *Store) NewSession(context.Context) (core.Session, error) {
	return s, nil
}

// Close discards writes that were never flushed.
func (s *Store) Close(context.Context) error {
	s.Discard()
	return nil
}

// History keeps import runs in memory.
type History struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]core.Run
}

// NewHistory creates an empty run history.
func NewHistory() *History {
	return &History{runs: make(map[uuid.UUID]core.Run)}
}

func (h *History) SaveRun(_ context.Context, run *core.Run) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs[run.ID] = *run
	return nil
}

func (h *History) ListRuns(_ context.Context, limit int) ([]core.Run, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	runs := make([]core.Run, 0, len(h.runs))
	for _, r := range h.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (h *History) GetRun(_ context.Context, id uuid.UUID) (*core.Run, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.runs[id]
	if !ok {
		return nil, core.ErrRunNotFound
	}
	return &r, nil
}
