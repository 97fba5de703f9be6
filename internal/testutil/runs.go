package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/turtacn/molscore/pkg/errors"
	types "github.com/turtacn/molscore/pkg/types/scoring"
)

// MemoryRunStore keeps scoring runs in memory. Err, when set, fails every
// call.
type MemoryRunStore struct {
	Err error

	mu   sync.Mutex
	runs []*types.ScoreRun
}

func (m *MemoryRunStore) Record(_ context.Context, run *types.ScoreRun) error {
	if m.Err != nil {
		return m.Err
	}
	cp := *run
	m.mu.Lock()
	m.runs = append(m.runs, &cp)
	m.mu.Unlock()
	return nil
}

func (m *MemoryRunStore) Get(_ context.Context, requestID string) (*types.ScoreRun, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.RequestID == requestID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, errors.NotFound("scoring run not found").WithDetail(requestID)
}

func (m *MemoryRunStore) List(_ context.Context, filter types.RunFilter) ([]*types.ScoreRun, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	filter = filter.Normalize()
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*types.ScoreRun
	for _, r := range m.runs {
		if filter.Scorer != "" && r.Scorer != filter.Scorer {
			continue
		}
		if !filter.Since.IsZero() && r.CreatedAt.Before(filter.Since) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Runs returns every recorded run in insertion order.
func (m *MemoryRunStore) Runs() []*types.ScoreRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*types.ScoreRun(nil), m.runs...)
}
