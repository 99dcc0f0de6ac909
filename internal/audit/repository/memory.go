package repository

import (
	"context"
	"sort"
	"sync"

	"memodams/backend/internal/audit/domain"
)

// MemoryRepository keeps audit entries in process. Used without a database and in tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []*domain.AuditLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) Create(_ context.Context, a *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *a
	m.entries = append(m.entries, &c)
	return nil
}

func (m *MemoryRepository) List(_ context.Context, f ListFilter) ([]*domain.AuditLog, error) {
	m.mu.RLock()
	var out []*domain.AuditLog
	for _, e := range m.entries {
		if (f.AccountID == "" || e.AccountID == f.AccountID) && (f.Action == "" || e.Action == f.Action) {
			c := *e
			out = append(out, &c)
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}
