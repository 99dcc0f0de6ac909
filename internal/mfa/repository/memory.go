package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"memodams/backend/internal/mfa/domain"
)

// MemoryRepository is an in-process Repository used when no database is configured and in tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	factors map[string]*domain.Factor
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{factors: make(map[string]*domain.Factor)}
}

func (m *MemoryRepository) ListByAccount(_ context.Context, accountID string) ([]*domain.Factor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Factor
	for _, f := range m.factors {
		if f.AccountID == accountID {
			c := *f
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Factor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if f, ok := m.factors[id]; ok {
		c := *f
		return &c, nil
	}
	return nil, nil
}

func (m *MemoryRepository) Create(_ context.Context, f *domain.Factor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *f
	m.factors[f.ID] = &c
	return nil
}

func (m *MemoryRepository) Confirm(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.factors[id]
	if !ok {
		return nil
	}
	for _, other := range m.factors {
		if other.ID != id && other.AccountID == f.AccountID && other.ConfirmedAt != nil {
			return ErrAlreadyConfirmed
		}
	}
	f.ConfirmedAt = &at
	f.PendingCodeHash = ""
	f.PendingCodeExpires = nil
	return nil
}

func (m *MemoryRepository) SetPendingCode(_ context.Context, id, codeHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.factors[id]; ok {
		f.PendingCodeHash = codeHash
		f.PendingCodeExpires = &expiresAt
	}
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.factors, id)
	return nil
}

func (m *MemoryRepository) DeletePendingByAccount(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, f := range m.factors {
		if f.AccountID == accountID && f.ConfirmedAt == nil {
			delete(m.factors, id)
		}
	}
	return nil
}
