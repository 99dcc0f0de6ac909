package repository

import (
	"context"
	"sync"
	"time"

	"memodams/backend/internal/identity/domain"
)

// MemoryRepository is an in-process Repository used when no database is configured and in tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]*domain.Identity
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.Identity)}
}

func (m *MemoryRepository) GetByAccountAndProvider(_ context.Context, accountID string, provider domain.Provider) (*domain.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, i := range m.byID {
		if i.AccountID == accountID && i.Provider == provider {
			c := *i
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) Create(_ context.Context, i *domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *i
	m.byID[i.ID] = &c
	return nil
}

func (m *MemoryRepository) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.byID[id]; ok {
		i.PasswordHash = passwordHash
		i.UpdatedAt = time.Now().UTC()
	}
	return nil
}
