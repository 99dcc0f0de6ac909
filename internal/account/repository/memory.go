package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"memodams/backend/internal/account/domain"
)

// MemoryRepository is an in-process Repository used when no database is configured and in tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]*domain.Account
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.Account)}
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.byID[id]; ok {
		c := *a
		return &c, nil
	}
	return nil, nil
}

func (m *MemoryRepository) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.byID {
		if a.Email == email {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) List(_ context.Context, limit, offset int) ([]*domain.Account, error) {
	m.mu.RLock()
	all := make([]*domain.Account, 0, len(m.byID))
	for _, a := range m.byID {
		c := *a
		all = append(all, &c)
	}
	m.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryRepository) Count(_ context.Context) (domain.Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var c domain.Counts
	for _, a := range m.byID {
		c.Total++
		if a.EmailVerified {
			c.EmailVerified++
		}
		if a.Admin {
			c.Admins++
		}
	}
	return c, nil
}

func (m *MemoryRepository) Create(_ context.Context, a *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == a.Email {
			return ErrEmailTaken
		}
	}
	c := *a
	m.byID[a.ID] = &c
	return nil
}

func (m *MemoryRepository) SetEmailVerified(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.byID[id]; ok {
		a.EmailVerified = true
		a.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MemoryRepository) SetAdmin(_ context.Context, id string, admin bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	a.Admin = admin
	a.UpdatedAt = time.Now().UTC()
	return true, nil
}
