package repository

import (
	"context"
	"sync"
	"time"

	"memodams/backend/internal/profile/domain"
)

// MemoryRepository is an in-process Repository used when no database is configured and in tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[string]*domain.Profile
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string]*domain.Profile)}
}

func (m *MemoryRepository) Get(_ context.Context, accountID string) (*domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.docs[accountID]; ok {
		c := *p
		return &c, nil
	}
	return nil, nil
}

func (m *MemoryRepository) Merge(_ context.Context, accountID string, patch domain.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	p, ok := m.docs[accountID]
	if !ok {
		p = &domain.Profile{AccountID: accountID, CreatedAt: now}
		m.docs[accountID] = p
	}
	if patch.Bio != nil {
		p.Bio = *patch.Bio
	}
	if patch.AvatarURL != nil {
		p.AvatarURL = *patch.AvatarURL
	}
	if patch.Birthday != nil && p.Birthday == nil {
		b := *patch.Birthday
		p.Birthday = &b
	}
	if patch.SecurityQuestion != nil {
		p.SecurityQuestion = *patch.SecurityQuestion
	}
	if patch.SecurityAnswerHash != nil {
		p.SecurityAnswerHash = *patch.SecurityAnswerHash
	}
	p.UpdatedAt = now
	return nil
}
