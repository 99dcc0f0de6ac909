package repository

import (
	"context"
	"sync"
	"time"

	"memodams/backend/internal/stepup/domain"
)

// MemoryRepository is an in-process Repository used when no database is configured and in tests.
type MemoryRepository struct {
	mu         sync.Mutex
	challenges map[string]*domain.Challenge
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{challenges: make(map[string]*domain.Challenge)}
}

func clone(c *domain.Challenge) *domain.Challenge {
	out := *c
	out.Hints = append([]domain.FactorHint(nil), c.Hints...)
	return &out
}

func (m *MemoryRepository) Create(_ context.Context, c *domain.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges[c.ID] = clone(c)
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*domain.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.challenges[id]; ok {
		return clone(c), nil
	}
	return nil, nil
}

func (m *MemoryRepository) Update(_ context.Context, c *domain.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.challenges[c.ID]
	if !ok {
		return nil
	}
	next := clone(c)
	next.Attempts = cur.Attempts
	if cur.Stage != c.Stage {
		next.Attempts = 0
	}
	m.challenges[c.ID] = next
	return nil
}

func (m *MemoryRepository) IncrementAttempts(_ context.Context, id string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[id]
	if !ok {
		return 0, nil
	}
	c.Attempts++
	c.UpdatedAt = at
	return c.Attempts, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.challenges, id)
	return nil
}

func (m *MemoryRepository) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, c := range m.challenges {
		if !now.Before(c.ExpiresAt) {
			delete(m.challenges, id)
			n++
		}
	}
	return n, nil
}

// MemoryLockouts is an in-process Lockouts.
type MemoryLockouts struct {
	mu       sync.Mutex
	counters map[string]*domain.Lockout
}

func NewMemoryLockouts() *MemoryLockouts {
	return &MemoryLockouts{counters: make(map[string]*domain.Lockout)}
}

func (m *MemoryLockouts) Get(_ context.Context, accountID string) (*domain.Lockout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.counters[accountID]
	if !ok {
		return nil, nil
	}
	out := *l
	return &out, nil
}

func (m *MemoryLockouts) RecordFailure(_ context.Context, accountID string, at time.Time, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.counters[accountID]
	if !ok {
		l = &domain.Lockout{AccountID: accountID, WindowStart: at}
		m.counters[accountID] = l
	} else if !l.WindowStart.After(at.Add(-window)) {
		l.Failures = 0
		l.WindowStart = at
	}
	l.Failures++
	l.UpdatedAt = at
	return l.Failures, nil
}

func (m *MemoryLockouts) Lock(_ context.Context, accountID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.counters[accountID]; ok {
		l.LockedUntil = &until
	}
	return nil
}

func (m *MemoryLockouts) Clear(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counters, accountID)
	return nil
}

func (m *MemoryLockouts) DeleteStale(_ context.Context, cutoff, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, l := range m.counters {
		if !l.WindowStart.After(cutoff) && !l.Locked(now) {
			delete(m.counters, id)
			n++
		}
	}
	return n, nil
}
