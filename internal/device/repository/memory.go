package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"memodams/backend/internal/device/domain"
)

type deviceKey struct{ accountID, deviceID string }

// MemoryRepository is an in-process Repository used when no database is configured and in tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	flags map[deviceKey]*domain.TrustedDevice
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{flags: make(map[deviceKey]*domain.TrustedDevice)}
}

func (m *MemoryRepository) Get(_ context.Context, accountID, deviceID string) (*domain.TrustedDevice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.flags[deviceKey{accountID, deviceID}]; ok {
		c := *d
		return &c, nil
	}
	return nil, nil
}

func (m *MemoryRepository) ListByAccount(_ context.Context, accountID string) ([]*domain.TrustedDevice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.TrustedDevice
	for k, d := range m.flags {
		if k.accountID == accountID {
			c := *d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeenAt.After(out[j].LastSeenAt) })
	return out, nil
}

func (m *MemoryRepository) Upsert(_ context.Context, d *domain.TrustedDevice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := deviceKey{d.AccountID, d.DeviceID}
	c := *d
	c.RevokedAt = nil
	if prev, ok := m.flags[k]; ok && c.Label == "" {
		c.Label = prev.Label
	}
	m.flags[k] = &c
	return nil
}

func (m *MemoryRepository) Revoke(_ context.Context, accountID, deviceID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.flags[deviceKey{accountID, deviceID}]
	if !ok || d.RevokedAt != nil {
		return false, nil
	}
	d.RevokedAt = &at
	return true, nil
}

func (m *MemoryRepository) DeleteByDevice(_ context.Context, deviceID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.flags {
		if k.deviceID == deviceID {
			delete(m.flags, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) TouchLastSeen(_ context.Context, accountID, deviceID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.flags[deviceKey{accountID, deviceID}]; ok {
		d.LastSeenAt = at
	}
	return nil
}
