// Package devotp keeps plaintext one-time codes in memory when OTP_RETURN_TO_CLIENT is on,
// so local development can finish phone step-up without an SMS provider (GET /dev/otp/:id).
package devotp

import (
	"context"
	"sync"
	"time"
)

// Store holds plain codes by delivery id: a step-up challenge id or a phone enrollment id.
type Store interface {
	Put(ctx context.Context, deliveryID, code string, expiresAt time.Time)
	// Get returns the code if present and unexpired.
	Get(ctx context.Context, deliveryID string) (code string, ok bool)
	Delete(ctx context.Context, deliveryID string)
}

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is the in-memory Store. Expired entries are dropped on read.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry), now: time.Now}
}

func (s *MemoryStore) Put(_ context.Context, deliveryID, code string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[deliveryID] = entry{code: code, expiresAt: expiresAt}
}

func (s *MemoryStore) Get(_ context.Context, deliveryID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[deliveryID]
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.now()) {
		delete(s.entries, deliveryID)
		return "", false
	}
	return e.code, true
}

func (s *MemoryStore) Delete(_ context.Context, deliveryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, deliveryID)
}
