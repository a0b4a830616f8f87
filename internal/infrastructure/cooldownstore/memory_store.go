package cooldownstore

import (
	"context"
	"sync"
	"time"

	"newstack/internal/ports"
)

// MemoryStore keeps cooldown timestamps in process memory.
type MemoryStore struct {
	mu          sync.Mutex
	lastSuccess time.Time
	lastFailure time.Time
}

var _ ports.CooldownStore = (*MemoryStore)(nil)

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// LastSuccess returns the last recorded success time.
func (m *MemoryStore) LastSuccess(context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSuccess, nil
}

// LastFailure returns the last recorded failure time.
func (m *MemoryStore) LastFailure(context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFailure, nil
}

// RecordSuccess stores at as the last success.
func (m *MemoryStore) RecordSuccess(_ context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSuccess = at
	return nil
}

// RecordFailure stores at as the last failure.
func (m *MemoryStore) RecordFailure(_ context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFailure = at
	return nil
}
