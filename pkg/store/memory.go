package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-training/integration-broker/pkg/core"
)

var (
	// ErrEmptyKey is returned when the key string is empty.
	ErrEmptyKey = errors.New("key cannot be empty")
	// ErrInvalidTTL is returned when a write carries a non-positive TTL.
	ErrInvalidTTL = errors.New("ttl must be positive")
)

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore implements the core.Store interface using an in-memory map.
// Expired entries are treated as absent on read and removed by Cleanup.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryStore creates a new instance of MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Set stores value under key until ttl elapses.
func (m *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

// Get returns the value under key. It returns core.ErrKeyNotFound if the key
// does not exist or has expired.
func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return "", core.ErrKeyNotFound
	}
	return e.value, nil
}

// Delete removes key. Missing keys are ignored.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// GetDel returns and removes the value under key in one critical section.
func (m *MemoryStore) GetDel(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return "", core.ErrKeyNotFound
	}
	delete(m.entries, key)
	return e.value, nil
}

// Cleanup removes every expired entry and returns how many were dropped.
func (m *MemoryStore) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for _, e := range m.entries {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

// lookup must be called with m.mu held. Expired entries are dropped.
func (m *MemoryStore) lookup(key string) (entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return entry{}, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return entry{}, false
	}
	return e, true
}
