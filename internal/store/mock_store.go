// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu    sync.RWMutex
	prefs map[string]Preference

	// Deletes counts DeletePreference calls per key.
	Deletes map[string]int
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		prefs:   make(map[string]Preference),
		Deletes: make(map[string]int),
	}
}

// GetPreference returns the value stored under key, or ErrNotFound.
func (m *MockStore) GetPreference(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.prefs[key]
	if !ok {
		return "", ErrNotFound
	}
	return p.Value, nil
}

// SetPreference stores value under key.
func (m *MockStore) SetPreference(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prefs[key] = Preference{Key: key, Value: value, UpdatedAt: time.Now()}
	return nil
}

// DeletePreference removes key. Returns ErrNotFound if it was not set.
func (m *MockStore) DeletePreference(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Deletes[key]++
	if _, ok := m.prefs[key]; !ok {
		return ErrNotFound
	}
	delete(m.prefs, key)
	return nil
}

// DeleteCount returns how many times key was deleted.
func (m *MockStore) DeleteCount(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Deletes[key]
}

// ListPreferences returns all preferences ordered by key.
func (m *MockStore) ListPreferences(ctx context.Context) ([]Preference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefs := make([]Preference, 0, len(m.prefs))
	for _, p := range m.prefs {
		prefs = append(prefs, p)
	}
	sort.Slice(prefs, func(i, j int) bool { return prefs[i].Key < prefs[j].Key })
	return prefs, nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}
