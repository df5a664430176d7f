// Package testutil provides in-memory fakes and mock HTTP servers for tests.
package testutil

import (
	"context"
	"sync"
)

// MemKV is an in-memory key/value table satisfying the store.KV boundary,
// with per-operation fault injection for exercising fail-open paths.
type MemKV struct {
	mu   sync.Mutex
	data map[string]string

	GetErr    error
	PutErr    error
	DeleteErr error
}

// NewMemKV returns an empty table.
func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string]string)}
}

func (m *MemKV) Get(ctx context.Context, key string) (string, bool, error) {
	if m.GetErr != nil {
		return "", false, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemKV) Put(ctx context.Context, key, value string) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemKV) Delete(ctx context.Context, key string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Len reports the number of stored rows.
func (m *MemKV) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// Keys returns the stored keys in no particular order.
func (m *MemKV) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}
