package storage

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory is an in-process Store. Values are kept as encoded JSON so callers
// never share memory with what they stored.
type Memory struct {
	mu       sync.RWMutex
	data     map[string][]byte
	watchers Watchers
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, &StoreError{Op: "get", Key: key, Cause: err}
	}
	return true, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return &StoreError{Op: "set", Key: key, Cause: err}
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	m.watchers.Notify(key)
	return nil
}

// SetRaw stores already encoded JSON as is.
func (m *Memory) SetRaw(key string, raw []byte) {
	m.mu.Lock()
	m.data[key] = append([]byte(nil), raw...)
	m.mu.Unlock()
	m.watchers.Notify(key)
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	_, ok := m.data[key]
	delete(m.data, key)
	m.mu.Unlock()
	if ok {
		m.watchers.Notify(key)
	}
	return nil
}

// Watch implements Store.
func (m *Memory) Watch(fn func(key string)) func() {
	return m.watchers.Add(fn)
}

// Keys returns the stored keys.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}
