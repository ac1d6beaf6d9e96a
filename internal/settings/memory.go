package settings

import (
	"context"
	"sync"
)

// MemoryKV keeps values for the lifetime of the process.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, partition, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[partition][key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, partition, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[partition] == nil {
		m.values[partition] = make(map[string]string)
	}
	m.values[partition][key] = value
	return nil
}
