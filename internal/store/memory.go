// internal/store/memory.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-memory Store. Values are kept JSON-encoded so reads
// hand back copies, the same way the remote store does.
type Memory struct {
	mu   sync.RWMutex
	data map[Kind]map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[Kind]map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, kind Kind, id string, out any) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, ok := m.data[kind][id]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", kind, id, err)
	}
	return true, nil
}

func (m *Memory) Save(_ context.Context, kind Kind, id string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", kind, id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data[kind] == nil {
		m.data[kind] = make(map[string][]byte)
	}
	m.data[kind][id] = raw
	return nil
}

func (m *Memory) Remove(_ context.Context, kind Kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data[kind], id)
	return nil
}

func (m *Memory) List(_ context.Context, kind Kind) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.data[kind]))
	for id := range m.data[kind] {
		ids = append(ids, id)
	}
	return ids, nil
}
