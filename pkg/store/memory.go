package store

import (
	"errors"
	"sync"
)

var _ Store = &Memory{}

// ErrUnavailable is returned by Memory when it is set to fail writes.
var ErrUnavailable = errors.New("store unavailable")

// Memory is an in-process Store. It is used in tests and when the daemon
// runs without a store directory.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	failed bool
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// SetFailing makes every following Put fail with ErrUnavailable.
func (m *Memory) SetFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = failing
}

func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failed {
		return ErrUnavailable
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Keys returns the number of stored keys.
func (m *Memory) Keys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
