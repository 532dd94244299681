package verstats

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory implements Backend with thread-safe in-memory storage.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an in-memory Backend, optionally seeded with entries.
func NewMemory(seed map[string][]byte) *Memory {
	m := &Memory{data: make(map[string][]byte, len(seed))}
	for k, v := range seed {
		m.data[k] = clone(v)
	}
	return m
}

func (m *Memory) Write(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == nil {
		delete(m.data, key)
		return nil
	}
	m.data[key] = clone(value)
	return nil
}

func (m *Memory) Read(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v), nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// DeletePrefix removes all keys with the given prefix.
func (m *Memory) DeletePrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	keysToDelete := make([]string, 0)
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			keysToDelete = append(keysToDelete, key)
		}
	}

	for _, key := range keysToDelete {
		delete(m.data, key)
	}

	return nil
}

func (m *Memory) LastVersion(ctx context.Context) (string, error) {
	v, err := m.Read(ctx, LastVersionKey)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (m *Memory) SetLastVersion(ctx context.Context, version string) error {
	return m.Write(ctx, LastVersionKey, []byte(version))
}

// Update applies fn to key while holding the write lock.
func (m *Memory) Update(ctx context.Context, key string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.data[key]
	next, keep, err := fn(clone(old), ok)
	if err != nil {
		return err
	}
	if !keep || next == nil {
		delete(m.data, key)
		return nil
	}
	m.data[key] = clone(next)
	return nil
}

// Keys returns the sorted keys starting with prefix.
func (m *Memory) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []string
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			result = append(result, key)
		}
	}
	sort.Strings(result)
	return result
}

func clone(src []byte) []byte {
	if src == nil {
		return nil
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}
