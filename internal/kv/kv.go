// Package kv defines the durable string key-value store the reminder
// repository and the shadow scheduler persist into.
package kv

import (
	"context"
	"sync"
)

// Store maps string keys to string values. Reads and writes are atomic per key.
type Store interface {
	// GetString returns the value under key; ok is false when the key is unset.
	GetString(ctx context.Context, key string) (value string, ok bool, err error)
	// Set overwrites the value under key.
	Set(ctx context.Context, key, value string) error
}

// Memory is an in-process Store. Values do not survive restarts.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) GetString(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
