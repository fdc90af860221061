// Package sessioncache provides the session-scoped key/value storage the
// role resolver caches into. All implementations are best-effort.
package sessioncache

import (
	"context"
	"sync"
)

// Store is a key/value store. Get reports a miss with ok=false and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context, key string) error
}

// Scope prefixes every key with the session ID, so one backing store can
// hold the storage of many browser sessions.
func Scope(store Store, sessionID string) Store {
	return scoped{store: store, prefix: "session:" + sessionID + ":"}
}

type scoped struct {
	store  Store
	prefix string
}

func (s scoped) Get(ctx context.Context, key string) (string, bool, error) {
	return s.store.Get(ctx, s.prefix+key)
}

func (s scoped) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, s.prefix+key, value)
}

func (s scoped) Clear(ctx context.Context, key string) error {
	return s.store.Clear(ctx, s.prefix+key)
}

// Memory keeps values in process memory.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
