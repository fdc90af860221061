// Package optimistic applies a local change before the request that
// confirms it, and restores the previous value if the request fails.
package optimistic

import (
	"context"
	"errors"
	"sync"
)

// ErrInFlight is returned when a mutation for the same key is still pending.
// Nothing is applied in that case.
var ErrInFlight = errors.New("optimistic: mutation already in flight")

// Mutation describes one optimistic change. Revert must restore the exact
// value Apply replaced, it must not recompute it.
type Mutation struct {
	Apply   func()
	Revert  func()
	Request func(ctx context.Context) error
}

// Mutator serializes mutations per key. The zero value is ready to use.
type Mutator[K comparable] struct {
	mu      sync.Mutex
	pending map[K]struct{}
}

func New[K comparable]() *Mutator[K] {
	return &Mutator[K]{pending: make(map[K]struct{})}
}

// Do runs m for key. The request error, if any, is returned after Revert ran.
func (m *Mutator[K]) Do(ctx context.Context, key K, mut Mutation) error {
	if mut.Request == nil {
		return errors.New("optimistic: nil request")
	}
	if !m.acquire(key) {
		return ErrInFlight
	}
	defer m.release(key)

	if mut.Apply != nil {
		mut.Apply()
	}
	if err := mut.Request(ctx); err != nil {
		if mut.Revert != nil {
			mut.Revert()
		}
		return err
	}
	return nil
}

// Hold runs fn while holding key, so no mutation for key starts meanwhile.
// It reports false without running fn when key is busy.
func (m *Mutator[K]) Hold(key K, fn func()) bool {
	if !m.acquire(key) {
		return false
	}
	defer m.release(key)
	fn()
	return true
}

// Pending reports whether a mutation for key is in flight.
func (m *Mutator[K]) Pending(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[key]
	return ok
}

func (m *Mutator[K]) acquire(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		m.pending = make(map[K]struct{})
	}
	if _, busy := m.pending[key]; busy {
		return false
	}
	m.pending[key] = struct{}{}
	return true
}

func (m *Mutator[K]) release(key K) {
	m.mu.Lock()
	delete(m.pending, key)
	m.mu.Unlock()
}
