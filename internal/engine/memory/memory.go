// Package memory implements an in-process engine backed by a plain map.
// It exists for tests, for ephemeral accounts, and as the simplest
// reference for what the contract demands.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/msgvault/internal/engine"
)

// Engine is a map-backed engine. It implements engine.Engine,
// engine.Scanner and engine.Stamper. The zero value is not usable; call
// New or NewWithClock.
type Engine struct {
	mu     sync.RWMutex
	data   map[string]string
	stamps map[string]time.Time
	now    func() time.Time
}

// New returns an empty engine stamping writes with time.Now.
func New() *Engine {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty engine using now for write stamps. Tests
// inject a fake clock to make recency ordering deterministic.
func NewWithClock(now func() time.Time) *Engine {
	return &Engine{
		data:   make(map[string]string),
		stamps: make(map[string]time.Time),
		now:    now,
	}
}

// Has implements engine.Engine.
func (e *Engine) Has(_ context.Context, key string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.data[key]
	return ok, nil
}

// Get implements engine.Engine.
func (e *Engine) Get(_ context.Context, key string) (string, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.data[key]
	return v, ok, nil
}

// Set implements engine.Engine.
func (e *Engine) Set(_ context.Context, key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data[key] = value
	e.stamps[key] = e.now()
	return nil
}

// Delete implements engine.Engine.
func (e *Engine) Delete(_ context.Context, key string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.data[key]
	if ok {
		delete(e.data, key)
		delete(e.stamps, key)
	}
	return ok, nil
}

// Keys implements engine.Engine. It snapshots the key set so fn runs
// without holding the engine lock.
func (e *Engine) Keys(_ context.Context, fn func(key string) bool) error {
	for _, k := range e.snapshotKeys() {
		if !fn(k) {
			return nil
		}
	}
	return nil
}

// Entries implements engine.Engine. Keys removed between the snapshot and
// their visit are skipped.
func (e *Engine) Entries(_ context.Context, fn func(key, value string) bool) error {
	for _, k := range e.snapshotKeys() {
		e.mu.RLock()
		v, ok := e.data[k]
		e.mu.RUnlock()
		if !ok {
			continue
		}
		if !fn(k, v) {
			return nil
		}
	}
	return nil
}

// Clear implements engine.Engine.
func (e *Engine) Clear(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data = make(map[string]string)
	e.stamps = make(map[string]time.Time)
	return nil
}

// Close implements engine.Engine.
func (e *Engine) Close() error { return nil }

// Scan implements engine.Scanner.
func (e *Engine) Scan(_ context.Context, pattern string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var matched []string
	for k := range e.data {
		if engine.Match(pattern, k) {
			matched = append(matched, k)
		}
	}
	return matched, nil
}

// ModTime implements engine.Stamper.
func (e *Engine) ModTime(_ context.Context, key string) (time.Time, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.stamps[key]
	return t, ok, nil
}

func (e *Engine) snapshotKeys() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	keys := make([]string, 0, len(e.data))
	for k := range e.data {
		keys = append(keys, k)
	}
	return keys
}
