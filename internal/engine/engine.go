// Package engine defines the storage backend contract the vault is built
// on. An Engine is a flat string-to-string keyspace with streaming
// iteration; everything above it (typed records, namespaces, pagination)
// is layered on by the store package without the engine's knowledge.
//
// Two optional capabilities upgrade an Engine when the medium supports
// them: Scanner for server-side pattern matching and Stamper for per-key
// modification times. Callers discover both with a type assertion and fall
// back to full iteration when the assertion fails, so every engine —
// however minimal — serves the same surface.
package engine

import (
	"context"
	"time"
)

// Engine is the minimal backend contract. Implementations must be safe for
// concurrent use. Absent keys are reported through the boolean results,
// never through errors; a non-nil error always means the medium itself
// failed.
type Engine interface {
	// Has reports whether key currently exists.
	Has(ctx context.Context, key string) (bool, error)

	// Get returns the value stored at key. found is false when the key
	// does not exist.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value at key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. removed is false when the key did not exist.
	Delete(ctx context.Context, key string) (removed bool, err error)

	// Keys streams every key to fn in no particular order. Iteration
	// stops early when fn returns false. Keys written or removed while
	// the iteration runs may or may not be observed.
	Keys(ctx context.Context, fn func(key string) bool) error

	// Entries streams every key/value pair to fn under the same rules
	// as Keys.
	Entries(ctx context.Context, fn func(key, value string) bool) error

	// Clear removes every key.
	Clear(ctx context.Context) error

	// Close releases the engine's resources. The engine is unusable
	// afterwards.
	Close() error
}

// Scanner is implemented by engines whose medium can match key patterns
// without shipping the whole keyspace to the client.
type Scanner interface {
	// Scan returns the keys matching pattern, in no particular order.
	// The pattern language has a single metacharacter, "*", which
	// matches any run of characters including "/". Every other byte
	// matches itself.
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Stamper is implemented by engines that track when each key was last
// written. Recency-ordered pagination uses it; engines without it degrade
// to a deterministic key ordering.
type Stamper interface {
	// ModTime returns the last-write time of key. found is false when
	// the key does not exist or the medium kept no stamp for it.
	ModTime(ctx context.Context, key string) (t time.Time, found bool, err error)
}

// ScanKeys returns the keys of e matching pattern, using the engine's own
// Scan when it has one and a full filtered iteration otherwise. The two
// paths return the same key set; only the cost differs.
func ScanKeys(ctx context.Context, e Engine, pattern string) ([]string, error) {
	if s, ok := e.(Scanner); ok {
		return s.Scan(ctx, pattern)
	}
	var matched []string
	err := e.Keys(ctx, func(key string) bool {
		if Match(pattern, key) {
			matched = append(matched, key)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return matched, nil
}

// Values streams every value of e to fn, derived from Entries.
func Values(ctx context.Context, e Engine, fn func(value string) bool) error {
	return e.Entries(ctx, func(_, value string) bool {
		return fn(value)
	})
}

// ModTime returns the stamp for key when e is a Stamper, and a zero time
// with found=false otherwise.
func ModTime(ctx context.Context, e Engine, key string) (time.Time, bool, error) {
	if s, ok := e.(Stamper); ok {
		return s.ModTime(ctx, key)
	}
	return time.Time{}, false, nil
}
