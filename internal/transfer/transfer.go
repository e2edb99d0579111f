// Package transfer moves whole stores between engines, e.g. migrating an
// account from the filesystem backend to sqlite, or pulling a remote
// daemon's data into a local file tree.
package transfer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/msgvault/internal/engine"
)

// Options control a Copy run.
type Options struct {
	// Clear empties the destination before the first write.
	Clear bool
	// LogEvery is the progress logging interval in entries. Zero means 256.
	LogEvery int
}

// Result summarizes a completed copy.
type Result struct {
	Entries int
}

// Copier moves every entry of one engine into another.
type Copier struct {
	logger *zap.Logger
}

// NewCopier creates a copier. A nil logger disables progress output.
func NewCopier(logger *zap.Logger) *Copier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Copier{logger: logger}
}

// Copy copies all entries from src to dst. When src keeps stamps the
// entries are written oldest-first, so a stamping destination reproduces
// the source's recency order.
func (c *Copier) Copy(ctx context.Context, src, dst engine.Engine, opts Options) (Result, error) {
	logEvery := opts.LogEvery
	if logEvery <= 0 {
		logEvery = 256
	}

	if opts.Clear {
		if err := dst.Clear(ctx); err != nil {
			return Result{}, fmt.Errorf("clear destination: %w", err)
		}
	}

	keys, err := c.orderedKeys(ctx, src)
	if err != nil {
		return Result{}, err
	}
	c.logger.Info("copy started", zap.Int("keys", len(keys)))

	var res Result
	for _, key := range keys {
		value, found, err := src.Get(ctx, key)
		if err != nil {
			return res, fmt.Errorf("read %s: %w", key, err)
		}
		if !found {
			continue // deleted since the listing
		}
		if err := dst.Set(ctx, key, value); err != nil {
			return res, fmt.Errorf("write %s: %w", key, err)
		}
		res.Entries++
		if res.Entries%logEvery == 0 {
			c.logger.Info("copy progress",
				zap.Int("copied", res.Entries),
				zap.Int("total", len(keys)))
		}
	}

	c.logger.Info("copy finished", zap.Int("entries", res.Entries))
	return res, nil
}

// orderedKeys lists src's keys, oldest write first when stamps exist.
// Stamp-less sources degrade to key order, which at least stays stable
// across runs.
func (c *Copier) orderedKeys(ctx context.Context, src engine.Engine) ([]string, error) {
	var keys []string
	if err := src.Keys(ctx, func(key string) bool {
		keys = append(keys, key)
		return true
	}); err != nil {
		return nil, fmt.Errorf("list source keys: %w", err)
	}

	stamper, ok := src.(engine.Stamper)
	if !ok {
		sort.Strings(keys)
		return keys, nil
	}

	type stamped struct {
		key string
		at  time.Time
	}
	ordered := make([]stamped, 0, len(keys))
	for _, key := range keys {
		at, _, err := stamper.ModTime(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", key, err)
		}
		ordered = append(ordered, stamped{key: key, at: at})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].at.Equal(ordered[j].at) {
			return ordered[i].at.Before(ordered[j].at)
		}
		return ordered[i].key < ordered[j].key
	})

	out := make([]string, 0, len(ordered))
	for _, s := range ordered {
		out = append(out, s.key)
	}
	return out, nil
}
