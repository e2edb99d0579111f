package store

import (
	"context"
	"sort"
	"time"

	"github.com/matheus3301/msgvault/internal/engine"
	"github.com/matheus3301/msgvault/internal/keys"
)

// recentKeys returns one page of keys matching pattern, newest write
// first. It is the one pagination path every router shares, and it must
// behave identically whether the engine scans server-side or the fallback
// filters a full iteration:
//
//  1. candidates come from engine.ScanKeys (capability or fallback),
//  2. each candidate must Parse and satisfy keep — "*" crosses slashes,
//     so a chat pattern also catches nested message keys,
//  3. order is stamp descending; ties, and every key on a stamp-less
//     engine, fall back to key ascending so the order stays deterministic,
//  4. the [offset, offset+limit) window is cut before any value is
//     fetched.
//
// offset past the end and limit <= 0 both return an empty page, never an
// error.
func recentKeys(ctx context.Context, e engine.Engine, pattern string, keep func(keys.Key) bool, offset, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	if offset < 0 {
		offset = 0
	}

	candidates, err := engine.ScanKeys(ctx, e, pattern)
	if err != nil {
		return nil, err
	}

	type stamped struct {
		key string
		at  time.Time
	}
	page := make([]stamped, 0, len(candidates))
	for _, raw := range candidates {
		k, err := keys.Parse(raw)
		if err != nil {
			continue // foreign key sharing the engine
		}
		if !keep(k) {
			continue
		}
		at, _, err := engine.ModTime(ctx, e, raw)
		if err != nil {
			return nil, err
		}
		page = append(page, stamped{key: raw, at: at})
	}

	sort.Slice(page, func(i, j int) bool {
		if !page[i].at.Equal(page[j].at) {
			return page[i].at.After(page[j].at)
		}
		return page[i].key < page[j].key
	})

	if offset >= len(page) {
		return nil, nil
	}
	end := offset + limit
	if end > len(page) {
		end = len(page)
	}
	out := make([]string, 0, end-offset)
	for _, s := range page[offset:end] {
		out = append(out, s.key)
	}
	return out, nil
}
