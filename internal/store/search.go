package store

import (
	"context"
	"strings"

	"github.com/matheus3301/msgvault/internal/keys"
)

// SearchResult holds a matching message with a caption snippet.
type SearchResult struct {
	Message Message
	Snippet string
}

const snippetWindow = 48

// SearchMessages scans message captions for query, case-insensitively.
// cid narrows the search to one chat; empty searches them all. Results
// arrive in no particular order, capped at limit (default 50). The scan
// streams over the engine and stops as soon as the cap is reached.
func (s *Store) SearchMessages(ctx context.Context, query, cid string, limit int) ([]SearchResult, error) {
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	needle := strings.ToLower(query)

	var results []SearchResult
	var decodeErr error
	err := s.engine.Entries(ctx, func(rawKey, value string) bool {
		k, err := keys.Parse(rawKey)
		if err != nil || k.Kind != keys.KindMessage {
			return true
		}
		if cid != "" && k.ChatID != cid {
			return true
		}
		var rec Message
		if err := decodeRecord(rawKey, value, &rec); err != nil {
			decodeErr = err
			return false
		}
		at := strings.Index(strings.ToLower(rec.Caption), needle)
		if at < 0 {
			return true
		}
		results = append(results, SearchResult{
			Message: rec,
			Snippet: snippet(rec.Caption, at, len(needle)),
		})
		return len(results) < limit
	})
	if err != nil {
		return nil, err
	}
	return results, decodeErr
}

// snippet cuts a window around the match and marks it <<like this>>,
// with ellipses on trimmed ends. at and matchLen index the case-folded
// caption; folding can shift byte offsets, so clamp to the original.
func snippet(caption string, at, matchLen int) string {
	if at > len(caption) {
		at = len(caption)
	}
	if at+matchLen > len(caption) {
		matchLen = len(caption) - at
	}
	start := at - snippetWindow/2
	if start < 0 {
		start = 0
	}
	end := at + matchLen + snippetWindow/2
	if end > len(caption) {
		end = len(caption)
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(caption[start:at])
	b.WriteString("<<")
	b.WriteString(caption[at : at+matchLen])
	b.WriteString(">>")
	b.WriteString(caption[at+matchLen : end])
	if end < len(caption) {
		b.WriteString("...")
	}
	return b.String()
}
