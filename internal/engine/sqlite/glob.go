package sqlite

import "strings"

// toGlob rewrites a scan pattern for SQLite's GLOB operator. Our pattern
// language has "*" as its only metacharacter; GLOB additionally treats "?"
// and "[" specially, so those are wrapped in single-character classes.
func toGlob(pattern string) string {
	if !strings.ContainsAny(pattern, "?[") {
		return pattern
	}
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '?':
			b.WriteString("[?]")
		case '[':
			b.WriteString("[[]")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
