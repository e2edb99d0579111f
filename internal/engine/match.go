package engine

// Match reports whether key matches pattern. "*" matches any run of
// characters, slashes included; every other byte matches itself. This is
// the reference semantics each Scanner implementation must reproduce.
//
// Classic two-pointer glob walk: remember the last "*" and where its match
// ended, and on a mismatch grow that star by one byte and retry.
func Match(pattern, key string) bool {
	var p, k int
	star, mark := -1, 0
	for k < len(key) {
		switch {
		case p < len(pattern) && pattern[p] == '*':
			star, mark = p, k
			p++
		case p < len(pattern) && pattern[p] == key[k]:
			p++
			k++
		case star >= 0:
			mark++
			p, k = star+1, mark
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
