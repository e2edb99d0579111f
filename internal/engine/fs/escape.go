package fs

import (
	"fmt"
	"strings"
)

const hexDigits = "0123456789ABCDEF"

// escapeSegment rewrites one key segment into a name every filesystem can
// hold. Letters, digits, '.', '_' and '-' pass through; everything else
// (the '@' of messaging identifiers, spaces, '%', multi-byte runes) becomes
// %XX per byte. A leading '.' is always escaped so encoded names never
// collide with dotfiles, which the walkers skip as foreign.
func escapeSegment(seg string) string {
	var b strings.Builder
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		if safeByte(c) && !(i == 0 && c == '.') {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0F])
	}
	return b.String()
}

// unescapeSegment is the inverse of escapeSegment. It fails on names not
// produced by it, which the walkers use to detect foreign files — a name
// holding a byte the escaper would have encoded was not written by us.
func unescapeSegment(name string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c != '%' {
			if !safeByte(c) {
				return "", fmt.Errorf("unescaped byte in %q", name)
			}
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(name) {
			return "", fmt.Errorf("truncated escape in %q", name)
		}
		hi, ok1 := hexVal(name[i+1])
		lo, ok2 := hexVal(name[i+2])
		if !ok1 || !ok2 {
			return "", fmt.Errorf("bad escape in %q", name)
		}
		b.WriteByte(hi<<4 | lo)
		i += 2
	}
	return b.String(), nil
}

func safeByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.' || c == '_' || c == '-':
		return true
	}
	return false
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}
