package engine

import "testing"

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"chat/c1/*", "chat/c1/index", true},
		{"chat/c1/*", "chat/c1/message/m1/index", true},
		{"chat/c1/*", "chat/c2/index", false},
		{"chat/c1/*", "chat/c1/", true}, // star matches the empty run
		{"chat/c1/*", "chat/c10/index", false},
		{"chat/*/index", "chat/c1/index", true},
		{"chat/*/index", "chat/c1/message/m1/index", true}, // * crosses slashes
		{"*", "anything/at/all", true},
		{"*", "", true},
		{"contact/*", "contact/a@c.us/index", true},
		{"contact/*", "chat/a/index", false},
		{"exact/key/index", "exact/key/index", true},
		{"exact/key/index", "exact/key/index2", false},
		{"a*b*c", "axxbyyc", true},
		{"a*b*c", "abc", true},
		{"a*b*c", "acb", false},
		{"", "", true},
		{"", "x", false},
		{"**", "whatever", true},
	}
	for _, tc := range cases {
		if got := Match(tc.pattern, tc.key); got != tc.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tc.pattern, tc.key, got, tc.want)
		}
	}
}
