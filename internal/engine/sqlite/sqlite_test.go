package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/msgvault/internal/engine"
	"github.com/matheus3301/msgvault/internal/engine/enginetest"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(filepath.Join(t.TempDir(), "vault.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestConformance(t *testing.T) {
	enginetest.Run(t, func(t *testing.T) engine.Engine {
		return testEngine(t)
	})
}

func TestMigrateIdempotent(t *testing.T) {
	e := testEngine(t)

	result, err := migrateUp(e.db)
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second migration run reported Changed=true")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (kv + updated_at index)", result.Version)
	}
	if result.Dirty {
		t.Error("schema left dirty")
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vault.db")

	e, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Set(ctx, "chat/c1/index", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	e, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Close() })
	v, found, err := e.Get(ctx, "chat/c1/index")
	if err != nil {
		t.Fatal(err)
	}
	if !found || v != "v1" {
		t.Errorf("Get after reopen = (%q, %v), want (\"v1\", true)", v, found)
	}
}

func TestToGlob(t *testing.T) {
	cases := []struct{ in, want string }{
		{"chat/c1/*", "chat/c1/*"},
		{"chat/what?/*", "chat/what[?]/*"},
		{"a[b]/*", "a[[]b]/*"},
		{"plain/key/index", "plain/key/index"},
	}
	for _, tc := range cases {
		if got := toGlob(tc.in); got != tc.want {
			t.Errorf("toGlob(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestScanMatchesEngineMatch(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t)

	seed := []string{
		"chat/c?1/index",
		"chat/c[1]/index",
		"chat/C1/index",
		"chat/c1/index",
	}
	for _, k := range seed {
		if err := e.Set(ctx, k, "v"); err != nil {
			t.Fatal(err)
		}
	}

	// Case sensitivity and metacharacter escaping must agree with the
	// reference matcher.
	for _, pattern := range []string{"chat/c1/*", "chat/c?1/*", "chat/c[1]/*", "chat/*"} {
		got, err := e.Scan(ctx, pattern)
		if err != nil {
			t.Fatalf("Scan(%q): %v", pattern, err)
		}
		want := map[string]bool{}
		for _, k := range seed {
			if engine.Match(pattern, k) {
				want[k] = true
			}
		}
		if len(got) != len(want) {
			t.Fatalf("Scan(%q) = %v, want keys of %v", pattern, got, want)
		}
		for _, k := range got {
			if !want[k] {
				t.Errorf("Scan(%q) returned %q, which the reference matcher rejects", pattern, k)
			}
		}
	}
}

func TestStampSurvivesValueOnlyRead(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t)

	e.now = func() time.Time { return time.Unix(0, 42) }
	if err := e.Set(ctx, "chat/c1/index", "v"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.Get(ctx, "chat/c1/index"); err != nil {
		t.Fatal(err)
	}
	got, found, err := e.ModTime(ctx, "chat/c1/index")
	if err != nil {
		t.Fatal(err)
	}
	if !found || got.UnixNano() != 42 {
		t.Errorf("ModTime = (%v, %v), want stamp 42ns untouched by reads", got, found)
	}
}
