// Package enginetest exercises the engine.Engine contract against any
// implementation. Each engine package runs the suite from its own tests
// with a factory producing a fresh, empty engine per subtest.
package enginetest

import (
	"context"
	"sort"
	"testing"

	"github.com/matheus3301/msgvault/internal/engine"
)

// Factory returns a fresh empty engine. Cleanup belongs to the factory
// (t.Cleanup), so the suite never closes engines itself.
type Factory func(t *testing.T) engine.Engine

// Run drives the conformance suite.
func Run(t *testing.T, factory Factory) {
	ctx := context.Background()

	t.Run("AbsentKey", func(t *testing.T) {
		e := factory(t)
		has, err := e.Has(ctx, "chat/none/index")
		if err != nil {
			t.Fatal(err)
		}
		if has {
			t.Error("Has on absent key = true, want false")
		}
		v, found, err := e.Get(ctx, "chat/none/index")
		if err != nil {
			t.Fatal(err)
		}
		if found || v != "" {
			t.Errorf("Get on absent key = (%q, %v), want (\"\", false)", v, found)
		}
		removed, err := e.Delete(ctx, "chat/none/index")
		if err != nil {
			t.Fatal(err)
		}
		if removed {
			t.Error("Delete on absent key = true, want false")
		}
	})

	t.Run("SetGetRoundTrip", func(t *testing.T) {
		e := factory(t)
		if err := e.Set(ctx, "contact/a@c.us/index", `{"id":"a@c.us"}`); err != nil {
			t.Fatal(err)
		}
		v, found, err := e.Get(ctx, "contact/a@c.us/index")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("Get after Set: found = false")
		}
		if v != `{"id":"a@c.us"}` {
			t.Errorf("value = %q, want stored json", v)
		}
		has, err := e.Has(ctx, "contact/a@c.us/index")
		if err != nil {
			t.Fatal(err)
		}
		if !has {
			t.Error("Has after Set = false")
		}
	})

	t.Run("EmptyValueIsPresent", func(t *testing.T) {
		e := factory(t)
		if err := e.Set(ctx, "document/blank/index", ""); err != nil {
			t.Fatal(err)
		}
		v, found, err := e.Get(ctx, "document/blank/index")
		if err != nil {
			t.Fatal(err)
		}
		if !found || v != "" {
			t.Errorf("Get = (%q, %v), want (\"\", true)", v, found)
		}
	})

	t.Run("OverwriteLastWriteWins", func(t *testing.T) {
		e := factory(t)
		for _, v := range []string{"one", "two", "three"} {
			if err := e.Set(ctx, "document/state/index", v); err != nil {
				t.Fatal(err)
			}
		}
		v, _, err := e.Get(ctx, "document/state/index")
		if err != nil {
			t.Fatal(err)
		}
		if v != "three" {
			t.Errorf("value = %q, want %q", v, "three")
		}
	})

	t.Run("DeleteThenGet", func(t *testing.T) {
		e := factory(t)
		if err := e.Set(ctx, "chat/c1/index", "x"); err != nil {
			t.Fatal(err)
		}
		removed, err := e.Delete(ctx, "chat/c1/index")
		if err != nil {
			t.Fatal(err)
		}
		if !removed {
			t.Error("Delete on present key = false, want true")
		}
		_, found, err := e.Get(ctx, "chat/c1/index")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Error("Get after Delete: found = true")
		}
	})

	t.Run("KeysAndEntries", func(t *testing.T) {
		e := factory(t)
		want := map[string]string{
			"chat/c1/index":            "chat1",
			"chat/c1/message/m1/index": "msg1",
			"contact/u1/index":         "contact1",
		}
		for k, v := range want {
			if err := e.Set(ctx, k, v); err != nil {
				t.Fatal(err)
			}
		}

		var keys []string
		if err := e.Keys(ctx, func(k string) bool {
			keys = append(keys, k)
			return true
		}); err != nil {
			t.Fatal(err)
		}
		if len(keys) != len(want) {
			t.Fatalf("Keys streamed %d keys, want %d", len(keys), len(want))
		}
		for _, k := range keys {
			if _, ok := want[k]; !ok {
				t.Errorf("Keys streamed unexpected key %q", k)
			}
		}

		got := map[string]string{}
		if err := e.Entries(ctx, func(k, v string) bool {
			got[k] = v
			return true
		}); err != nil {
			t.Fatal(err)
		}
		for k, v := range want {
			if got[k] != v {
				t.Errorf("Entries[%q] = %q, want %q", k, got[k], v)
			}
		}
	})

	t.Run("IterationStopsEarly", func(t *testing.T) {
		e := factory(t)
		for _, k := range []string{"a/1/index", "a/2/index", "a/3/index", "a/4/index"} {
			if err := e.Set(ctx, k, "v"); err != nil {
				t.Fatal(err)
			}
		}
		calls := 0
		if err := e.Keys(ctx, func(string) bool {
			calls++
			return false
		}); err != nil {
			t.Fatal(err)
		}
		if calls != 1 {
			t.Errorf("callback ran %d times after returning false, want 1", calls)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		e := factory(t)
		for _, k := range []string{"chat/c1/index", "contact/u1/index"} {
			if err := e.Set(ctx, k, "v"); err != nil {
				t.Fatal(err)
			}
		}
		if err := e.Clear(ctx); err != nil {
			t.Fatal(err)
		}
		count := 0
		if err := e.Keys(ctx, func(string) bool {
			count++
			return true
		}); err != nil {
			t.Fatal(err)
		}
		if count != 0 {
			t.Errorf("%d keys survived Clear, want 0", count)
		}
	})

	t.Run("AwkwardIdentifiers", func(t *testing.T) {
		e := factory(t)
		keys := []string{
			"contact/5511999112233@c.us/index",
			"chat/group-abc_123@g.us/index",
			"document/100% done/index",
			"document/naïve café/index",
		}
		for i, k := range keys {
			if err := e.Set(ctx, k, keys[i]); err != nil {
				t.Fatalf("Set(%q): %v", k, err)
			}
		}
		for _, k := range keys {
			v, found, err := e.Get(ctx, k)
			if err != nil {
				t.Fatalf("Get(%q): %v", k, err)
			}
			if !found || v != k {
				t.Errorf("Get(%q) = (%q, %v), want the key itself", k, v, found)
			}
		}
		var listed []string
		if err := e.Keys(ctx, func(k string) bool {
			listed = append(listed, k)
			return true
		}); err != nil {
			t.Fatal(err)
		}
		sort.Strings(listed)
		wantSorted := append([]string(nil), keys...)
		sort.Strings(wantSorted)
		if len(listed) != len(wantSorted) {
			t.Fatalf("listed %d keys, want %d", len(listed), len(wantSorted))
		}
		for i := range listed {
			if listed[i] != wantSorted[i] {
				t.Errorf("listed[%d] = %q, want %q (escaping must not leak)", i, listed[i], wantSorted[i])
			}
		}
	})

	t.Run("ScanAgreesWithFallback", func(t *testing.T) {
		e := factory(t)
		seed := []string{
			"chat/c1/index",
			"chat/c1/message/m1/index",
			"chat/c1/message/m2/index",
			"chat/c1/content/m1/index",
			"chat/c2/index",
			"contact/u1/index",
			"document/creds/index",
		}
		for _, k := range seed {
			if err := e.Set(ctx, k, "v"); err != nil {
				t.Fatal(err)
			}
		}
		patterns := []string{
			"chat/c1/*",
			"chat/c1/message/*",
			"chat/*",
			"contact/*",
			"*",
			"chat/missing/*",
		}
		for _, pattern := range patterns {
			got, err := engine.ScanKeys(ctx, e, pattern)
			if err != nil {
				t.Fatalf("ScanKeys(%q): %v", pattern, err)
			}
			var want []string
			for _, k := range seed {
				if engine.Match(pattern, k) {
					want = append(want, k)
				}
			}
			sort.Strings(got)
			sort.Strings(want)
			if len(got) != len(want) {
				t.Fatalf("ScanKeys(%q) = %v, want %v", pattern, got, want)
			}
			for i := range got {
				if got[i] != want[i] {
					t.Errorf("ScanKeys(%q)[%d] = %q, want %q", pattern, i, got[i], want[i])
				}
			}
		}
	})

	t.Run("Stamps", func(t *testing.T) {
		e := factory(t)
		s, ok := e.(engine.Stamper)
		if !ok {
			t.Skip("engine keeps no stamps")
		}
		if _, found, err := s.ModTime(ctx, "chat/none/index"); err != nil {
			t.Fatal(err)
		} else if found {
			t.Error("ModTime on absent key: found = true")
		}
		if err := e.Set(ctx, "chat/c1/index", "v1"); err != nil {
			t.Fatal(err)
		}
		first, found, err := s.ModTime(ctx, "chat/c1/index")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("ModTime after Set: found = false")
		}
		if err := e.Set(ctx, "chat/c1/index", "v2"); err != nil {
			t.Fatal(err)
		}
		second, found, err := s.ModTime(ctx, "chat/c1/index")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("ModTime after overwrite: found = false")
		}
		if second.Before(first) {
			t.Errorf("stamp went backwards: %v then %v", first, second)
		}
		if _, err := e.Delete(ctx, "chat/c1/index"); err != nil {
			t.Fatal(err)
		}
		if _, found, err := s.ModTime(ctx, "chat/c1/index"); err != nil {
			t.Fatal(err)
		} else if found {
			t.Error("ModTime after Delete: found = true")
		}
	})
}
