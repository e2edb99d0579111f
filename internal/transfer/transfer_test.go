package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/matheus3301/msgvault/internal/engine"
	"github.com/matheus3301/msgvault/internal/engine/memory"
)

// keyOrder hides the source's stamps, forcing the key-order path.
type keyOrder struct {
	engine.Engine
}

func advancingClock() func() time.Time {
	tick := time.Unix(1_700_000_000, 0)
	return func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
}

func TestCopyAllEntries(t *testing.T) {
	ctx := context.Background()
	src := memory.NewWithClock(advancingClock())
	dst := memory.NewWithClock(advancingClock())

	want := map[string]string{
		"chat/c1/index":            `{"id":"c1"}`,
		"chat/c1/message/m1/index": `{"id":"m1"}`,
		"contact/a@c.us/index":     `{"id":"a@c.us"}`,
	}
	for k, v := range want {
		if err := src.Set(ctx, k, v); err != nil {
			t.Fatal(err)
		}
	}

	res, err := NewCopier(nil).Copy(ctx, src, dst, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Entries != len(want) {
		t.Errorf("Entries = %d, want %d", res.Entries, len(want))
	}
	for k, v := range want {
		got, found, err := dst.Get(ctx, k)
		if err != nil {
			t.Fatal(err)
		}
		if !found || got != v {
			t.Errorf("dst[%s] = (%q, %v), want %q", k, got, found, v)
		}
	}
}

func TestCopyPreservesRecencyOrder(t *testing.T) {
	ctx := context.Background()
	src := memory.NewWithClock(advancingClock())
	dst := memory.NewWithClock(advancingClock())

	// Written oldest to newest; key order deliberately disagrees with
	// write order so an accidental key-sorted copy would be caught.
	writes := []string{"chat/z/index", "chat/a/index", "chat/m/index"}
	for _, k := range writes {
		if err := src.Set(ctx, k, "v"); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := NewCopier(nil).Copy(ctx, src, dst, Options{}); err != nil {
		t.Fatal(err)
	}

	// Destination stamps must order the same way the source wrote.
	var prev time.Time
	for i, k := range writes {
		at, found, err := dst.ModTime(ctx, k)
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatalf("dst has no stamp for %s", k)
		}
		if i > 0 && !at.After(prev) {
			t.Errorf("stamp order broken at %s: %v not after %v", k, at, prev)
		}
		prev = at
	}
}

func TestCopyClearsDestination(t *testing.T) {
	ctx := context.Background()
	src := memory.New()
	dst := memory.New()

	if err := src.Set(ctx, "chat/c1/index", "fresh"); err != nil {
		t.Fatal(err)
	}
	if err := dst.Set(ctx, "chat/stale/index", "old"); err != nil {
		t.Fatal(err)
	}

	if _, err := NewCopier(nil).Copy(ctx, src, dst, Options{Clear: true}); err != nil {
		t.Fatal(err)
	}

	if found, err := dst.Has(ctx, "chat/stale/index"); err != nil || found {
		t.Errorf("stale key survived: found=%v, err=%v", found, err)
	}
	if found, err := dst.Has(ctx, "chat/c1/index"); err != nil || !found {
		t.Errorf("fresh key missing: found=%v, err=%v", found, err)
	}
}

func TestCopyWithoutClearMerges(t *testing.T) {
	ctx := context.Background()
	src := memory.New()
	dst := memory.New()

	if err := src.Set(ctx, "chat/c1/index", "fresh"); err != nil {
		t.Fatal(err)
	}
	if err := dst.Set(ctx, "chat/stale/index", "old"); err != nil {
		t.Fatal(err)
	}

	if _, err := NewCopier(nil).Copy(ctx, src, dst, Options{}); err != nil {
		t.Fatal(err)
	}
	if found, err := dst.Has(ctx, "chat/stale/index"); err != nil || !found {
		t.Errorf("existing key lost without Clear: found=%v, err=%v", found, err)
	}
}

func TestCopyFromStamplessSource(t *testing.T) {
	ctx := context.Background()
	src := keyOrder{memory.New()}
	dst := memory.New()

	for _, k := range []string{"chat/b/index", "chat/a/index"} {
		if err := src.Set(ctx, k, "v"); err != nil {
			t.Fatal(err)
		}
	}
	res, err := NewCopier(nil).Copy(ctx, src, dst, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Entries != 2 {
		t.Errorf("Entries = %d, want 2", res.Entries)
	}
}

func TestCopyEmptySource(t *testing.T) {
	ctx := context.Background()
	res, err := NewCopier(nil).Copy(ctx, memory.New(), memory.New(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Entries != 0 {
		t.Errorf("Entries = %d, want 0", res.Entries)
	}
}
