package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/matheus3301/msgvault/internal/engine"
	"github.com/matheus3301/msgvault/internal/engine/enginetest"
	"github.com/matheus3301/msgvault/internal/engine/memory"
	"github.com/matheus3301/msgvault/internal/httpd"
)

// stampless hides the backend's optional capabilities so the server
// answers /v1/stat with 204.
type stampless struct {
	engine.Engine
}

func newServer(t *testing.T, backend engine.Engine) *httptest.Server {
	t.Helper()
	h := httpd.New(backend, "test", "memory", nil, nil, nil)
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestConformance(t *testing.T) {
	enginetest.Run(t, func(t *testing.T) engine.Engine {
		backend := memory.New()
		srv := newServer(t, backend)
		e := New(srv.URL, srv.Client())
		t.Cleanup(func() {
			_ = e.Close()
			_ = backend.Close()
		})
		return e
	})
}

func TestModTimeWithoutBackendStamps(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, stampless{memory.New()})
	e := New(srv.URL, srv.Client())

	if err := e.Set(ctx, "chat/c1/index", "{}"); err != nil {
		t.Fatal(err)
	}
	at, found, err := e.ModTime(ctx, "chat/c1/index")
	if err != nil {
		t.Fatal(err)
	}
	if found || !at.IsZero() {
		t.Errorf("ModTime = (%v, %v), want no stamp without error", at, found)
	}
}

func TestStampPrecisionSurvivesTransport(t *testing.T) {
	ctx := context.Background()
	fixed := time.Unix(1_700_000_000, 123_456_789)
	backend := memory.NewWithClock(func() time.Time { return fixed })
	srv := newServer(t, backend)
	e := New(srv.URL, srv.Client())

	if err := e.Set(ctx, "chat/c1/index", "{}"); err != nil {
		t.Fatal(err)
	}
	at, found, err := e.ModTime(ctx, "chat/c1/index")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("found = false")
	}
	if !at.Equal(fixed) {
		t.Errorf("ModTime = %v, want %v (nanosecond exact)", at, fixed)
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine exploded", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	e := New(srv.URL, srv.Client())

	if _, _, err := e.Get(ctx, "chat/c1/index"); err == nil {
		t.Error("Get against failing server succeeded")
	}
	if err := e.Set(ctx, "chat/c1/index", "{}"); err == nil {
		t.Error("Set against failing server succeeded")
	}
	if _, err := e.Scan(ctx, "*"); err == nil {
		t.Error("Scan against failing server succeeded")
	}
}

func TestContextCancelStopsStream(t *testing.T) {
	backend := memory.New()
	ctx := context.Background()
	for _, k := range []string{"a/1/index", "a/2/index", "a/3/index"} {
		if err := backend.Set(ctx, k, "v"); err != nil {
			t.Fatal(err)
		}
	}
	srv := newServer(t, backend)
	e := New(srv.URL, srv.Client())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := e.Keys(cancelled, func(string) bool { return true })
	if err == nil {
		t.Error("Keys with cancelled context succeeded")
	}
}

func TestTrailingSlashBaseURL(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, memory.New())
	e := New(srv.URL+"/", srv.Client())

	if err := e.Set(ctx, "chat/c1/index", "{}"); err != nil {
		t.Fatalf("Set via slash-suffixed base URL: %v", err)
	}
	if found, err := e.Has(ctx, "chat/c1/index"); err != nil || !found {
		t.Errorf("Has = (%v, %v)", found, err)
	}
}
