package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/matheus3301/msgvault/internal/bus"
	"github.com/matheus3301/msgvault/internal/config"
	"github.com/matheus3301/msgvault/internal/engine/memory"
	"github.com/matheus3301/msgvault/internal/engine/remote"
	"github.com/matheus3301/msgvault/internal/engine/sqlite"
	"github.com/matheus3301/msgvault/internal/httpd"
	"github.com/matheus3301/msgvault/internal/lock"
	"github.com/matheus3301/msgvault/internal/status"
	"github.com/matheus3301/msgvault/internal/store"
	"go.uber.org/zap"
)

type daemonStatus struct {
	Account string `json:"account"`
	Engine  string `json:"engine"`
	State   string `json:"state"`
	Scanner bool   `json:"scanner"`
	Stamper bool   `json:"stamper"`
}

func fetchStatus(t *testing.T, baseURL string) daemonStatus {
	t.Helper()
	resp, err := http.Get(baseURL + "/v1/status")
	if err != nil {
		t.Fatalf("GET /v1/status error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /v1/status = %d, want 200", resp.StatusCode)
	}
	var st daemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

func TestDaemonLifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	ctx := context.Background()

	// Acquire the account lock, as the fx module would.
	lk, err := lock.Acquire(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	// Open the default engine.
	eng, err := sqlite.Open(filepath.Join(tmpDir, "store.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = eng.Close() }()

	// Setup components.
	logger := zap.NewNop()
	b := bus.New()
	machine := status.NewMachine(b)
	h := httpd.New(eng, "test", "sqlite", machine, b, logger)

	// Create the HTTP server manually.
	srv, err := NewServer(Params{AccountName: "test", Listen: "127.0.0.1:0"}, config.Default(), h, logger)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())

	baseURL := "http://" + srv.Addr()

	// Until the lifecycle hook fires, the daemon reports BOOTING.
	st := fetchStatus(t, baseURL)
	if st.Account != "test" {
		t.Errorf("account = %q, want %q", st.Account, "test")
	}
	if st.State != string(status.Booting) {
		t.Errorf("state = %q, want %q", st.State, status.Booting)
	}
	if !st.Scanner || !st.Stamper {
		t.Errorf("capabilities = scanner:%v stamper:%v, want both true", st.Scanner, st.Stamper)
	}

	// Connect as a client through the remote engine.
	client := remote.New(baseURL, nil)
	defer func() { _ = client.Close() }()
	vault := store.New(client)

	// Empty store.
	n, err := vault.Chats().Count(ctx)
	if err != nil {
		t.Fatalf("Count error = %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 chats, got %d", n)
	}

	// Insert a chat and a message over the wire, then query back.
	chat := &store.Chat{ID: "friend@c.us", Name: "Friend", Type: store.ChatContact}
	if err := vault.Chats().Set(ctx, "friend@c.us", chat); err != nil {
		t.Fatal(err)
	}
	msg := &store.Message{ID: "m1", Caption: "hello world", Status: store.StatusSent, CreatedAt: 1000}
	if err := vault.Messages("friend@c.us").Set(ctx, "m1", msg); err != nil {
		t.Fatal(err)
	}

	n, err = vault.Chats().Count(ctx)
	if err != nil {
		t.Fatalf("Count error = %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 chat, got %d", n)
	}

	msgs, err := vault.Messages("friend@c.us").Recent(ctx, 0, 10)
	if err != nil {
		t.Fatalf("Recent error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Caption != "hello world" {
		t.Errorf("caption = %q, want %q", msgs[0].Caption, "hello world")
	}

	results, err := vault.SearchMessages(ctx, "hello", "", 10)
	if err != nil {
		t.Fatalf("SearchMessages error = %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 search result, got %d", len(results))
	}

	// The same data is visible on the engine the daemon serves from.
	direct := store.New(eng)
	got, err := direct.Chats().Get(ctx, "friend@c.us")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Name != "Friend" {
		t.Errorf("chat via direct engine = %+v, want Name=Friend", got)
	}
}

// TestStatusEndpointTracksMachine verifies /v1/status reads the machine
// live rather than a snapshot taken at handler construction.
func TestStatusEndpointTracksMachine(t *testing.T) {
	eng := memory.New()
	defer func() { _ = eng.Close() }()

	machine := status.NewMachine(nil)
	h := httpd.New(eng, "test", "memory", machine, nil, zap.NewNop())

	srv, err := NewServer(Params{AccountName: "test", Listen: "127.0.0.1:0"}, config.Default(), h, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())

	baseURL := "http://" + srv.Addr()

	if got := fetchStatus(t, baseURL); got.State != string(status.Booting) {
		t.Fatalf("initial state = %q, want %q", got.State, status.Booting)
	}

	if err := machine.Transition(status.Ready); err != nil {
		t.Fatal(err)
	}
	if got := fetchStatus(t, baseURL); got.State != string(status.Ready) {
		t.Errorf("state after Ready = %q, want %q", got.State, status.Ready)
	}

	if err := machine.Transition(status.Closing); err != nil {
		t.Fatal(err)
	}
	if got := fetchStatus(t, baseURL); got.State != string(status.Closing) {
		t.Errorf("state after Closing = %q, want %q", got.State, status.Closing)
	}
}

// TestServerBindsEagerly verifies NewServer binds its listener before
// Start, so callers can read Addr() for ":0" style test addresses, and
// that a second daemon on the same address fails fast instead of
// queueing behind the first.
func TestServerBindsEagerly(t *testing.T) {
	eng := memory.New()
	defer func() { _ = eng.Close() }()
	h := httpd.New(eng, "test", "memory", nil, nil, zap.NewNop())

	srv, err := NewServer(Params{Listen: "127.0.0.1:0"}, config.Default(), h, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Stop(context.Background())

	addr := srv.Addr()
	if addr == "" {
		t.Fatal("Addr() empty before Start")
	}

	// The port is held even though Serve has not been called yet.
	if _, err := NewServer(Params{Listen: addr}, config.Default(), h, zap.NewNop()); err == nil {
		t.Error("expected second listener on same address to fail")
	}
}

// TestStopUnblocksStart verifies Start returns nil after Stop rather
// than surfacing http.ErrServerClosed to the caller.
func TestStopUnblocksStart(t *testing.T) {
	eng := memory.New()
	defer func() { _ = eng.Close() }()
	h := httpd.New(eng, "test", "memory", nil, nil, zap.NewNop())

	srv, err := NewServer(Params{Listen: "127.0.0.1:0"}, config.Default(), h, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	// Make sure the server is accepting before stopping it.
	fetchStatus(t, "http://"+srv.Addr())

	srv.Stop(context.Background())
	if err := <-done; err != nil {
		t.Errorf("Start() after Stop = %v, want nil", err)
	}
}
