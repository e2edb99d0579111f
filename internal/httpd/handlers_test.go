package httpd

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/matheus3301/msgvault/internal/bus"
	"github.com/matheus3301/msgvault/internal/engine"
	"github.com/matheus3301/msgvault/internal/engine/memory"
	"github.com/matheus3301/msgvault/internal/status"
)

// stampless hides the memory engine's optional capabilities.
type stampless struct {
	engine.Engine
}

func newTestServer(t *testing.T, e engine.Engine, b *bus.Bus, m *status.Machine) *httptest.Server {
	t.Helper()
	h := New(e, "test", "memory", m, b, zap.NewNop())
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestKVLifecycle(t *testing.T) {
	e := memory.New()
	srv := newTestServer(t, e, nil, nil)
	url := srv.URL + "/v1/kv?key=chat/c1/index"

	// Missing key is 404 before anything is written.
	if resp := doRequest(t, http.MethodGet, url, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET before put = %d, want 404", resp.StatusCode)
	}

	if resp := doRequest(t, http.MethodPut, url, `{"id":"c1"}`); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT = %d, want 204", resp.StatusCode)
	}

	resp := doRequest(t, http.MethodGet, url, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"id":"c1"}` {
		t.Errorf("GET body = %q", body)
	}

	if resp := doRequest(t, http.MethodHead, url, ""); resp.StatusCode != http.StatusOK {
		t.Errorf("HEAD = %d, want 200", resp.StatusCode)
	}

	del := doRequest(t, http.MethodDelete, url, "")
	if del.StatusCode != http.StatusOK {
		t.Fatalf("DELETE = %d, want 200", del.StatusCode)
	}
	var removed map[string]bool
	if err := json.NewDecoder(del.Body).Decode(&removed); err != nil {
		t.Fatal(err)
	}
	if !removed["removed"] {
		t.Error("DELETE removed = false, want true")
	}

	if resp := doRequest(t, http.MethodHead, url, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("HEAD after delete = %d, want 404", resp.StatusCode)
	}

	// Deleting a gone key reports removed=false.
	del = doRequest(t, http.MethodDelete, url, "")
	removed = nil
	if err := json.NewDecoder(del.Body).Decode(&removed); err != nil {
		t.Fatal(err)
	}
	if removed["removed"] {
		t.Error("second DELETE removed = true, want false")
	}
}

func TestMissingKeyParameter(t *testing.T) {
	srv := newTestServer(t, memory.New(), nil, nil)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		if resp := doRequest(t, method, srv.URL+"/v1/kv", ""); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s without key = %d, want 400", method, resp.StatusCode)
		}
	}
	if resp := doRequest(t, http.MethodGet, srv.URL+"/v1/scan", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("scan without pattern = %d, want 400", resp.StatusCode)
	}
}

func TestScan(t *testing.T) {
	ctx := context.Background()
	e := memory.New()
	for _, key := range []string{"chat/c1/index", "chat/c2/index", "contact/a/index"} {
		if err := e.Set(ctx, key, "{}"); err != nil {
			t.Fatal(err)
		}
	}
	srv := newTestServer(t, e, nil, nil)

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/scan?pattern="+"chat/*/index", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("scan = %d, want 200", resp.StatusCode)
	}
	var out map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out["keys"]) != 2 {
		t.Errorf("scan keys = %v, want the two chats", out["keys"])
	}

	// No matches is an empty array, not null.
	resp = doRequest(t, http.MethodGet, srv.URL+"/v1/scan?pattern=document/*", "")
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "[]") {
		t.Errorf("empty scan body = %s, want keys:[]", raw)
	}
}

func TestStat(t *testing.T) {
	ctx := context.Background()
	e := memory.New()
	if err := e.Set(ctx, "chat/c1/index", "{}"); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, e, nil, nil)

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/stat?key=chat/c1/index", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stat = %d, want 200", resp.StatusCode)
	}
	var out map[string]int64
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["mod_time_unix_ns"] <= 0 {
		t.Errorf("mod_time_unix_ns = %d, want positive", out["mod_time_unix_ns"])
	}

	if resp := doRequest(t, http.MethodGet, srv.URL+"/v1/stat?key=nope/x/index", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("stat missing = %d, want 404", resp.StatusCode)
	}
}

func TestStatWithoutStamps(t *testing.T) {
	srv := newTestServer(t, stampless{memory.New()}, nil, nil)

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/stat?key=chat/c1/index", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("stat on stamp-less engine = %d, want 204", resp.StatusCode)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	e := memory.New()
	if err := e.Set(ctx, "chat/c1/index", "{}"); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, e, nil, nil)

	if resp := doRequest(t, http.MethodPost, srv.URL+"/v1/clear", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("clear = %d, want 204", resp.StatusCode)
	}
	found, err := e.Has(ctx, "chat/c1/index")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("key survived clear")
	}
}

func TestStatus(t *testing.T) {
	b := bus.New()
	m := status.NewMachine(b)
	if err := m.Transition(status.Ready); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, memory.New(), b, m)

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Account != "test" || out.Engine != "memory" || out.State != "READY" {
		t.Errorf("status = %+v", out)
	}
	if !out.Scanner || !out.Stamper {
		t.Errorf("capabilities = scanner:%v stamper:%v, want both", out.Scanner, out.Stamper)
	}
}

func TestStreamKeysAndEntries(t *testing.T) {
	ctx := context.Background()
	e := memory.New()
	want := map[string]string{
		"chat/c1/index":            `{"id":"c1"}`,
		"contact/a@c.us/index":     `{"id":"a@c.us"}`,
		"chat/c1/message/m1/index": `{"id":"m1"}`,
	}
	for k, v := range want {
		if err := e.Set(ctx, k, v); err != nil {
			t.Fatal(err)
		}
	}
	srv := newTestServer(t, e, nil, nil)

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/keys", "")
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("keys Content-Type = %q", ct)
	}
	gotKeys := map[string]bool{}
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var line keyLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("bad ndjson line %q: %v", scanner.Text(), err)
		}
		gotKeys[line.Key] = true
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}
	if len(gotKeys) != len(want) {
		t.Errorf("streamed %d keys, want %d", len(gotKeys), len(want))
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/v1/entries", "")
	got := map[string]string{}
	scanner = bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var line entryLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatal(err)
		}
		value, err := base64.StdEncoding.DecodeString(line.ValueB64)
		if err != nil {
			t.Fatal(err)
		}
		got[line.Key] = string(value)
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("entry %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestEventStream(t *testing.T) {
	b := bus.New()
	srv := newTestServer(t, memory.New(), b, nil)

	resp, err := http.Get(srv.URL + "/v1/events")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	// The subscription is live once headers arrive; a store mutation
	// through the API must show up on the stream.
	put := doRequest(t, http.MethodPut, srv.URL+"/v1/kv?key=chat/c1/index", "{}")
	if put.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT = %d", put.StatusCode)
	}

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed without event")
			}
			if strings.HasPrefix(line, "data: ") {
				var env eventEnvelope
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &env); err != nil {
					t.Fatalf("bad event payload %q: %v", line, err)
				}
				if env.Kind != "store.key_set" {
					t.Errorf("event kind = %q, want store.key_set", env.Kind)
				}
				if env.ID == "" {
					t.Error("event id is empty")
				}
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for event")
		}
	}
}

func TestEventStreamWithoutBus(t *testing.T) {
	srv := newTestServer(t, memory.New(), nil, nil)
	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/events", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("events without bus = %d, want 503", resp.StatusCode)
	}
}
