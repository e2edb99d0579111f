// Package remote implements an engine backed by a running msgvaultd
// instance. Keys, values and stamps travel over the daemon's HTTP API;
// iteration streams ndjson so large stores never buffer in memory.
package remote

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matheus3301/msgvault/internal/engine"
)

// Engine talks to a daemon at a base URL such as http://127.0.0.1:8420.
type Engine struct {
	base   string
	client *http.Client
}

var _ engine.Engine = (*Engine)(nil)
var _ engine.Scanner = (*Engine)(nil)
var _ engine.Stamper = (*Engine)(nil)

// New creates a remote engine. A nil client uses http.DefaultClient.
func New(baseURL string, client *http.Client) *Engine {
	if client == nil {
		client = http.DefaultClient
	}
	return &Engine{
		base:   strings.TrimRight(baseURL, "/"),
		client: client,
	}
}

func (e *Engine) Has(ctx context.Context, key string) (bool, error) {
	resp, err := e.do(ctx, http.MethodHead, "/v1/kv", url.Values{"key": {key}}, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, e.statusError("has", resp)
	}
}

func (e *Engine) Get(ctx context.Context, key string) (string, bool, error) {
	resp, err := e.do(ctx, http.MethodGet, "/v1/kv", url.Values{"key": {key}}, nil)
	if err != nil {
		return "", false, err
	}
	defer func() { _ = resp.Body.Close() }()
	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", false, fmt.Errorf("read value: %w", err)
		}
		return string(body), true, nil
	case http.StatusNotFound:
		return "", false, nil
	default:
		return "", false, e.statusError("get", resp)
	}
}

func (e *Engine) Set(ctx context.Context, key, value string) error {
	resp, err := e.do(ctx, http.MethodPut, "/v1/kv", url.Values{"key": {key}}, strings.NewReader(value))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNoContent {
		return e.statusError("set", resp)
	}
	return nil
}

func (e *Engine) Delete(ctx context.Context, key string) (bool, error) {
	resp, err := e.do(ctx, http.MethodDelete, "/v1/kv", url.Values{"key": {key}}, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return false, e.statusError("delete", resp)
	}
	var out struct {
		Removed bool `json:"removed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode delete response: %w", err)
	}
	return out.Removed, nil
}

// Keys streams keys from /v1/keys. Stopping early cancels the request,
// which aborts the transfer server-side.
func (e *Engine) Keys(ctx context.Context, fn func(key string) bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resp, err := e.do(ctx, http.MethodGet, "/v1/keys", nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return e.statusError("keys", resp)
	}

	scanner := newLineScanner(resp.Body)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var line struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return fmt.Errorf("decode keys stream: %w", err)
		}
		if !fn(line.Key) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("keys stream: %w", err)
	}
	return nil
}

// Entries streams entries from /v1/entries; values arrive base64-encoded.
func (e *Engine) Entries(ctx context.Context, fn func(key, value string) bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resp, err := e.do(ctx, http.MethodGet, "/v1/entries", nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return e.statusError("entries", resp)
	}

	scanner := newLineScanner(resp.Body)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var line struct {
			Key      string `json:"key"`
			ValueB64 string `json:"value_b64"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return fmt.Errorf("decode entries stream: %w", err)
		}
		value, err := base64.StdEncoding.DecodeString(line.ValueB64)
		if err != nil {
			return fmt.Errorf("decode entry %s: %w", line.Key, err)
		}
		if !fn(line.Key, string(value)) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("entries stream: %w", err)
	}
	return nil
}

// Scan runs server-side, next to the data.
func (e *Engine) Scan(ctx context.Context, pattern string) ([]string, error) {
	resp, err := e.do(ctx, http.MethodGet, "/v1/scan", url.Values{"pattern": {pattern}}, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, e.statusError("scan", resp)
	}
	var out struct {
		Keys []string `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode scan response: %w", err)
	}
	return out.Keys, nil
}

// ModTime maps 404 to "key absent" and 204 to "backend keeps no stamps";
// both come back as found=false without error.
func (e *Engine) ModTime(ctx context.Context, key string) (time.Time, bool, error) {
	resp, err := e.do(ctx, http.MethodGet, "/v1/stat", url.Values{"key": {key}}, nil)
	if err != nil {
		return time.Time{}, false, err
	}
	defer func() { _ = resp.Body.Close() }()
	switch resp.StatusCode {
	case http.StatusOK:
		var out struct {
			ModTimeUnixNs int64 `json:"mod_time_unix_ns"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return time.Time{}, false, fmt.Errorf("decode stat response: %w", err)
		}
		return time.Unix(0, out.ModTimeUnixNs), true, nil
	case http.StatusNotFound, http.StatusNoContent:
		return time.Time{}, false, nil
	default:
		return time.Time{}, false, e.statusError("stat", resp)
	}
}

func (e *Engine) Clear(ctx context.Context) error {
	resp, err := e.do(ctx, http.MethodPost, "/v1/clear", nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNoContent {
		return e.statusError("clear", resp)
	}
	return nil
}

func (e *Engine) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func (e *Engine) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	endpoint := e.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", strings.ToLower(method), path, err)
	}
	return resp, nil
}

func (e *Engine) statusError(op string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if text := strings.TrimSpace(string(msg)); text != "" {
		return fmt.Errorf("remote %s: %s: %s", op, resp.Status, text)
	}
	return fmt.Errorf("remote %s: %s", op, resp.Status)
}

// newLineScanner sizes the scanner for long keys and large base64 values.
func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	return scanner
}
