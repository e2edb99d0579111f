// Package redis implements the engine on a Redis server. Values live in
// plain string keys under a configurable prefix; write stamps live in one
// sorted set scored by unix nanoseconds, updated in the same transaction
// as the write they describe.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/matheus3301/msgvault/internal/engine"
)

// DefaultPrefix namespaces msgvault keys inside a shared Redis.
const DefaultPrefix = "msgvault:"

const scanBatch = 100

// Engine stores keys in Redis. It implements engine.Engine, engine.Scanner
// and engine.Stamper.
type Engine struct {
	client *goredis.Client
	prefix string
	now    func() time.Time
}

var (
	_ engine.Engine  = (*Engine)(nil)
	_ engine.Scanner = (*Engine)(nil)
	_ engine.Stamper = (*Engine)(nil)
)

// Open connects to the Redis at url (redis://host:port/db) and verifies
// the connection. prefix defaults to DefaultPrefix when empty; accounts
// sharing a server use distinct prefixes.
func Open(url, prefix string) (*Engine, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Engine{client: client, prefix: prefix, now: time.Now}, nil
}

// Has implements engine.Engine.
func (e *Engine) Has(ctx context.Context, key string) (bool, error) {
	n, err := e.client.Exists(ctx, e.dataKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Get implements engine.Engine.
func (e *Engine) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := e.client.Get(ctx, e.dataKey(key)).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

// Set implements engine.Engine. Value and stamp land atomically.
func (e *Engine) Set(ctx context.Context, key, value string) error {
	stamp := float64(e.now().UnixNano())
	_, err := e.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, e.dataKey(key), value, 0)
		pipe.ZAdd(ctx, e.stampsKey(), &goredis.Z{Score: stamp, Member: key})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete implements engine.Engine.
func (e *Engine) Delete(ctx context.Context, key string) (bool, error) {
	var del *goredis.IntCmd
	_, err := e.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		del = pipe.Del(ctx, e.dataKey(key))
		pipe.ZRem(ctx, e.stampsKey(), key)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}
	return del.Val() > 0, nil
}

// Keys implements engine.Engine over a SCAN cursor. Concurrent writers can
// make SCAN repeat a key; that anomaly is within the iteration contract.
func (e *Engine) Keys(ctx context.Context, fn func(key string) bool) error {
	iter := e.client.Scan(ctx, 0, e.matchAll(), scanBatch).Iterator()
	for iter.Next(ctx) {
		if !fn(e.logicalKey(iter.Val())) {
			return nil
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	return nil
}

// Entries implements engine.Engine. Keys that vanish between the SCAN and
// their GET are skipped.
func (e *Engine) Entries(ctx context.Context, fn func(key, value string) bool) error {
	iter := e.client.Scan(ctx, 0, e.matchAll(), scanBatch).Iterator()
	for iter.Next(ctx) {
		storage := iter.Val()
		v, err := e.client.Get(ctx, storage).Result()
		if err == goredis.Nil {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis get: %w", err)
		}
		if !fn(e.logicalKey(storage), v) {
			return nil
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	return nil
}

// Clear implements engine.Engine.
func (e *Engine) Clear(ctx context.Context) error {
	iter := e.client.Scan(ctx, 0, e.matchAll(), scanBatch).Iterator()
	var doomed []string
	for iter.Next(ctx) {
		doomed = append(doomed, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	doomed = append(doomed, e.stampsKey())
	for len(doomed) > 0 {
		batch := doomed
		if len(batch) > 512 {
			batch = batch[:512]
		}
		if err := e.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		doomed = doomed[len(batch):]
	}
	return nil
}

// Close implements engine.Engine.
func (e *Engine) Close() error { return e.client.Close() }

// Scan implements engine.Scanner. Redis MATCH is a superset of our pattern
// language, so its extra metacharacters are escaped and "*" passes through.
func (e *Engine) Scan(ctx context.Context, pattern string) ([]string, error) {
	match := escapeGlob(e.prefix+"k:") + translatePattern(pattern)
	iter := e.client.Scan(ctx, 0, match, scanBatch).Iterator()
	seen := make(map[string]bool)
	var keys []string
	for iter.Next(ctx) {
		k := e.logicalKey(iter.Val())
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}

// ModTime implements engine.Stamper from the sorted-set score.
func (e *Engine) ModTime(ctx context.Context, key string) (time.Time, bool, error) {
	score, err := e.client.ZScore(ctx, e.stampsKey(), key).Result()
	if err == goredis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis zscore: %w", err)
	}
	return time.Unix(0, int64(score)), true, nil
}

func (e *Engine) dataKey(key string) string { return e.prefix + "k:" + key }

func (e *Engine) stampsKey() string { return e.prefix + "stamps" }

func (e *Engine) matchAll() string { return escapeGlob(e.prefix+"k:") + "*" }

func (e *Engine) logicalKey(s string) string { return strings.TrimPrefix(s, e.prefix+"k:") }

// translatePattern rewrites our pattern language for Redis MATCH: "*" is
// shared, everything else Redis treats specially gets a backslash.
func translatePattern(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c == '*' {
			b.WriteByte('*')
			continue
		}
		writeEscapedGlobByte(&b, c)
	}
	return b.String()
}

// escapeGlob escapes every Redis glob metacharacter in s, "*" included.
func escapeGlob(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '*' {
			b.WriteString(`\*`)
			continue
		}
		writeEscapedGlobByte(&b, c)
	}
	return b.String()
}

func writeEscapedGlobByte(b *strings.Builder, c byte) {
	switch c {
	case '?', '[', ']', '\\', '^':
		b.WriteByte('\\')
	}
	b.WriteByte(c)
}
