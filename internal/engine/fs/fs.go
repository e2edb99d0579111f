// Package fs implements the reference filesystem engine. Each key maps to
// a directory subtree under the root: one directory per segment, the final
// segment a regular file holding the value verbatim.
//
//	chat/c1/message/m1/index  →  <root>/chat/c1/message/m1  (file "index")
//
// Segments are escaped on disk (see escapeSegment) so identifiers with
// '@', spaces or other medium-hostile bytes survive; the logical key never
// changes. Writes are plain create-or-truncate, not atomic across a crash:
// a torn write can leave a partial value behind. Deleting a key removes
// its parent directory recursively, so nested keys vanish with it.
package fs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/matheus3301/msgvault/internal/engine"
)

// DefaultRoot is used when no root directory is configured.
const DefaultRoot = ".store"

// Engine stores each key as a file tree under Root. It implements
// engine.Engine, engine.Scanner and engine.Stamper.
type Engine struct {
	root string
}

// New returns an engine rooted at root, or DefaultRoot when root is empty.
// The directory is created on first write, not here.
func New(root string) *Engine {
	if root == "" {
		root = DefaultRoot
	}
	return &Engine{root: root}
}

// Root returns the directory the engine writes under.
func (e *Engine) Root() string { return e.root }

// Has implements engine.Engine.
func (e *Engine) Has(_ context.Context, key string) (bool, error) {
	info, err := os.Stat(e.keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Get implements engine.Engine.
func (e *Engine) Get(_ context.Context, key string) (string, bool, error) {
	path := e.keyPath(key)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	if !info.Mode().IsRegular() {
		return "", false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

// Set implements engine.Engine. The write overwrites in place; a crash
// mid-write leaves a partial file.
func (e *Engine) Set(_ context.Context, key, value string) error {
	path := e.keyPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(value), 0o600)
}

// Delete implements engine.Engine. The key's directory goes away
// recursively, taking any keys nested beneath it, and emptied ancestors
// are pruned up to the root.
func (e *Engine) Delete(_ context.Context, key string) (bool, error) {
	path := e.keyPath(key)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}
	dir := filepath.Dir(path)
	if dir == e.root {
		// Single-segment key: the parent is the store root itself.
		if err := os.Remove(path); err != nil {
			return false, err
		}
		return true, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, err
	}
	e.pruneEmptyDirs(filepath.Dir(dir))
	return true, nil
}

// Keys implements engine.Engine via a streaming walk.
func (e *Engine) Keys(ctx context.Context, fn func(key string) bool) error {
	return e.walk(ctx, func(key, _ string) bool {
		return fn(key)
	}, false)
}

// Entries implements engine.Engine. Files removed mid-walk are skipped.
func (e *Engine) Entries(ctx context.Context, fn func(key, value string) bool) error {
	return e.walk(ctx, fn, true)
}

// Clear implements engine.Engine.
func (e *Engine) Clear(_ context.Context) error {
	if err := os.RemoveAll(e.root); err != nil {
		return err
	}
	return os.MkdirAll(e.root, 0o700)
}

// Close implements engine.Engine.
func (e *Engine) Close() error { return nil }

// Scan implements engine.Scanner by walking the tree and matching decoded
// keys client-side; the filesystem offers nothing better.
func (e *Engine) Scan(ctx context.Context, pattern string) ([]string, error) {
	var matched []string
	err := e.walk(ctx, func(key, _ string) bool {
		if engine.Match(pattern, key) {
			matched = append(matched, key)
		}
		return true
	}, false)
	if err != nil {
		return nil, err
	}
	return matched, nil
}

// ModTime implements engine.Stamper from the leaf file's mtime.
func (e *Engine) ModTime(_ context.Context, key string) (time.Time, bool, error) {
	info, err := os.Stat(e.keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	if !info.Mode().IsRegular() {
		return time.Time{}, false, nil
	}
	return info.ModTime(), true, nil
}

var errStopWalk = errors.New("stop walk")

// walk visits every stored key. Dot-prefixed names and names the escaper
// never produces are foreign (lock files, editor droppings) and skipped.
func (e *Engine) walk(ctx context.Context, fn func(key, value string) bool, loadValues bool) error {
	err := filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == e.root {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != e.root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		key, ok := e.keyFromPath(path)
		if !ok {
			return nil
		}
		value := ""
		if loadValues {
			data, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			value = string(data)
		}
		if !fn(key, value) {
			return errStopWalk
		}
		return nil
	})
	if errors.Is(err, errStopWalk) {
		return nil
	}
	return err
}

func (e *Engine) keyPath(key string) string {
	segs := strings.Split(key, "/")
	parts := make([]string, 0, len(segs)+1)
	parts = append(parts, e.root)
	for _, s := range segs {
		parts = append(parts, escapeSegment(s))
	}
	return filepath.Join(parts...)
}

func (e *Engine) keyFromPath(path string) (string, bool) {
	rel, err := filepath.Rel(e.root, path)
	if err != nil {
		return "", false
	}
	segs := strings.Split(filepath.ToSlash(rel), "/")
	for i, s := range segs {
		dec, err := unescapeSegment(s)
		if err != nil {
			return "", false
		}
		segs[i] = dec
	}
	return strings.Join(segs, "/"), true
}

// pruneEmptyDirs removes dir and its ancestors while they are empty,
// stopping at the store root.
func (e *Engine) pruneEmptyDirs(dir string) {
	for dir != e.root && strings.HasPrefix(dir, e.root) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
