package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/matheus3301/msgvault/internal/engine"
	"github.com/matheus3301/msgvault/internal/keys"
)

// Documents stores opaque named JSON blobs: credentials, client state,
// anything the caller wants persisted without a schema.
type Documents struct {
	engine engine.Engine
}

// Set stores raw verbatim under name. A nil raw deletes the document,
// keeping the old set-to-null convention alive for callers that sync
// whole documents.
func (d *Documents) Set(ctx context.Context, name string, raw json.RawMessage) error {
	if name == "" {
		return fmt.Errorf("document name is empty")
	}
	if raw == nil {
		_, err := d.Delete(ctx, name)
		return err
	}
	return d.engine.Set(ctx, keys.Document(name).Encode(), string(raw))
}

// SetValue marshals v and stores it under name.
func (d *Documents) SetValue(ctx context.Context, name string, v any) error {
	if name == "" {
		return fmt.Errorf("document name is empty")
	}
	value, err := encodeRecord(v)
	if err != nil {
		return err
	}
	return d.engine.Set(ctx, keys.Document(name).Encode(), value)
}

// Get returns the stored blob, or nil when the document does not exist.
func (d *Documents) Get(ctx context.Context, name string) (json.RawMessage, error) {
	value, found, err := d.engine.Get(ctx, keys.Document(name).Encode())
	if err != nil || !found {
		return nil, err
	}
	return json.RawMessage(value), nil
}

// GetValue unmarshals the document into out. found is false when the
// document does not exist, and out is left untouched.
func (d *Documents) GetValue(ctx context.Context, name string, out any) (bool, error) {
	key := keys.Document(name).Encode()
	value, found, err := d.engine.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := decodeRecord(key, value, out); err != nil {
		return false, err
	}
	return true, nil
}

// Has reports whether the document exists.
func (d *Documents) Has(ctx context.Context, name string) (bool, error) {
	return d.engine.Has(ctx, keys.Document(name).Encode())
}

// Delete removes the document. removed is false when it did not exist.
func (d *Documents) Delete(ctx context.Context, name string) (bool, error) {
	return d.engine.Delete(ctx, keys.Document(name).Encode())
}

// Names streams every document name. Return false to stop.
func (d *Documents) Names(ctx context.Context, fn func(name string) bool) error {
	return d.engine.Keys(ctx, func(raw string) bool {
		k, err := keys.Parse(raw)
		if err != nil || k.Kind != keys.KindDocument {
			return true
		}
		return fn(k.Name)
	})
}

// Each streams every document with its blob. Return false to stop.
func (d *Documents) Each(ctx context.Context, fn func(name string, raw json.RawMessage) bool) error {
	return d.engine.Entries(ctx, func(rawKey, value string) bool {
		k, err := keys.Parse(rawKey)
		if err != nil || k.Kind != keys.KindDocument {
			return true
		}
		return fn(k.Name, json.RawMessage(value))
	})
}
