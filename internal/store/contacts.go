package store

import (
	"context"
	"fmt"

	"github.com/matheus3301/msgvault/internal/engine"
	"github.com/matheus3301/msgvault/internal/keys"
)

// Contacts routes contact records.
type Contacts struct {
	engine engine.Engine
}

// Set stores contact under id, overwriting any previous record; contact
// records mutate in place. A nil contact deletes the record.
func (c *Contacts) Set(ctx context.Context, id string, contact *Contact) error {
	if id == "" {
		return fmt.Errorf("contact id is empty")
	}
	if contact == nil {
		_, err := c.Delete(ctx, id)
		return err
	}
	rec := *contact
	rec.ID = id
	value, err := encodeRecord(&rec)
	if err != nil {
		return err
	}
	return c.engine.Set(ctx, keys.Contact(id).Encode(), value)
}

// Get returns the contact, or nil when it does not exist.
func (c *Contacts) Get(ctx context.Context, id string) (*Contact, error) {
	key := keys.Contact(id).Encode()
	value, found, err := c.engine.Get(ctx, key)
	if err != nil || !found {
		return nil, err
	}
	var rec Contact
	if err := decodeRecord(key, value, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Has reports whether the contact exists.
func (c *Contacts) Has(ctx context.Context, id string) (bool, error) {
	return c.engine.Has(ctx, keys.Contact(id).Encode())
}

// Delete removes the contact. removed is false when it did not exist.
func (c *Contacts) Delete(ctx context.Context, id string) (bool, error) {
	return c.engine.Delete(ctx, keys.Contact(id).Encode())
}

// Recent returns one page of contacts, most recently written first.
func (c *Contacts) Recent(ctx context.Context, offset, limit int) ([]Contact, error) {
	page, err := recentKeys(ctx, c.engine, keys.ContactsPattern(), func(k keys.Key) bool {
		return k.Kind == keys.KindContact
	}, offset, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Contact, 0, len(page))
	for _, key := range page {
		value, found, err := c.engine.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !found {
			continue // deleted since the scan
		}
		var rec Contact
		if err := decodeRecord(key, value, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// IDs streams every contact id. Return false to stop.
func (c *Contacts) IDs(ctx context.Context, fn func(id string) bool) error {
	return c.engine.Keys(ctx, func(raw string) bool {
		k, err := keys.Parse(raw)
		if err != nil || k.Kind != keys.KindContact {
			return true
		}
		return fn(k.ID)
	})
}

// Each streams every contact record. Return false to stop.
func (c *Contacts) Each(ctx context.Context, fn func(contact Contact) bool) error {
	var decodeErr error
	err := c.engine.Entries(ctx, func(rawKey, value string) bool {
		k, err := keys.Parse(rawKey)
		if err != nil || k.Kind != keys.KindContact {
			return true
		}
		var rec Contact
		if err := decodeRecord(rawKey, value, &rec); err != nil {
			decodeErr = err
			return false
		}
		return fn(rec)
	})
	if err != nil {
		return err
	}
	return decodeErr
}

// Count returns the number of stored contacts.
func (c *Contacts) Count(ctx context.Context) (int, error) {
	n := 0
	err := c.IDs(ctx, func(string) bool {
		n++
		return true
	})
	return n, err
}
