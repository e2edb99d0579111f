package store

import (
	"context"
	"fmt"

	"github.com/matheus3301/msgvault/internal/engine"
	"github.com/matheus3301/msgvault/internal/keys"
)

// Messages routes the message records of one chat.
type Messages struct {
	engine engine.Engine
	cid    string
}

// ChatID returns the chat this router is scoped to.
func (m *Messages) ChatID() string { return m.cid }

// Set upserts the message under id. A nil msg deletes the record.
//
// Messages are immutable once written except through Edit, so a re-Set is
// a merge, not an overwrite: a replayed sync can never demote the delivery
// status, clear the original timestamp, or unflag a past edit.
func (m *Messages) Set(ctx context.Context, id string, msg *Message) error {
	if id == "" {
		return fmt.Errorf("message id is empty")
	}
	if msg == nil {
		_, err := m.Delete(ctx, id)
		return err
	}
	rec := *msg
	rec.ID = id
	rec.ChatID = m.cid

	existing, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Status.rank() > rec.Status.rank() {
			rec.Status = existing.Status
		}
		if rec.CreatedAt == 0 {
			rec.CreatedAt = existing.CreatedAt
		}
		rec.Edited = rec.Edited || existing.Edited
	}

	value, err := encodeRecord(&rec)
	if err != nil {
		return err
	}
	return m.engine.Set(ctx, keys.Message(m.cid, id).Encode(), value)
}

// Get returns the message, or nil when it does not exist.
func (m *Messages) Get(ctx context.Context, id string) (*Message, error) {
	key := keys.Message(m.cid, id).Encode()
	value, found, err := m.engine.Get(ctx, key)
	if err != nil || !found {
		return nil, err
	}
	var rec Message
	if err := decodeRecord(key, value, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Has reports whether the message exists.
func (m *Messages) Has(ctx context.Context, id string) (bool, error) {
	return m.engine.Has(ctx, keys.Message(m.cid, id).Encode())
}

// Delete removes the message record. Any stored content stays behind
// until the chat cascade collects it.
func (m *Messages) Delete(ctx context.Context, id string) (bool, error) {
	return m.engine.Delete(ctx, keys.Message(m.cid, id).Encode())
}

// Edit is the one sanctioned mutation of an existing message: it replaces
// the stored content and marks the record edited. The record write comes
// last so the flag only appears on a completed edit.
func (m *Messages) Edit(ctx context.Context, id string, blob []byte) error {
	rec, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("edit %s: message not found", id)
	}
	contents := &Contents{engine: m.engine, cid: m.cid}
	if err := contents.Set(ctx, id, blob); err != nil {
		return err
	}
	rec.Edited = true
	value, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return m.engine.Set(ctx, keys.Message(m.cid, id).Encode(), value)
}

// Recent returns one page of this chat's messages, most recently written
// first.
func (m *Messages) Recent(ctx context.Context, offset, limit int) ([]Message, error) {
	page, err := recentKeys(ctx, m.engine, keys.MessagesPattern(m.cid), func(k keys.Key) bool {
		return k.Kind == keys.KindMessage && k.ChatID == m.cid
	}, offset, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(page))
	for _, key := range page {
		value, found, err := m.engine.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		var rec Message
		if err := decodeRecord(key, value, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// IDs streams every message id in this chat. Return false to stop.
func (m *Messages) IDs(ctx context.Context, fn func(id string) bool) error {
	return m.engine.Keys(ctx, func(raw string) bool {
		k, err := keys.Parse(raw)
		if err != nil || k.Kind != keys.KindMessage || k.ChatID != m.cid {
			return true
		}
		return fn(k.ID)
	})
}

// Each streams every message record in this chat. Return false to stop.
func (m *Messages) Each(ctx context.Context, fn func(msg Message) bool) error {
	var decodeErr error
	err := m.engine.Entries(ctx, func(rawKey, value string) bool {
		k, err := keys.Parse(rawKey)
		if err != nil || k.Kind != keys.KindMessage || k.ChatID != m.cid {
			return true
		}
		var rec Message
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

// Count returns the number of messages in this chat.
func (m *Messages) Count(ctx context.Context) (int, error) {
	n := 0
	err := m.IDs(ctx, func(string) bool {
		n++
		return true
	})
	return n, err
}
