package store

import (
	"context"
	"fmt"

	"github.com/matheus3301/msgvault/internal/engine"
	"github.com/matheus3301/msgvault/internal/keys"
)

// Chats routes chat records. Deleting a chat cascades over everything
// stored beneath it.
type Chats struct {
	engine engine.Engine
}

// Set stores chat under id, overwriting any previous record. A nil chat
// deletes the record and, like Delete, everything beneath the chat.
func (c *Chats) Set(ctx context.Context, id string, chat *Chat) error {
	if id == "" {
		return fmt.Errorf("chat id is empty")
	}
	if chat == nil {
		_, err := c.Delete(ctx, id)
		return err
	}
	rec := *chat
	rec.ID = id
	value, err := encodeRecord(&rec)
	if err != nil {
		return err
	}
	return c.engine.Set(ctx, keys.Chat(id).Encode(), value)
}

// Get returns the chat, or nil when it does not exist.
func (c *Chats) Get(ctx context.Context, id string) (*Chat, error) {
	key := keys.Chat(id).Encode()
	value, found, err := c.engine.Get(ctx, key)
	if err != nil || !found {
		return nil, err
	}
	var rec Chat
	if err := decodeRecord(key, value, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Has reports whether the chat record exists.
func (c *Chats) Has(ctx context.Context, id string) (bool, error) {
	return c.engine.Has(ctx, keys.Chat(id).Encode())
}

// Delete removes the chat and cascades over its subtree: every message
// and content key under the chat goes too, whichever scan path the engine
// offers. Children go first so a failure partway leaves the chat record
// still listable. removed reports whether the chat record itself existed.
func (c *Chats) Delete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("chat id is empty")
	}
	matches, err := engine.ScanKeys(ctx, c.engine, keys.ChatSubtreePattern(id))
	if err != nil {
		return false, err
	}
	recordKey := keys.Chat(id).Encode()
	for _, raw := range matches {
		if raw == recordKey {
			continue
		}
		// The pattern can over-match when the id itself carries a
		// metacharacter; trust only keys that parse back to this chat.
		k, err := keys.Parse(raw)
		if err != nil || k.ChatID != id {
			continue
		}
		if _, err := c.engine.Delete(ctx, raw); err != nil {
			return false, err
		}
	}
	return c.engine.Delete(ctx, recordKey)
}

// Recent returns one page of chats, most recently written first. The
// chat pattern also catches nested message keys ("*" crosses slashes);
// parsing drops them.
func (c *Chats) Recent(ctx context.Context, offset, limit int) ([]Chat, error) {
	page, err := recentKeys(ctx, c.engine, keys.ChatsPattern(), func(k keys.Key) bool {
		return k.Kind == keys.KindChat
	}, offset, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Chat, 0, len(page))
	for _, key := range page {
		value, found, err := c.engine.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		var rec Chat
		if err := decodeRecord(key, value, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// IDs streams every chat id. Return false to stop.
func (c *Chats) IDs(ctx context.Context, fn func(id string) bool) error {
	return c.engine.Keys(ctx, func(raw string) bool {
		k, err := keys.Parse(raw)
		if err != nil || k.Kind != keys.KindChat {
			return true
		}
		return fn(k.ChatID)
	})
}

// Each streams every chat record. Return false to stop.
func (c *Chats) Each(ctx context.Context, fn func(chat Chat) bool) error {
	var decodeErr error
	err := c.engine.Entries(ctx, func(rawKey, value string) bool {
		k, err := keys.Parse(rawKey)
		if err != nil || k.Kind != keys.KindChat {
			return true
		}
		var rec Chat
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

// Count returns the number of stored chats.
func (c *Chats) Count(ctx context.Context) (int, error) {
	n := 0
	err := c.IDs(ctx, func(string) bool {
		n++
		return true
	})
	return n, err
}
