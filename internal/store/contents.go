package store

import (
	"context"
	"fmt"

	"github.com/matheus3301/msgvault/internal/engine"
	"github.com/matheus3301/msgvault/internal/keys"
)

// Contents routes the raw content blobs of one chat's messages. A blob is
// stored apart from its message record and round-trips byte for byte
// through the binary wire envelope.
type Contents struct {
	engine engine.Engine
	cid    string
}

// ChatID returns the chat this router is scoped to.
func (c *Contents) ChatID() string { return c.cid }

// Set stores blob for message id. A nil blob deletes the content; an
// empty non-nil blob is stored as zero bytes.
func (c *Contents) Set(ctx context.Context, id string, blob []byte) error {
	if id == "" {
		return fmt.Errorf("message id is empty")
	}
	if blob == nil {
		_, err := c.Delete(ctx, id)
		return err
	}
	value, err := encodeBytes(blob)
	if err != nil {
		return err
	}
	return c.engine.Set(ctx, keys.Content(c.cid, id).Encode(), value)
}

// Get returns the content bytes. found is false when no content is
// stored; a message without content is normal, not an error.
func (c *Contents) Get(ctx context.Context, id string) ([]byte, bool, error) {
	key := keys.Content(c.cid, id).Encode()
	value, found, err := c.engine.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	blob, err := decodeBytes(key, value)
	if err != nil {
		return nil, false, err
	}
	return blob, true, nil
}

// Has reports whether content is stored for the message.
func (c *Contents) Has(ctx context.Context, id string) (bool, error) {
	return c.engine.Has(ctx, keys.Content(c.cid, id).Encode())
}

// Delete removes the content. removed is false when none was stored.
func (c *Contents) Delete(ctx context.Context, id string) (bool, error) {
	return c.engine.Delete(ctx, keys.Content(c.cid, id).Encode())
}
