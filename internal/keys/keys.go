// Package keys builds and parses the storage keys used by the message vault.
//
// Every record lives under a slash-delimited key ending in the literal
// segment "index":
//
//	document/{name}/index
//	contact/{id}/index
//	chat/{cid}/index
//	chat/{cid}/message/{mid}/index
//	chat/{cid}/content/{mid}/index
//
// Identifiers are carried verbatim; escaping characters a storage medium
// cannot represent is the engine's job, never the codec's. Identifiers must
// not be empty and must not contain "/", otherwise Encode and Parse stop
// being inverses.
package keys

import (
	"errors"
	"strings"
)

// Leaf is the terminal segment of every key.
const Leaf = "index"

// ErrMalformed reports a string that is not a well-formed storage key.
var ErrMalformed = errors.New("malformed key")

// Kind enumerates the key namespaces.
type Kind string

const (
	KindDocument Kind = "document"
	KindContact  Kind = "contact"
	KindChat     Kind = "chat"
	KindMessage  Kind = "message"
	KindContent  Kind = "content"
)

// segment names as they appear on the wire
const (
	nsDocument = "document"
	nsContact  = "contact"
	nsChat     = "chat"
	subMessage = "message"
	subContent = "content"
)

// Key identifies one stored record. The populated fields depend on Kind:
// Document uses Name; Contact uses ID; Chat uses ChatID; Message and
// Content use ChatID plus ID.
type Key struct {
	Kind   Kind
	Name   string // document name
	ChatID string // owning chat for chat/message/content kinds
	ID     string // contact id, or message id for message/content kinds
}

// Document returns the key for a named opaque document.
func Document(name string) Key {
	return Key{Kind: KindDocument, Name: name}
}

// Contact returns the key for a contact record.
func Contact(id string) Key {
	return Key{Kind: KindContact, ID: id}
}

// Chat returns the key for a chat record.
func Chat(cid string) Key {
	return Key{Kind: KindChat, ChatID: cid}
}

// Message returns the key for a message record inside a chat.
func Message(cid, mid string) Key {
	return Key{Kind: KindMessage, ChatID: cid, ID: mid}
}

// Content returns the key for the raw content attached to a message.
func Content(cid, mid string) Key {
	return Key{Kind: KindContent, ChatID: cid, ID: mid}
}

// Encode renders the key as its storage string.
func (k Key) Encode() string {
	switch k.Kind {
	case KindDocument:
		return nsDocument + "/" + k.Name + "/" + Leaf
	case KindContact:
		return nsContact + "/" + k.ID + "/" + Leaf
	case KindChat:
		return nsChat + "/" + k.ChatID + "/" + Leaf
	case KindMessage:
		return nsChat + "/" + k.ChatID + "/" + subMessage + "/" + k.ID + "/" + Leaf
	case KindContent:
		return nsChat + "/" + k.ChatID + "/" + subContent + "/" + k.ID + "/" + Leaf
	}
	return ""
}

// String implements fmt.Stringer.
func (k Key) String() string { return k.Encode() }

// Parse decodes a storage string back into a Key. It accepts exactly the
// shapes Encode produces and returns ErrMalformed for everything else.
func Parse(s string) (Key, error) {
	parts := strings.Split(s, "/")
	n := len(parts)
	if n < 3 || parts[n-1] != Leaf {
		return Key{}, malformed(s)
	}
	for _, p := range parts {
		if p == "" {
			return Key{}, malformed(s)
		}
	}
	switch parts[0] {
	case nsDocument:
		if n == 3 {
			return Document(parts[1]), nil
		}
	case nsContact:
		if n == 3 {
			return Contact(parts[1]), nil
		}
	case nsChat:
		switch {
		case n == 3:
			return Chat(parts[1]), nil
		case n == 5 && parts[2] == subMessage:
			return Message(parts[1], parts[3]), nil
		case n == 5 && parts[2] == subContent:
			return Content(parts[1], parts[3]), nil
		}
	}
	return Key{}, malformed(s)
}

func malformed(s string) error {
	return &malformedError{key: s}
}

type malformedError struct {
	key string
}

func (e *malformedError) Error() string { return "malformed key: " + e.key }

func (e *malformedError) Is(target error) bool { return target == ErrMalformed }

// Patterns for engine scans. The glob language has a single metacharacter,
// "*", which matches any run of characters including "/". Because a "*" can
// cross segment boundaries, callers filter scan results through Parse before
// trusting the kind.

// DocumentsPattern matches every document key.
func DocumentsPattern() string { return nsDocument + "/*" }

// ContactsPattern matches every contact key.
func ContactsPattern() string { return nsContact + "/*" }

// ChatsPattern matches every key under the chat namespace, chat records and
// their nested message/content keys alike.
func ChatsPattern() string { return nsChat + "/*" }

// ChatSubtreePattern matches every key belonging to one chat: its record,
// its messages, and their contents. Cascade deletion scans with this.
func ChatSubtreePattern(cid string) string {
	return nsChat + "/" + cid + "/*"
}

// MessagesPattern matches the message keys of one chat.
func MessagesPattern(cid string) string {
	return nsChat + "/" + cid + "/" + subMessage + "/*"
}

// ContentsPattern matches the content keys of one chat.
func ContentsPattern(cid string) string {
	return nsChat + "/" + cid + "/" + subContent + "/*"
}
