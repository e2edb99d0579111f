// Package store is the typed layer over an engine: namespace routers for
// documents, contacts, chats, messages and raw content, plus the
// recency-ordered pagination they share. It adds no caching and no
// locking — every call goes straight to the engine, concurrent writers
// are last-write-wins, and iteration sees a best-effort view.
package store

import (
	"github.com/matheus3301/msgvault/internal/engine"
)

// Store routes typed operations onto an engine.
type Store struct {
	engine engine.Engine

	documents *Documents
	contacts  *Contacts
	chats     *Chats
}

// New builds a store over e. The store does not own e; closing it stays
// the caller's job.
func New(e engine.Engine) *Store {
	s := &Store{engine: e}
	s.documents = &Documents{engine: e}
	s.contacts = &Contacts{engine: e}
	s.chats = &Chats{engine: e}
	return s
}

// Engine exposes the underlying engine for plumbing that works below the
// typed layer (transfer, the HTTP surface).
func (s *Store) Engine() engine.Engine { return s.engine }

// Documents returns the router for opaque named blobs.
func (s *Store) Documents() *Documents { return s.documents }

// Contacts returns the contact router.
func (s *Store) Contacts() *Contacts { return s.contacts }

// Chats returns the chat router.
func (s *Store) Chats() *Chats { return s.chats }

// Messages returns the message router scoped to one chat.
func (s *Store) Messages(cid string) *Messages {
	return &Messages{engine: s.engine, cid: cid}
}

// Contents returns the raw-content router scoped to one chat.
func (s *Store) Contents(cid string) *Contents {
	return &Contents{engine: s.engine, cid: cid}
}
