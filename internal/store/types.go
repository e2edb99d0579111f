package store

import "encoding/json"

// ChatType distinguishes direct conversations from groups.
type ChatType string

const (
	ChatContact ChatType = "contact"
	ChatGroup   ChatType = "group"
)

// Status is the delivery state of a message. States only ever move
// forward; a re-sync replaying an older state never demotes a message.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// rank orders statuses for the forward-only merge. Unknown states rank
// lowest so anything recognized wins over them.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusSent:
		return 2
	case StatusDelivered:
		return 3
	case StatusRead:
		return 4
	}
	return 0
}

// Contact is a synced contact. Raw carries the upstream payload untouched;
// the named fields are projections the client reads without parsing it.
type Contact struct {
	ID      string          `json:"id"`
	Name    string          `json:"name,omitempty"`
	Photo   string          `json:"photo,omitempty"`
	Phone   string          `json:"phone,omitempty"`
	Content string          `json:"content,omitempty"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

// Chat is a synced conversation.
type Chat struct {
	ID    string   `json:"id"`
	Name  string   `json:"name,omitempty"`
	Photo string   `json:"photo,omitempty"`
	Phone string   `json:"phone,omitempty"`
	Type  ChatType `json:"type"`
}

// Message is a synced message. (ChatID, ID) is the primary key; ID alone
// repeats across chats. QuoteID references the quoted message, if any.
// CreatedAt is unix milliseconds.
type Message struct {
	ID        string `json:"id"`
	ChatID    string `json:"cid"`
	SenderID  string `json:"uid,omitempty"`
	QuoteID   string `json:"mid,omitempty"`
	Type      string `json:"type,omitempty"`
	MIME      string `json:"mime,omitempty"`
	Caption   string `json:"caption,omitempty"`
	FromMe    bool   `json:"me,omitempty"`
	Status    Status `json:"status,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
	Edited    bool   `json:"edited,omitempty"`
}
