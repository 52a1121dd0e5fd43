package models

import "fmt"

// Role is the sender's role within the workspace. Owners may pin and
// delete; editors may only post and read.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
)

type Message struct {
	ID         string `json:"id"`
	Scope      Scope  `json:"scope"`
	Body       string `json:"body"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName,omitempty"`
	SenderRole Role   `json:"senderRole,omitempty"`
	// CreatedAt is a server-assigned UTC nanosecond timestamp. Ordering
	// within a scope is (CreatedAt, Seq); never wall-clock alone.
	CreatedAt int64 `json:"createdAt"`
	// Seq breaks ties between messages sharing a nanosecond timestamp.
	Seq uint64 `json:"seq"`
	// PinnedAt is set on at most one message per scope at any time.
	PinnedAt int64 `json:"pinnedAt,omitempty"`
	// ReadBy grows monotonically; ids are never removed.
	ReadBy []string `json:"readBy,omitempty"`
}

// Pinned reports whether the message currently holds the scope's pin.
func (m *Message) Pinned() bool { return m.PinnedAt != 0 }

// ReadByUser reports whether userID is present in ReadBy.
func (m *Message) ReadByUser(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// MarkReadBy appends userID to ReadBy if absent. Returns true when the set
// changed.
func (m *Message) MarkReadBy(userID string) bool {
	if m.ReadByUser(userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, userID)
	return true
}

// OrderKey renders the sortable per-scope key suffix for the message. It is
// also the watermark format used for incremental listing.
func (m *Message) OrderKey() string {
	return fmt.Sprintf("%020d-%012d", m.CreatedAt, m.Seq)
}
