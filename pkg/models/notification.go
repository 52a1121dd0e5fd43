package models

// NotificationTypeChat is the only type the feed engine emits today.
const NotificationTypeChat = "chat_message"

// Notification is the fan-out payload emitted after a successful message
// insert. Delivery is best-effort; the message itself is the durable record.
type Notification struct {
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Type       string   `json:"type"`
	Scope      Scope    `json:"scope"`
	MessageID  string   `json:"messageId,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
	TS         int64    `json:"ts,omitempty"`
}
