// Package feed composes the message store, directory and notification
// dispatcher into the per-scope conversation view.
package feed

import (
	"context"
	"strings"

	"teamfeed/pkg/errs"
	"teamfeed/pkg/logger"
	"teamfeed/pkg/models"
	"teamfeed/pkg/store"
)

// Notifier receives the fan-out call after a successful send. Implementations
// must not block and must swallow their own failures; the send path treats
// the call as fire-and-forget.
type Notifier interface {
	NotifyNewMessage(scope models.Scope, msg models.Message)
}

// Sender identifies the authenticated author of a send.
type Sender struct {
	ID   string
	Name string
	Role models.Role
}

// OpenResult is the state handed to a viewer opening a scope. The unread
// count reflects what the viewer is about to see, computed before the
// mark-read side effect zeroes it.
type OpenResult struct {
	Messages              []models.Message `json:"messages"`
	Pinned                *models.Message  `json:"pinned,omitempty"`
	UnreadCountBeforeOpen int              `json:"unreadCountBeforeOpen"`
}

type Feed struct {
	notifier Notifier
}

func New(notifier Notifier) *Feed {
	return &Feed{notifier: notifier}
}

// Open returns the scope's messages, pinned message and the viewer's unread
// count, then marks the scope read for the viewer.
func (f *Feed) Open(ctx context.Context, scope models.Scope, viewerID string) (OpenResult, error) {
	if err := scope.Validate(); err != nil {
		return OpenResult{}, err
	}
	if viewerID == "" {
		return OpenResult{}, errs.Validation("viewer id must not be empty")
	}

	unread, err := store.UnreadCount(scope, viewerID)
	if err != nil {
		return OpenResult{}, err
	}
	msgs, err := store.List(scope)
	if err != nil {
		return OpenResult{}, err
	}
	pinned, err := store.PinnedMessage(scope)
	if err != nil {
		return OpenResult{}, err
	}
	if err := store.MarkRead(scope, viewerID); err != nil {
		return OpenResult{}, err
	}
	return OpenResult{Messages: msgs, Pinned: pinned, UnreadCountBeforeOpen: unread}, nil
}

// Send trims and persists rawBody as a new message from sender, then
// triggers notification fan-out. The message is returned synchronously once
// durable; the fan-out is asynchronous and its failures never reach the
// caller or undo the send.
func (f *Feed) Send(ctx context.Context, scope models.Scope, sender Sender, rawBody string) (models.Message, error) {
	body := strings.TrimSpace(rawBody)
	msg, err := store.Append(scope, store.Actor{ID: sender.ID, Role: sender.Role}, sender.Name, body)
	if err != nil {
		return models.Message{}, err
	}
	if f.notifier != nil {
		f.notifier.NotifyNewMessage(scope, msg)
	}
	return msg, nil
}

// MarkRead records that viewer has seen everything currently in scope.
func (f *Feed) MarkRead(ctx context.Context, scope models.Scope, viewerID string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	return store.MarkRead(scope, viewerID)
}

// Pin makes messageID the scope's single pinned message.
func (f *Feed) Pin(ctx context.Context, scope models.Scope, messageID string, sender Sender) (models.Message, error) {
	if err := scope.Validate(); err != nil {
		return models.Message{}, err
	}
	return store.Pin(scope, messageID, store.Actor{ID: sender.ID, Role: sender.Role})
}

// Unpin clears the pin from messageID.
func (f *Feed) Unpin(ctx context.Context, scope models.Scope, messageID string, sender Sender) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	return store.Unpin(scope, messageID, store.Actor{ID: sender.ID, Role: sender.Role})
}

// Delete permanently removes messageID from scope.
func (f *Feed) Delete(ctx context.Context, scope models.Scope, messageID string, sender Sender) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if err := store.Delete(scope, messageID, store.Actor{ID: sender.ID, Role: sender.Role}); err != nil {
		return err
	}
	logger.Debug("feed_delete", "scope", scope.Key(), "id", messageID)
	return nil
}

// Unread returns the viewer's current unread count without side effects.
func (f *Feed) Unread(ctx context.Context, scope models.Scope, viewerID string) (int, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	return store.UnreadCount(scope, viewerID)
}
