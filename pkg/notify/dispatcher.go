// Package notify fans out notifications after successful message inserts.
// Delivery is fire-and-forget relative to the send path: a full queue drops,
// sink failures are logged and swallowed, and nothing here can fail or roll
// back the originating send.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"teamfeed/pkg/directory"
	"teamfeed/pkg/logger"
	"teamfeed/pkg/models"
	"teamfeed/pkg/telemetry"
)

// bodyLimit is the maximum notification body length in runes.
const bodyLimit = 120

// AccessResolver answers who is entitled to see a scope. Global scope fans
// out to all active users; entity scopes are delegated to the external
// authorization collaborator behind this interface.
type AccessResolver interface {
	ActiveUserIDs(ctx context.Context) ([]string, error)
	UsersWithAccess(ctx context.Context, scope models.Scope) ([]string, error)
}

// DirectoryAccess resolves scope access against the user directory, granting
// every active user access to every entity. Deployments with per-entity ACLs
// substitute their own AccessResolver.
type DirectoryAccess struct {
	Dir *directory.Index
}

func (d DirectoryAccess) ActiveUserIDs(ctx context.Context) ([]string, error) {
	return d.Dir.ActiveUserIDs(ctx)
}

func (d DirectoryAccess) UsersWithAccess(ctx context.Context, _ models.Scope) ([]string, error) {
	return d.Dir.ActiveUserIDs(ctx)
}

// Config tunes the dispatcher.
type Config struct {
	Workers        int
	QueueCapacity  int
	DeliverTimeout time.Duration
}

// Dispatcher owns the bounded queue and the delivery worker pool.
type Dispatcher struct {
	q      *Queue
	sink   Sink
	access AccessResolver
	cfg    Config

	wg   sync.WaitGroup
	stop chan struct{}
}

func New(cfg Config, access AccessResolver, sink Sink) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.DeliverTimeout <= 0 {
		cfg.DeliverTimeout = 5 * time.Second
	}
	return &Dispatcher{
		q:      NewQueue(cfg.QueueCapacity),
		sink:   sink,
		access: access,
		cfg:    cfg,
		stop:   make(chan struct{}),
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Stop signals workers to exit, waits for them, then drains the queue.
func (d *Dispatcher) Stop() {
	close(d.stop)
	d.wg.Wait()
	d.q.CloseAndDrain()
}

// Queue exposes queue depth/drop counters for admin surfaces.
func (d *Dispatcher) Queue() *Queue { return d.q }

// NotifyNewMessage builds and enqueues the notification for a freshly
// persisted message. It never blocks and never reports failure to the
// caller; a full queue is counted and logged.
func (d *Dispatcher) NotifyNewMessage(scope models.Scope, msg models.Message) {
	n := models.Notification{
		Title:     Title(scope, msg.SenderName),
		Body:      TruncateBody(msg.Body),
		Type:      models.NotificationTypeChat,
		Scope:     scope,
		MessageID: msg.ID,
		TS:        msg.CreatedAt,
	}
	d.Publish(n)
}

// Publish enqueues an already-built notification, best-effort.
func (d *Dispatcher) Publish(n models.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		logger.Error("notification_marshal_failed", "error", err)
		return
	}
	if err := d.q.TryEnqueue(payload); err != nil {
		telemetry.NotificationsDropped.Inc()
		logger.Warn("notification_dropped", "scope", n.Scope.Key(), "reason", "queue_full")
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case it, ok := <-d.q.Out():
			if !ok {
				return
			}
			d.handle(it)
		case <-d.stop:
			return
		}
	}
}

func (d *Dispatcher) handle(it *Item) {
	defer it.Done()
	var n models.Notification
	if err := json.Unmarshal(it.Payload, &n); err != nil {
		logger.Error("notification_decode_failed", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DeliverTimeout)
	defer cancel()

	if len(n.Recipients) == 0 {
		recipients, err := d.resolveRecipients(ctx, n.Scope)
		if err != nil {
			telemetry.NotificationsFailed.Inc()
			logger.Warn("notification_recipients_failed", "scope", n.Scope.Key(), "error", err)
			return
		}
		n.Recipients = recipients
	}
	if err := d.sink.Deliver(ctx, n); err != nil {
		telemetry.NotificationsFailed.Inc()
		logger.Warn("notification_delivery_failed", "scope", n.Scope.Key(), "error", err)
		return
	}
	telemetry.NotificationsDispatched.Inc()
}

func (d *Dispatcher) resolveRecipients(ctx context.Context, scope models.Scope) ([]string, error) {
	if scope.EntityType == models.EntityGlobal {
		return d.access.ActiveUserIDs(ctx)
	}
	return d.access.UsersWithAccess(ctx, scope)
}

// Title renders the notification headline.
func Title(scope models.Scope, senderName string) string {
	if senderName == "" {
		senderName = "Someone"
	}
	if scope.EntityType == models.EntityGlobal {
		return fmt.Sprintf("%s in team chat", senderName)
	}
	return fmt.Sprintf("%s on %s %s", senderName, scope.EntityType, scope.EntityID)
}

// TruncateBody caps the notification body at bodyLimit runes, replacing the
// overflow with an ellipsis.
func TruncateBody(body string) string {
	runes := []rune(body)
	if len(runes) <= bodyLimit {
		return body
	}
	return string(runes[:bodyLimit-1]) + "…"
}
