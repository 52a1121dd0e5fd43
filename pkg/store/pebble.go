// Package store is the append-only message log. Messages are partitioned by
// conversation scope under sortable pebble keys, so listing a scope is a
// single prefix scan in createdAt order.
//
// Key layout:
//
//	scope:<scopeKey>:msg:<%020d ts>-<%012d seq>  message JSON
//	scope:<scopeKey>:id:<messageID>             order-key suffix (id index)
//	scope:<scopeKey>:pinned                     pinned message id
//	scope:<scopeKey>:read:<userID>              read watermark (ns, decimal)
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"teamfeed/pkg/auth"
	"teamfeed/pkg/errs"
	"teamfeed/pkg/logger"
	"teamfeed/pkg/models"
	"teamfeed/pkg/telemetry"
)

var (
	db  *pebble.DB
	seq uint64

	// lastTS guards createdAt monotonicity per scope against clock skew.
	tsMu   sync.Mutex
	lastTS = map[string]int64{}
)

// scopeLocks serializes append/pin/markRead/delete per scope. Striped so
// distinct scopes proceed fully in parallel.
var scopeLocks [128]sync.Mutex

func lockScope(scopeKey string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(scopeKey))
	return &scopeLocks[h.Sum32()%uint32(len(scopeLocks))]
}

// Actor identifies who is performing a gated store operation.
type Actor struct {
	ID   string
	Role models.Role
}

// Open opens (or creates) the pebble database at path and keeps a package
// handle, matching the single-store process model.
func Open(path string) error {
	var err error
	logger.Info("opening_store", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("store_open_failed", "path", path, "error", err)
		return err
	}
	return nil
}

// Close closes the opened store if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("store_closed")
	return nil
}

// Ready reports whether the store is opened.
func Ready() bool { return db != nil }

func notOpened() error {
	return errs.Transient("store", fmt.Errorf("store not opened; call store.Open first"))
}

func msgPrefix(scope models.Scope) string { return "scope:" + scope.Key() + ":msg:" }

func idKey(scope models.Scope, id string) string { return "scope:" + scope.Key() + ":id:" + id }

func pinKey(scope models.Scope) string { return "scope:" + scope.Key() + ":pinned" }

func readKey(scope models.Scope, user string) string {
	return "scope:" + scope.Key() + ":read:" + user
}

// nextTimestamp returns a per-scope monotonic nanosecond timestamp. Equal
// timestamps are legal; the sequence number breaks the tie.
func nextTimestamp(scopeKey string) int64 {
	tsMu.Lock()
	defer tsMu.Unlock()
	ts := time.Now().UTC().UnixNano()
	if last := lastTS[scopeKey]; ts < last {
		ts = last
	}
	lastTS[scopeKey] = ts
	return ts
}

// readCutoff returns a mark-read cutoff that is never behind the scope's
// append clock. A wall-clock regression would otherwise leave already
// appended messages above the cutoff and permanently unread.
func readCutoff(scopeKey string) int64 {
	tsMu.Lock()
	defer tsMu.Unlock()
	ts := time.Now().UTC().UnixNano()
	if last := lastTS[scopeKey]; ts < last {
		ts = last
	}
	return ts
}

// Append validates and persists a new message in scope, assigning id,
// createdAt and the insertion sequence. The returned message is the canonical
// server copy.
func Append(scope models.Scope, actor Actor, senderName, body string) (models.Message, error) {
	if db == nil {
		return models.Message{}, notOpened()
	}
	if err := scope.Validate(); err != nil {
		return models.Message{}, err
	}
	if strings.TrimSpace(body) == "" {
		return models.Message{}, errs.Validation("message body must not be empty")
	}

	mu := lockScope(scope.Key())
	mu.Lock()
	defer mu.Unlock()

	m := models.Message{
		ID:         uuid.NewString(),
		Scope:      scope,
		Body:       strings.TrimSpace(body),
		SenderID:   actor.ID,
		SenderName: senderName,
		SenderRole: actor.Role,
		CreatedAt:  nextTimestamp(scope.Key()),
		Seq:        atomic.AddUint64(&seq, 1),
	}
	data, err := json.Marshal(m)
	if err != nil {
		return models.Message{}, fmt.Errorf("marshal message: %w", err)
	}

	batch := db.NewBatch()
	defer batch.Close()
	key := msgPrefix(scope) + m.OrderKey()
	if err := batch.Set([]byte(key), data, nil); err != nil {
		return models.Message{}, errs.Transient("append", err)
	}
	if err := batch.Set([]byte(idKey(scope, m.ID)), []byte(m.OrderKey()), nil); err != nil {
		return models.Message{}, errs.Transient("append", err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("append_failed", "scope", scope.Key(), "key", key, "error", err)
		return models.Message{}, errs.Transient("append", err)
	}
	telemetry.MessagesAppended.WithLabelValues(string(scope.EntityType)).Inc()
	logger.Info("message_appended", "scope", scope.Key(), "id", m.ID)
	return m, nil
}

// List returns all messages in scope in ascending (createdAt, seq) order.
// The pinned flag rides inline on the message; by the pin-singleton
// invariant at most one element has it set.
func List(scope models.Scope) ([]models.Message, error) {
	return ListSince(scope, "")
}

// ListSince returns messages whose order key is strictly greater than
// watermark. The empty watermark lists everything. Callers feed the highest
// OrderKey they have seen back in for incremental polling.
func ListSince(scope models.Scope, watermark string) ([]models.Message, error) {
	if db == nil {
		return nil, notOpened()
	}
	prefix := []byte(msgPrefix(scope))
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, errs.Transient("list", err)
	}
	defer iter.Close()

	seek := prefix
	if watermark != "" {
		seek = append(append([]byte(nil), prefix...), []byte(watermark)...)
	}
	var out []models.Message
	for iter.SeekGE(seek); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if watermark != "" && string(iter.Key()) == string(prefix)+watermark {
			continue
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Error("list_invalid_message_json", "scope", scope.Key(), "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, m)
	}
	if err := iter.Error(); err != nil {
		return nil, errs.Transient("list", err)
	}
	return out, nil
}

// getByID resolves a message through the id index. Callers hold the scope
// lock when they intend to mutate.
func getByID(scope models.Scope, msgID string) (string, models.Message, error) {
	orderKey, closer, err := db.Get([]byte(idKey(scope, msgID)))
	if err != nil {
		if err == pebble.ErrNotFound {
			return "", models.Message{}, errs.NotFound("message", msgID)
		}
		return "", models.Message{}, errs.Transient("get", err)
	}
	suffix := string(orderKey)
	if closer != nil {
		_ = closer.Close()
	}
	key := msgPrefix(scope) + suffix
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		if err == pebble.ErrNotFound {
			return "", models.Message{}, errs.NotFound("message", msgID)
		}
		return "", models.Message{}, errs.Transient("get", err)
	}
	defer closer.Close()
	var m models.Message
	if err := json.Unmarshal(v, &m); err != nil {
		return "", models.Message{}, fmt.Errorf("invalid stored message %s: %w", msgID, err)
	}
	return key, m, nil
}

func writeMessage(batch *pebble.Batch, scope models.Scope, m models.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return batch.Set([]byte(msgPrefix(scope)+m.OrderKey()), data, nil)
}

// Pin sets messageID as the single pinned message of scope, atomically
// clearing any prior pin. Concurrent pins on the same scope serialize on the
// scope lock; the last committed call wins.
func Pin(scope models.Scope, messageID string, actor Actor) (models.Message, error) {
	if db == nil {
		return models.Message{}, notOpened()
	}
	if !auth.Allowed(actor.Role, auth.ActionPin) {
		telemetry.PinOps.WithLabelValues("pin", "denied").Inc()
		return models.Message{}, errs.Permission(string(auth.ActionPin))
	}

	mu := lockScope(scope.Key())
	mu.Lock()
	defer mu.Unlock()

	_, target, err := getByID(scope, messageID)
	if err != nil {
		telemetry.PinOps.WithLabelValues("pin", "not_found").Inc()
		return models.Message{}, err
	}

	batch := db.NewBatch()
	defer batch.Close()

	if currentID, ok := pinnedID(scope); ok && currentID != messageID {
		if _, current, err := getByID(scope, currentID); err == nil {
			current.PinnedAt = 0
			if err := writeMessage(batch, scope, current); err != nil {
				return models.Message{}, errs.Transient("pin", err)
			}
		}
	}

	target.PinnedAt = time.Now().UTC().UnixNano()
	if err := writeMessage(batch, scope, target); err != nil {
		return models.Message{}, errs.Transient("pin", err)
	}
	if err := batch.Set([]byte(pinKey(scope)), []byte(messageID), nil); err != nil {
		return models.Message{}, errs.Transient("pin", err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("pin_failed", "scope", scope.Key(), "id", messageID, "error", err)
		return models.Message{}, errs.Transient("pin", err)
	}
	telemetry.PinOps.WithLabelValues("pin", "ok").Inc()
	logger.Info("message_pinned", "scope", scope.Key(), "id", messageID, "actor", actor.ID)
	return target, nil
}

// Unpin clears the pin from messageID if it currently holds it. Unpinning a
// message that is not pinned is a no-op.
func Unpin(scope models.Scope, messageID string, actor Actor) error {
	if db == nil {
		return notOpened()
	}
	if !auth.Allowed(actor.Role, auth.ActionPin) {
		telemetry.PinOps.WithLabelValues("unpin", "denied").Inc()
		return errs.Permission(string(auth.ActionPin))
	}

	mu := lockScope(scope.Key())
	mu.Lock()
	defer mu.Unlock()

	_, target, err := getByID(scope, messageID)
	if err != nil {
		return err
	}
	currentID, ok := pinnedID(scope)
	if !ok || currentID != messageID {
		return nil
	}

	batch := db.NewBatch()
	defer batch.Close()
	target.PinnedAt = 0
	if err := writeMessage(batch, scope, target); err != nil {
		return errs.Transient("unpin", err)
	}
	if err := batch.Delete([]byte(pinKey(scope)), nil); err != nil {
		return errs.Transient("unpin", err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return errs.Transient("unpin", err)
	}
	telemetry.PinOps.WithLabelValues("unpin", "ok").Inc()
	logger.Info("message_unpinned", "scope", scope.Key(), "id", messageID, "actor", actor.ID)
	return nil
}

func pinnedID(scope models.Scope) (string, bool) {
	v, closer, err := db.Get([]byte(pinKey(scope)))
	if err != nil {
		return "", false
	}
	id := string(v)
	if closer != nil {
		_ = closer.Close()
	}
	return id, id != ""
}

// PinnedMessage returns the scope's pinned message, or nil when none exists.
func PinnedMessage(scope models.Scope) (*models.Message, error) {
	if db == nil {
		return nil, notOpened()
	}
	id, ok := pinnedID(scope)
	if !ok {
		return nil, nil
	}
	_, m, err := getByID(scope, id)
	if err != nil {
		if errs.IsNotFound(err) {
			// Stale pointer; the pinned message was deleted.
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// MarkRead adds userID to the readBy set of every message in scope created
// at or before now, and advances the viewer's read watermark. Idempotent:
// repeat calls change nothing visible.
func MarkRead(scope models.Scope, userID string) error {
	if db == nil {
		return notOpened()
	}
	if userID == "" {
		return errs.Validation("userId must not be empty")
	}

	mu := lockScope(scope.Key())
	mu.Lock()
	defer mu.Unlock()

	cutoff := readCutoff(scope.Key())
	msgs, err := List(scope)
	if err != nil {
		return err
	}
	batch := db.NewBatch()
	defer batch.Close()
	changed := 0
	for i := range msgs {
		if msgs[i].CreatedAt > cutoff {
			break
		}
		if msgs[i].MarkReadBy(userID) {
			if err := writeMessage(batch, scope, msgs[i]); err != nil {
				return errs.Transient("mark_read", err)
			}
			changed++
		}
	}
	wm := strconv.FormatInt(cutoff, 10)
	if err := batch.Set([]byte(readKey(scope, userID)), []byte(wm), nil); err != nil {
		return errs.Transient("mark_read", err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return errs.Transient("mark_read", err)
	}
	telemetry.MarkReadOps.Inc()
	logger.Debug("scope_marked_read", "scope", scope.Key(), "user", userID, "updated", changed)
	return nil
}

// ReadWatermark returns the viewer's last mark-read timestamp (ns), zero if
// the viewer has never opened the scope.
func ReadWatermark(scope models.Scope, userID string) (int64, error) {
	if db == nil {
		return 0, notOpened()
	}
	v, closer, err := db.Get([]byte(readKey(scope, userID)))
	if err != nil {
		if err == pebble.ErrNotFound {
			return 0, nil
		}
		return 0, errs.Transient("read_watermark", err)
	}
	defer closer.Close()
	ts, perr := strconv.ParseInt(string(v), 10, 64)
	if perr != nil {
		return 0, fmt.Errorf("invalid read watermark for %s: %w", userID, perr)
	}
	return ts, nil
}

// UnreadCount counts messages in scope the viewer has not read. Always
// recomputed from stored readBy state, never cached, so it cannot drift.
func UnreadCount(scope models.Scope, viewerID string) (int, error) {
	msgs, err := List(scope)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range msgs {
		if !msgs[i].ReadByUser(viewerID) {
			n++
		}
	}
	return n, nil
}

// Delete permanently removes messageID from scope. A deleted pinned message
// leaves the scope with no pin; nothing is auto-promoted.
func Delete(scope models.Scope, messageID string, actor Actor) error {
	if db == nil {
		return notOpened()
	}
	if !auth.Allowed(actor.Role, auth.ActionDelete) {
		return errs.Permission(string(auth.ActionDelete))
	}

	mu := lockScope(scope.Key())
	mu.Lock()
	defer mu.Unlock()

	key, _, err := getByID(scope, messageID)
	if err != nil {
		return err
	}
	batch := db.NewBatch()
	defer batch.Close()
	if err := batch.Delete([]byte(key), nil); err != nil {
		return errs.Transient("delete", err)
	}
	if err := batch.Delete([]byte(idKey(scope, messageID)), nil); err != nil {
		return errs.Transient("delete", err)
	}
	if currentID, ok := pinnedID(scope); ok && currentID == messageID {
		if err := batch.Delete([]byte(pinKey(scope)), nil); err != nil {
			return errs.Transient("delete", err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("delete_failed", "scope", scope.Key(), "id", messageID, "error", err)
		return errs.Transient("delete", err)
	}
	telemetry.MessagesDeleted.Inc()
	logger.Info("message_deleted", "scope", scope.Key(), "id", messageID, "actor", actor.ID)
	return nil
}

// Scopes returns every scope that has at least one stored key. Used by the
// maintenance sweeper.
func Scopes() ([]models.Scope, error) {
	if db == nil {
		return nil, notOpened()
	}
	prefix := []byte("scope:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, errs.Transient("scopes", err)
	}
	defer iter.Close()
	seen := map[string]models.Scope{}
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		s, ok := parseScopeKey(string(iter.Key()))
		if !ok {
			continue
		}
		seen[s.Key()] = s
	}
	if err := iter.Error(); err != nil {
		return nil, errs.Transient("scopes", err)
	}
	out := make([]models.Scope, 0, len(seen))
	for _, s := range seen {
		out = append(out, s)
	}
	return out, nil
}

func parseScopeKey(key string) (models.Scope, bool) {
	rest := strings.TrimPrefix(key, "scope:")
	if rest == key {
		return models.Scope{}, false
	}
	if strings.HasPrefix(rest, "global:") {
		return models.GlobalScope, true
	}
	parts := strings.SplitN(rest, ":", 3)
	if len(parts) < 3 {
		return models.Scope{}, false
	}
	et := models.EntityType(parts[0])
	if et != models.EntityContact && et != models.EntityProject {
		return models.Scope{}, false
	}
	return models.Scope{EntityType: et, EntityID: parts[1]}, true
}

// ReadMarkerUsers returns the user ids holding a read watermark in scope.
func ReadMarkerUsers(scope models.Scope) ([]string, error) {
	if db == nil {
		return nil, notOpened()
	}
	prefix := []byte("scope:" + scope.Key() + ":read:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, errs.Transient("read_markers", err)
	}
	defer iter.Close()
	var out []string
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		out = append(out, strings.TrimPrefix(string(iter.Key()), string(prefix)))
	}
	return out, iter.Error()
}

// DropReadMarker removes a user's read watermark from scope. readBy entries
// on messages are never removed; only the derived watermark is swept.
func DropReadMarker(scope models.Scope, userID string) error {
	if db == nil {
		return notOpened()
	}
	return db.Delete([]byte(readKey(scope, userID)), pebble.Sync)
}
