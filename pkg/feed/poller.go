package feed

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"teamfeed/pkg/logger"
	"teamfeed/pkg/models"
	"teamfeed/pkg/store"
)

// Poller periodically pulls new messages for a scope using a high-watermark,
// so each tick transfers only the delta instead of replacing the full list.
// It is safe to run concurrently with in-flight sends: the merged view is
// keyed by message id, last write wins.
type Poller struct {
	scope    models.Scope
	interval time.Duration
	onUpdate func([]models.Message)

	// active gates every state mutation after an asynchronous boundary.
	// Stopping the poller flips it so a tick already in flight cannot
	// mutate state the owner no longer cares about.
	active atomic.Bool
	cancel context.CancelFunc

	mu        sync.Mutex
	byID      map[string]models.Message
	watermark string
}

// defaultPollInterval is the fallback tick interval. Overridden from config
// at startup.
var defaultPollInterval atomic.Int64

// SetDefaultPollInterval sets the interval used when NewPoller gets a
// non-positive one. Non-positive values are ignored.
func SetDefaultPollInterval(d time.Duration) {
	if d > 0 {
		defaultPollInterval.Store(int64(d))
	}
}

// NewPoller creates a poller for scope. onUpdate receives the full merged
// snapshot, ordered, after every tick that changed it. Interval defaults to
// the configured poll interval, 30 seconds when unset.
func NewPoller(scope models.Scope, interval time.Duration, onUpdate func([]models.Message)) *Poller {
	if interval <= 0 {
		interval = time.Duration(defaultPollInterval.Load())
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		scope:    scope,
		interval: interval,
		onUpdate: onUpdate,
		byID:     make(map[string]models.Message),
	}
}

// Start begins polling until ctx is done or Stop is called. The first
// refresh runs immediately.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.active.Store(true)
	go p.loop(ctx)
}

// Stop deactivates the poller. A tick already past its fetch will observe
// the flag and drop its result rather than mutate state.
func (p *Poller) Stop() {
	p.active.Store(false)
	if p.cancel != nil {
		p.cancel()
	}
}

// Refresh forces an immediate incremental fetch. Safe to call concurrently
// with the periodic loop.
func (p *Poller) Refresh() {
	p.tick()
}

func (p *Poller) loop(ctx context.Context) {
	p.tick()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Poller) tick() {
	p.mu.Lock()
	wm := p.watermark
	p.mu.Unlock()

	msgs, err := store.ListSince(p.scope, wm)
	if err != nil {
		logger.Warn("poll_failed", "scope", p.scope.Key(), "error", err)
		return
	}
	// async boundary: the fetch may have raced Stop
	if !p.active.Load() {
		return
	}
	if len(msgs) == 0 {
		return
	}
	p.merge(msgs)
}

func (p *Poller) merge(msgs []models.Message) {
	p.mu.Lock()
	for _, m := range msgs {
		p.byID[m.ID] = m
		if k := m.OrderKey(); k > p.watermark {
			p.watermark = k
		}
	}
	snapshot := make([]models.Message, 0, len(p.byID))
	for _, m := range p.byID {
		snapshot = append(snapshot, m)
	}
	p.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool {
		if snapshot[i].CreatedAt != snapshot[j].CreatedAt {
			return snapshot[i].CreatedAt < snapshot[j].CreatedAt
		}
		return snapshot[i].Seq < snapshot[j].Seq
	})
	if p.onUpdate != nil && p.active.Load() {
		p.onUpdate(snapshot)
	}
}

// Watermark returns the highest order key observed so far.
func (p *Poller) Watermark() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watermark
}
