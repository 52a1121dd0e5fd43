// Package sweeper runs periodic maintenance over the message store: it
// drops read watermarks of users no longer present in the directory and
// audits the one-pin-per-scope invariant.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"teamfeed/pkg/config"
	"teamfeed/pkg/directory"
	"teamfeed/pkg/logger"
	"teamfeed/pkg/models"
	"teamfeed/pkg/store"
	"teamfeed/pkg/telemetry"
)

const defaultCron = "0 3 * * *"

// Start launches the scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg config.SweeperConfig, dir *directory.Index) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("sweeper_disabled")
		return func() {}, nil
	}
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = defaultCron
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid sweeper cron expression: %q", cronExpr)
	}

	cctx, cancel := context.WithCancel(ctx)
	go runScheduler(cctx, cronExpr, dir)
	logger.Info("sweeper_started", "cron", cronExpr)
	return cancel, nil
}

// runScheduler computes the next tick from the cron expression and sleeps
// until it, so schedule drift stays bounded regardless of run duration.
func runScheduler(ctx context.Context, cronExpr string, dir *directory.Index) {
	for {
		now := time.Now()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("sweeper_next_tick_failed", "error", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
		}
		if err := RunOnce(ctx, dir); err != nil {
			logger.Error("sweeper_run_failed", "error", err)
		}
	}
}

// RunOnce performs a single sweep. Exposed so admin surfaces and tests can
// trigger it on demand.
func RunOnce(ctx context.Context, dir *directory.Index) error {
	known, err := dir.ActiveUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}
	keep := make(map[string]struct{}, len(known))
	for _, id := range known {
		keep[id] = struct{}{}
	}

	scopes, err := store.Scopes()
	if err != nil {
		return err
	}
	dropped := 0
	for _, scope := range scopes {
		users, err := store.ReadMarkerUsers(scope)
		if err != nil {
			return err
		}
		for _, u := range users {
			if _, ok := keep[u]; ok {
				continue
			}
			if err := store.DropReadMarker(scope, u); err != nil {
				logger.Warn("sweeper_drop_marker_failed", "scope", scope.Key(), "user", u, "error", err)
				continue
			}
			dropped++
		}

		if err := auditPins(scope); err != nil {
			return err
		}
	}
	logger.Info("sweeper_run_complete", "scopes", len(scopes), "markers_dropped", dropped)
	return nil
}

// auditPins verifies at most one message in scope carries a pin timestamp.
// A violation is logged and counted, never repaired silently; it indicates
// a store bug that must be investigated, not papered over.
func auditPins(scope models.Scope) error {
	msgs, err := store.List(scope)
	if err != nil {
		return err
	}
	pinned := 0
	for i := range msgs {
		if msgs[i].Pinned() {
			pinned++
		}
	}
	if pinned > 1 {
		telemetry.PinInvariantViolations.Inc()
		logger.Error("pin_invariant_violated", "scope", scope.Key(), "pinned", pinned)
	}
	return nil
}
