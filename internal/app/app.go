package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"teamfeed/internal/sweeper"
	"teamfeed/pkg/config"
	"teamfeed/pkg/directory"
	"teamfeed/pkg/feed"
	"teamfeed/pkg/logger"
	"teamfeed/pkg/notify"
	"teamfeed/pkg/store"
)

// App encapsulates the server components and lifecycle.
type App struct {
	cfg     *config.Config
	addr    string
	dbPath  string
	version string

	dir        *directory.Index
	dispatcher *notify.Dispatcher
	feed       *feed.Feed

	sweeperCancel context.CancelFunc
	srv           *http.Server
}

// New initializes resources that do not require a running context (store,
// runtime keys, directory, dispatcher). It does not start workers or the
// HTTP server; call Run to start those and block until shutdown.
func New(cfg *config.Config, addr, dbPath, version string) (*App, error) {
	// Backend keys double as identity signing keys so a backend can mint
	// signed user headers without extra secret distribution.
	runtimeCfg := &config.RuntimeConfig{BackendKeys: map[string]struct{}{}, SigningKeys: map[string]struct{}{}}
	for _, k := range cfg.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	if err := store.Open(dbPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", dbPath, err)
	}

	feed.SetDefaultPollInterval(cfg.Feed.PollInterval.Duration())

	dir := buildDirectory(cfg)
	dispatcher := buildDispatcher(cfg, dir)

	a := &App{
		cfg:        cfg,
		addr:       addr,
		dbPath:     dbPath,
		version:    version,
		dir:        dir,
		dispatcher: dispatcher,
		feed:       feed.New(dispatcher),
	}
	return a, nil
}

// Run starts the dispatcher, sweeper and HTTP server, and blocks until ctx
// is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	a.dispatcher.Start()

	cancel, err := sweeper.Start(ctx, a.cfg.Sweeper, a.dir)
	if err != nil {
		return err
	}
	a.sweeperCancel = cancel

	a.printBanner()

	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

// shutdown stops components in reverse dependency order: the listener first
// so no new work arrives, then the dispatcher so queued notifications drain,
// then the store.
func (a *App) shutdown() {
	if a.srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(sctx); err != nil {
			logger.Warn("http_shutdown_failed", "error", err)
		}
	}
	if a.sweeperCancel != nil {
		a.sweeperCancel()
	}
	a.dispatcher.Stop()
	if err := store.Close(); err != nil {
		logger.Warn("store_close_failed", "error", err)
	}
	logger.Info("shutdown_complete")
}

// buildDirectory seeds the mention directory from config. Empty config yields
// an empty but functional index.
func buildDirectory(cfg *config.Config) *directory.Index {
	users := make(directory.StaticUsers, 0, len(cfg.Directory.Users))
	for _, u := range cfg.Directory.Users {
		users = append(users, directory.User{ID: u.ID, Name: u.Name})
	}
	projects := make(directory.StaticProjects, 0, len(cfg.Directory.Projects))
	for _, p := range cfg.Directory.Projects {
		projects = append(projects, directory.Project{ID: p.ID, Title: p.Title})
	}
	return directory.New(users, projects)
}

// buildDispatcher wires the notification pipeline. Without a downstream URL
// deliveries go to the log sink, which keeps dev environments observable.
func buildDispatcher(cfg *config.Config, dir *directory.Index) *notify.Dispatcher {
	if n := cfg.Notify.MaxPooledBufferBytes.Int64(); n > 0 {
		notify.SetMaxPooledBuffer(int(n))
	}
	var sink notify.Sink
	if cfg.Notify.URL != "" {
		sink = notify.NewHTTPSink(cfg.Notify.URL, cfg.Notify.DeliverTimeout.Duration())
	} else {
		sink = notify.LogSink{}
	}
	return notify.New(notify.Config{
		Workers:        cfg.Notify.Workers,
		QueueCapacity:  cfg.Notify.QueueCapacity,
		DeliverTimeout: cfg.Notify.DeliverTimeout.Duration(),
	}, notify.DirectoryAccess{Dir: dir}, sink)
}
