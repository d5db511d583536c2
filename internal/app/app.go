// Package app wires the penflow data layer: local stores, the sync engine
// and the backup service, plus process lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tmorishita/penflow/internal/backup"
	"github.com/tmorishita/penflow/internal/config"
	"github.com/tmorishita/penflow/internal/logging"
	"github.com/tmorishita/penflow/internal/netx"
	"github.com/tmorishita/penflow/internal/remote"
	"github.com/tmorishita/penflow/internal/store"
	"github.com/tmorishita/penflow/internal/sync"
)

type App struct {
	config *config.Config
	logger logging.Logger
	stores *store.Stores

	Entities     *store.Entities
	Orchestrator *sync.Orchestrator
	Backup       *backup.Service
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	stores, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	resolver := sync.NewResolver(policyFromSettings(stores.Settings))

	var rs remote.Store
	var monitor sync.Connectivity
	if cfg.RemoteEndpoint != "" {
		rs = remote.NewClient(cfg.RemoteEndpoint, logger)
		monitor = netx.NewMonitor(cfg.RemoteEndpoint+"/healthz", cfg.OnlineCheckInterval, logger)
	}

	queue := sync.NewQueue(stores.Registry, rs, nil, resolver, cfg.SyncDebounce, logger)
	listener := sync.NewListener(stores.Registry, nil, resolver, logger)
	orch := sync.NewOrchestrator(sync.Config{
		Stores:           stores,
		Remote:           rs,
		Queue:            queue,
		Resolver:         resolver,
		Listener:         listener,
		Monitor:          monitor,
		FullSyncInterval: cfg.FullSyncInterval,
		Logger:           logger,
	})

	return &App{
		config:       cfg,
		logger:       logger,
		stores:       stores,
		Entities:     store.NewEntities(stores, queue, logger),
		Orchestrator: orch,
		Backup:       backup.NewService(stores, cfg, logger),
	}, nil
}

// policyFromSettings reads the resolution policy from the settings row on
// every conflict, so a settings change takes effect without a restart.
func policyFromSettings(settings *store.SettingsStore) sync.PolicyFunc {
	return func() sync.Policy {
		s, err := settings.Get(context.Background())
		if err != nil {
			return sync.PolicyManual
		}
		switch p := sync.Policy(s.ConflictResolution); p {
		case sync.PolicyLocal, sync.PolicyRemote, sync.PolicyManual:
			return p
		}
		return sync.PolicyManual
	}
}

func (a *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the sync engine and blocks until the context is cancelled or
// a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	a.logger.Info(ctx, "starting penflow",
		"database", a.config.DatabasePath, "remote", a.config.RemoteEndpoint)

	a.initSignalHandler(cancelFunc)

	if err := a.Orchestrator.Initialize(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	a.logger.Info(context.Background(), "shutting down")
	a.Orchestrator.Shutdown()
	return a.stores.DB.Close()
}

// Close releases resources without waiting for Run to finish. Intended for
// embedders that drive the lifecycle themselves.
func (a *App) Close() error {
	a.Orchestrator.Shutdown()
	return a.stores.DB.Close()
}
