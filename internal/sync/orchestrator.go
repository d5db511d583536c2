package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tmorishita/penflow/internal/common"
	"github.com/tmorishita/penflow/internal/logging"
	"github.com/tmorishita/penflow/internal/models"
	"github.com/tmorishita/penflow/internal/netx"
	"github.com/tmorishita/penflow/internal/remote"
	"github.com/tmorishita/penflow/internal/store"
)

// Connectivity is the part of the netx monitor the orchestrator needs.
type Connectivity interface {
	Start(ctx context.Context)
	Stop()
	Online() bool
	OnTransition(fn netx.TransitionFunc)
}

// Config wires an Orchestrator. Remote may be nil for a purely local
// session; Monitor may be nil, which reads as always online.
type Config struct {
	Stores           *store.Stores
	Remote           remote.Store
	Queue            *Queue
	Resolver         *Resolver
	Listener         *Listener
	Monitor          Connectivity
	FullSyncInterval time.Duration
	Logger           logging.Logger
}

// Orchestrator owns the sync lifecycle: initialization, connectivity
// transitions, periodic re-drains, bulk reconciliation, the session-wide
// projects feed and the per-project scoped feeds, plus manual conflict
// bookkeeping.
type Orchestrator struct {
	stores   *store.Stores
	remote   remote.Store
	queue    *Queue
	resolver *Resolver
	listener *Listener
	monitor  Connectivity
	interval time.Duration
	logger   logging.Logger

	mu          sync.Mutex
	status      Status
	lastErr     string
	initialized bool
	reconciled  bool
	projectID   string
	projectSubs []remote.Subscription
	projectsSub remote.Subscription
	cancel      context.CancelFunc

	wg sync.WaitGroup
}

func NewOrchestrator(cfg Config) *Orchestrator {
	interval := cfg.FullSyncInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Orchestrator{
		stores:   cfg.Stores,
		remote:   cfg.Remote,
		queue:    cfg.Queue,
		resolver: cfg.Resolver,
		listener: cfg.Listener,
		monitor:  cfg.Monitor,
		interval: interval,
		logger:   cfg.Logger,
		status:   StatusOffline,
	}
}

// Status returns the engine's current user-visible state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// LastError returns the message behind an error status, empty otherwise.
func (o *Orchestrator) LastError() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// PendingConflicts lists the conflicts awaiting a user decision.
func (o *Orchestrator) PendingConflicts() []PendingConflict {
	return o.resolver.Pending()
}

func (o *Orchestrator) setStatus(s Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = s
	if s != StatusError {
		o.lastErr = ""
	}
}

func (o *Orchestrator) setError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = StatusError
	o.lastErr = err.Error()
}

// settled computes the post-operation status: conflict while any manual
// conflict is pending, synced otherwise.
func (o *Orchestrator) settled() Status {
	if o.resolver.HasPending() {
		return StatusConflict
	}
	return StatusSynced
}

func (o *Orchestrator) online() bool {
	return o.monitor == nil || o.monitor.Online()
}

// needsReconcile reports whether the session still owes its one bulk
// reconciliation pass.
func (o *Orchestrator) needsReconcile() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.reconciled
}

// Initialize starts the engine. Idempotent. Without a configured remote it
// marks the session offline and starts nothing. Otherwise it starts the
// connectivity monitor, the periodic re-drain ticker, one bulk
// reconciliation pass, and the session-wide projects feed.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.mu.Lock()
	if o.initialized {
		o.mu.Unlock()
		return nil
	}
	o.initialized = true
	o.reconciled = false
	if o.remote == nil {
		o.status = StatusOffline
		o.mu.Unlock()
		o.logger.Info(ctx, "sync disabled: no remote configured")
		return nil
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancel = cancel
	o.mu.Unlock()

	o.queue.OnSettle(func() { o.Drain(runCtx) })

	if o.monitor != nil {
		o.monitor.OnTransition(func(ctx context.Context, online bool) {
			if online {
				o.setStatus(o.settled())
				// a session that started offline still owes its bulk pass
				if o.needsReconcile() {
					if err := o.Reconcile(runCtx); err != nil {
						o.logger.Warn(ctx, "reconciliation failed", "error", err)
					}
				}
				if o.queue.Len() > 0 {
					o.Drain(runCtx)
				}
			} else {
				o.setStatus(StatusOffline)
			}
		})
		o.monitor.Start(runCtx)
	}

	if o.online() {
		o.setStatus(o.settled())
		if o.needsReconcile() {
			if err := o.Reconcile(runCtx); err != nil {
				o.logger.Warn(ctx, "initial reconciliation failed", "error", err)
			}
		}
	} else {
		o.setStatus(StatusOffline)
	}

	if err := o.watchProjects(runCtx); err != nil {
		o.logger.Warn(ctx, "projects feed unavailable", "error", err)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if o.online() && o.queue.Len() > 0 {
					o.Drain(runCtx)
				}
			}
		}
	}()

	o.logger.Info(ctx, "sync engine initialized", "fullSyncInterval", o.interval)
	return nil
}

// Drain flushes the pending change queue and folds the outcome into the
// status machine. Safe to call when the queue is empty.
func (o *Orchestrator) Drain(ctx context.Context) {
	if o.remote == nil || !o.online() {
		return
	}
	o.setStatus(StatusSyncing)
	if err := o.queue.Drain(ctx); err != nil {
		o.logger.Error(ctx, "drain failed, batch requeued", "error", err)
		o.setError(err)
		return
	}
	o.setStatus(o.settled())
}

// Reconcile performs one differential bulk download: every collection in
// parents-first order, filtered by the persisted last-sync watermark, each
// record merged through the listener.
func (o *Orchestrator) Reconcile(ctx context.Context) error {
	if o.remote == nil {
		return nil
	}
	o.setStatus(StatusSyncing)
	start := time.Now().UnixMilli()

	watermark, err := o.stores.Metadata.LastSyncTime(ctx)
	if err != nil {
		o.setError(err)
		return err
	}

	applyFailed := false
	for _, col := range models.SyncOrder() {
		docs, err := o.remote.List(ctx, string(col), remote.Query{UpdatedAfter: watermark})
		if err != nil {
			o.setError(err)
			return fmt.Errorf("reconcile %s: %w", col, err)
		}
		if err := o.listener.Apply(ctx, col, docs); err != nil {
			applyFailed = true
			o.logger.Warn(ctx, "reconciliation skipped records", "collection", col, "error", err)
		}
		o.logger.Debug(ctx, "reconciled collection", "collection", col, "records", len(docs))
	}

	if applyFailed {
		// keep the old watermark so the skipped records are listed again
		// on the next pass instead of falling out of the differential
		o.logger.Warn(ctx, "watermark not advanced: some records were not applied")
		o.setStatus(o.settled())
		return nil
	}

	if err := o.stores.Metadata.SetLastSyncTime(ctx, start); err != nil {
		o.setError(err)
		return err
	}
	o.mu.Lock()
	o.reconciled = true
	o.mu.Unlock()
	o.setStatus(o.settled())
	return nil
}

// watchProjects starts the unscoped projects feed for the session.
func (o *Orchestrator) watchProjects(ctx context.Context) error {
	sub, err := o.remote.Subscribe(ctx, string(models.CollectionProjects), "")
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.projectsSub = sub
	o.mu.Unlock()
	o.pump(ctx, models.CollectionProjects, sub)
	return nil
}

// StartProjectSync opens realtime feeds for one project's scoped
// collections. Gated on the settings row's sync flag and on a configured
// remote; any previous project's feeds are torn down first.
func (o *Orchestrator) StartProjectSync(ctx context.Context, projectID string) error {
	if o.remote == nil {
		return common.ErrRemoteUnavailable
	}
	settings, err := o.stores.Settings.Get(ctx)
	if err != nil {
		return err
	}
	if !settings.SyncEnabled {
		o.logger.Info(ctx, "project sync disabled by settings", "projectId", projectID)
		return nil
	}

	o.StopProjectSync()

	o.mu.Lock()
	runCtx := ctx
	if o.cancel != nil {
		// subscriptions outlive the caller; they stop on Shutdown
		runCtx = context.WithoutCancel(ctx)
	}
	o.mu.Unlock()

	var subs []remote.Subscription
	for _, col := range models.ProjectScoped() {
		sub, err := o.remote.Subscribe(runCtx, string(col), projectID)
		if err != nil {
			for _, s := range subs {
				_ = s.Close()
			}
			return fmt.Errorf("subscribe %s: %w", col, err)
		}
		subs = append(subs, sub)
		o.pump(runCtx, col, sub)
	}

	o.mu.Lock()
	o.projectID = projectID
	o.projectSubs = subs
	o.mu.Unlock()

	o.logger.Info(ctx, "project sync started", "projectId", projectID)
	return nil
}

// StopProjectSync tears down the scoped feeds. Safe when none are active.
func (o *Orchestrator) StopProjectSync() {
	o.mu.Lock()
	subs := o.projectSubs
	o.projectSubs = nil
	o.projectID = ""
	o.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
}

// ActiveProject returns the project whose scoped feeds are running, empty
// when none.
func (o *Orchestrator) ActiveProject() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.projectID
}

// pump applies feed events until the subscription closes.
func (o *Orchestrator) pump(ctx context.Context, col models.Collection, sub remote.Subscription) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for ev := range sub.Events() {
			if err := o.listener.ApplyEvent(ctx, col, ev); err != nil {
				o.logger.Warn(ctx, "feed event not applied", "collection", col, "error", err)
			}
			if o.resolver.HasPending() {
				o.setStatus(StatusConflict)
			}
		}
		if err := sub.Err(); err != nil && ctx.Err() == nil {
			o.setError(err)
		}
	}()
}

// ResolveManualConflict applies the user's decision for one pending
// conflict. Side remote writes the remote payload into the local store;
// side local keeps the local copy untouched. Resolving the last pending
// conflict returns the status to synced.
func (o *Orchestrator) ResolveManualConflict(ctx context.Context, id string, side Side) error {
	pc, ok := o.resolver.Take(id)
	if !ok {
		return fmt.Errorf("conflict %s: %w", id, common.ErrNotFound)
	}

	if side == SideRemote {
		s, err := o.registryFor(pc.Collection)
		if err != nil {
			return err
		}
		if err := s.Put(ctx, pc.Remote); err != nil {
			// decision not applied: put the conflict back
			o.resolver.addPending(pc)
			return err
		}
	}

	o.setStatus(o.settled())
	o.logger.Info(ctx, "conflict resolved", "collection", pc.Collection, "id", id, "side", side)
	return nil
}

func (o *Orchestrator) registryFor(col models.Collection) (store.RecordStore, error) {
	return o.stores.Registry.Lookup(col)
}

// Shutdown stops timers, feeds and the monitor, and clears the
// initialized flag so a later Initialize starts fresh.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	if !o.initialized {
		o.mu.Unlock()
		return
	}
	o.initialized = false
	cancel := o.cancel
	o.cancel = nil
	projectsSub := o.projectsSub
	o.projectsSub = nil
	o.mu.Unlock()

	o.queue.Stop()
	o.StopProjectSync()
	if projectsSub != nil {
		_ = projectsSub.Close()
	}
	if o.monitor != nil {
		o.monitor.Stop()
	}
	if cancel != nil {
		cancel()
	}
	o.wg.Wait()
}
