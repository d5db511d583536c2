package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmorishita/penflow/internal/common"
	"github.com/tmorishita/penflow/internal/logging"
	"github.com/tmorishita/penflow/internal/models"
	"github.com/tmorishita/penflow/internal/remote"
	"github.com/tmorishita/penflow/internal/store"
)

// Listener folds remote change batches into the local store. It is
// stateless; the orchestrator owns the subscriptions feeding it.
type Listener struct {
	registry *store.Registry
	detect   DetectFunc
	resolver *Resolver
	logger   logging.Logger
}

func NewListener(registry *store.Registry, detect DetectFunc, resolver *Resolver, logger logging.Logger) *Listener {
	if detect == nil {
		detect = DetectDivergence
	}
	return &Listener{registry: registry, detect: detect, resolver: resolver, logger: logger}
}

// Apply folds one batch of remote documents into col's local store. For
// each document: absent locally means insert verbatim, divergence goes
// through the resolver, a strictly newer remote copy is adopted, anything
// else is a no-op. A failing record is logged and skipped so one bad
// document cannot block the rest of the batch; the joined errors are
// returned for observability.
func (l *Listener) Apply(ctx context.Context, col models.Collection, docs []remote.Document) error {
	s, err := l.registry.Lookup(col)
	if err != nil {
		return err
	}

	var errs []error
	for _, doc := range docs {
		if err := l.applyOne(ctx, s, col, doc); err != nil {
			l.logger.Warn(ctx, "failed to apply remote record",
				"collection", col, "id", doc.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s/%s: %w", col, doc.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (l *Listener) applyOne(ctx context.Context, s store.RecordStore, col models.Collection, doc remote.Document) error {
	theirs, err := s.Decode(doc.Data)
	if err != nil {
		return err
	}

	local, err := s.Get(ctx, theirs.RecordID())
	if errors.Is(err, common.ErrNotFound) {
		// first sight of this record: materialize it verbatim, keeping the
		// remote id, version and timestamps
		err := s.Insert(ctx, theirs)
		if errors.Is(err, common.ErrAlreadyExists) {
			// lost a race with another writer; the next event wins
			l.logger.Debug(ctx, "remote record appeared concurrently", "collection", col, "id", theirs.RecordID())
			return nil
		}
		return err
	}
	if err != nil {
		return err
	}

	if l.detect(local, theirs) {
		res, err := l.resolver.Resolve(col, local, theirs)
		if err != nil {
			return err
		}
		if res.Pending || res.Winner == SideLocal {
			return nil
		}
		return s.Put(ctx, theirs)
	}

	if theirs.LastUpdated() > local.LastUpdated() {
		// pure forward propagation: remote is a strict descendant
		return s.Put(ctx, theirs)
	}
	return nil
}

// ApplyEvent folds one change-feed event. Deleted events remove the local
// copy; changed events go through the same merge as Apply.
func (l *Listener) ApplyEvent(ctx context.Context, col models.Collection, ev remote.Event) error {
	if ev.Type == remote.EventDeleted {
		s, err := l.registry.Lookup(col)
		if err != nil {
			return err
		}
		return s.Delete(ctx, ev.Document.ID)
	}
	return l.Apply(ctx, col, []remote.Document{ev.Document})
}
