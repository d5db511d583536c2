package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tmorishita/penflow/internal/common"
	"github.com/tmorishita/penflow/internal/logging"
	"github.com/tmorishita/penflow/internal/models"
	"github.com/tmorishita/penflow/internal/remote"
	"github.com/tmorishita/penflow/internal/store"
)

// Change is one queued local mutation intent.
type Change struct {
	Collection models.Collection
	ID         string
	Action     models.ChangeAction
}

// Queue buffers local mutation intents and drains them to the remote
// store. Intents coalesce to at most one entry per (collection, id): a
// later action overwrites the earlier entry's action in place, so create
// followed by update drains as update, and anything followed by delete
// drains as a single delete.
//
// Enqueue arms a debounce timer; the settle callback fires once edits go
// quiet so continuous typing produces one drain, not one per keystroke.
type Queue struct {
	registry *store.Registry
	remote   remote.Store
	detect   DetectFunc
	resolver *Resolver
	logger   logging.Logger

	debounce time.Duration
	onSettle func()

	mu      sync.Mutex
	changes []Change
	timer   *time.Timer
}

var _ store.ChangeSink = (*Queue)(nil)

// NewQueue builds a queue. detect may be nil to use DetectDivergence.
func NewQueue(registry *store.Registry, rs remote.Store, detect DetectFunc, resolver *Resolver, debounce time.Duration, logger logging.Logger) *Queue {
	if detect == nil {
		detect = DetectDivergence
	}
	return &Queue{
		registry: registry,
		remote:   rs,
		detect:   detect,
		resolver: resolver,
		debounce: debounce,
		logger:   logger,
	}
}

// OnSettle registers the callback fired when the debounce window closes
// with changes pending. Must be set before the first Enqueue.
func (q *Queue) OnSettle(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onSettle = fn
}

// Enqueue records a mutation intent and resets the debounce timer.
func (q *Queue) Enqueue(col models.Collection, id string, action models.ChangeAction) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.coalesceLocked(Change{Collection: col, ID: id, Action: action})

	if q.onSettle == nil {
		return
	}
	if q.timer != nil {
		q.timer.Stop()
	}
	q.timer = time.AfterFunc(q.debounce, q.onSettle)
}

func (q *Queue) coalesceLocked(c Change) {
	for i := range q.changes {
		if q.changes[i].Collection == c.Collection && q.changes[i].ID == c.ID {
			q.changes[i].Action = c.Action
			return
		}
	}
	q.changes = append(q.changes, c)
}

// Len reports the number of pending changes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.changes)
}

// Stop cancels any armed debounce timer.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

// snapshot atomically takes the whole pending batch, leaving the queue
// empty. Changes enqueued during the drain land in the fresh slice.
func (q *Queue) snapshot() []Change {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.changes
	q.changes = nil
	return batch
}

// requeue folds undrained changes back in. Entries enqueued meanwhile win:
// their action is newer than the retried one.
func (q *Queue) requeue(batch []Change) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range batch {
		exists := false
		for i := range q.changes {
			if q.changes[i].Collection == c.Collection && q.changes[i].ID == c.ID {
				exists = true
				break
			}
		}
		if !exists {
			q.changes = append(q.changes, c)
		}
	}
}

// Drain pushes the pending batch to the remote store in enqueue order.
// On any push error the remaining batch (current change included) is
// requeued for the next trigger and the error returned. Changes whose
// record has a pending manual conflict are held back without failing the
// drain.
func (q *Queue) Drain(ctx context.Context) error {
	batch := q.snapshot()
	if len(batch) == 0 {
		return nil
	}
	q.logger.Debug(ctx, "draining changes", "count", len(batch))

	var held []Change
	for i, c := range batch {
		if c.Action != models.ChangeDelete && q.resolver.IsPending(c.ID) {
			q.logger.Debug(ctx, "holding change with pending conflict", "collection", c.Collection, "id", c.ID)
			held = append(held, c)
			continue
		}
		if err := q.push(ctx, c); err != nil {
			q.requeue(batch[i:])
			q.requeue(held)
			return fmt.Errorf("drain %s/%s: %w", c.Collection, c.ID, err)
		}
	}
	q.requeue(held)
	return nil
}

func (q *Queue) push(ctx context.Context, c Change) error {
	if c.Action == models.ChangeDelete {
		return q.remote.Delete(ctx, string(c.Collection), c.ID)
	}

	s, err := q.registry.Lookup(c.Collection)
	if err != nil {
		return err
	}

	// Read fresh: an interleaved local edit must not be clobbered by a
	// stale snapshot.
	local, err := s.Get(ctx, c.ID)
	if errors.Is(err, common.ErrNotFound) {
		q.logger.Warn(ctx, "queued record vanished before drain", "collection", c.Collection, "id", c.ID)
		return nil
	}
	if err != nil {
		return err
	}

	doc, err := q.remote.Get(ctx, string(c.Collection), c.ID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		// first write
		return q.upload(ctx, s, c, local)
	case err != nil:
		return err
	}

	theirs, err := s.Decode(doc.Data)
	if err != nil {
		return err
	}

	if q.detect(local, theirs) {
		res, err := q.resolver.Resolve(c.Collection, local, theirs)
		if err != nil {
			return err
		}
		if res.Pending {
			q.requeue([]Change{c})
			return nil
		}
		if res.Winner == SideRemote {
			// adopt remote verbatim; nothing to upload
			return s.Put(ctx, theirs)
		}
		return q.upload(ctx, s, c, local)
	}

	if theirs.LastUpdated() > local.LastUpdated() {
		// remote moved ahead without forking; adopt it rather than
		// uploading stale state over it
		return s.Put(ctx, theirs)
	}
	if local.RecordVersion() == theirs.RecordVersion() && local.LastUpdated() == theirs.LastUpdated() {
		// already in sync; a re-drain must not produce a second write
		return nil
	}
	return q.upload(ctx, s, c, local)
}

func (q *Queue) upload(ctx context.Context, s store.RecordStore, c Change, rec models.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	err = q.remote.Put(ctx, remote.Document{Collection: string(c.Collection), ID: c.ID, Data: data})
	if err != nil {
		return err
	}
	rec.MarkSynced(time.Now().UnixMilli())
	return s.Put(ctx, rec)
}
