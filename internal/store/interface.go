package store

import (
	"context"
	"fmt"

	"github.com/tmorishita/penflow/internal/common"
	"github.com/tmorishita/penflow/internal/dbx"
	"github.com/tmorishita/penflow/internal/models"
)

// RecordStore describes CRUD and query operations for one synced collection.
// Implementations are backed by the local SQLite database.
type RecordStore interface {
	// Collection names the store's collection.
	Collection() models.Collection

	// Get returns a record by id, or common.ErrNotFound.
	Get(ctx context.Context, id string) (models.Record, error)

	// List returns every record in the collection, newest first.
	List(ctx context.Context) ([]models.Record, error)

	// ListByProject returns the records owned by one project.
	ListByProject(ctx context.Context, projectID string) ([]models.Record, error)

	// Insert adds a new record and fails with common.ErrAlreadyExists when
	// the id is taken. Used when materializing remote records so a
	// duplicate-key race surfaces instead of silently overwriting.
	Insert(ctx context.Context, rec models.Record) error

	// Put upserts the record verbatim, metadata included.
	Put(ctx context.Context, rec models.Record) error

	// Delete removes a record by id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// Decode unmarshals a JSON document into the collection's record type.
	Decode(data []byte) (models.Record, error)

	// Bind returns a copy of the store bound to another database handle,
	// typically a transaction.
	Bind(db dbx.DBTX) RecordStore
}

// ChangeSink receives local mutation intents from the entity service. The
// sync engine's change queue implements it; a nil sink disables outbound
// propagation.
type ChangeSink interface {
	Enqueue(col models.Collection, id string, action models.ChangeAction)
}

// Registry maps collection names to their record stores, collapsing
// per-type dispatch into a table lookup.
type Registry struct {
	stores map[models.Collection]RecordStore
}

func NewRegistry(stores ...RecordStore) *Registry {
	m := make(map[models.Collection]RecordStore, len(stores))
	for _, s := range stores {
		m[s.Collection()] = s
	}
	return &Registry{stores: m}
}

// Lookup returns the store for col, or common.ErrUnknownCollection.
func (r *Registry) Lookup(col models.Collection) (RecordStore, error) {
	s, ok := r.stores[col]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownCollection, col)
	}
	return s, nil
}

// Decode unmarshals a remote document into col's record type.
func (r *Registry) Decode(col models.Collection, data []byte) (models.Record, error) {
	s, err := r.Lookup(col)
	if err != nil {
		return nil, err
	}
	return s.Decode(data)
}

// Bind returns a registry whose stores all run on the given handle. Used
// to apply multi-collection writes inside one transaction.
func (r *Registry) Bind(db dbx.DBTX) *Registry {
	bound := make(map[models.Collection]RecordStore, len(r.stores))
	for col, s := range r.stores {
		bound[col] = s.Bind(db)
	}
	return &Registry{stores: bound}
}
