// Package remote abstracts the cloud document store the sync engine talks
// to. Documents are opaque JSON; only the sync metadata embedded in them is
// interpreted, and only by the sync core, never here.
package remote

import (
	"context"
	"encoding/json"
)

// Document is one record as stored remotely. Data carries the full JSON
// body, metadata fields included.
type Document struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
}

// Event is a change notification delivered on a subscription. Deleted
// events carry no data.
type Event struct {
	Type     string   `json:"type"` // "changed" or "deleted"
	Document Document `json:"document"`
}

const (
	EventChanged = "changed"
	EventDeleted = "deleted"
)

// Query filters a List call. Zero values mean "no filter".
type Query struct {
	ProjectID    string
	UpdatedAfter int64
}

// Subscription is a live change feed for one collection.
type Subscription interface {
	// Events returns the channel events arrive on. It is closed after
	// Close, or when the feed shuts down with an error.
	Events() <-chan Event

	// Err reports why the events channel closed, nil on clean Close.
	Err() error

	// Close tears the feed down and releases its connection.
	Close() error
}

// Store is the remote document store used by the sync engine.
type Store interface {
	// Get fetches one document, or common.ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Put stores the document verbatim, replacing any previous body.
	Put(ctx context.Context, doc Document) error

	// Delete removes the document. Missing documents are not an error.
	Delete(ctx context.Context, collection, id string) error

	// List fetches documents from collection matching q.
	List(ctx context.Context, collection string, q Query) ([]Document, error)

	// Subscribe opens a change feed for collection, optionally scoped to
	// one project.
	Subscribe(ctx context.Context, collection, projectID string) (Subscription, error)
}
