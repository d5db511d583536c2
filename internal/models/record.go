// Package models defines the persisted record types of the penflow data
// layer and the sync metadata they share.
package models

// Meta carries the sync bookkeeping fields embedded in every syncable
// record. The JSON field names form the wire shape shared with the remote
// store, so they must not change.
type Meta struct {
	// ID is a globally unique identifier, assigned at creation, immutable.
	// It is the join key between the local and remote stores.
	ID string `json:"id"`

	// ProjectID is the owning project's id. Empty only on Project records.
	ProjectID string `json:"projectId,omitempty"`

	// CreatedAt is the creation time in milliseconds since epoch.
	CreatedAt int64 `json:"createdAt"`

	// UpdatedAt is set on every mutation; the primary "which side is
	// newer" signal.
	UpdatedAt int64 `json:"updatedAt"`

	// SyncedAt is the time of the last successful remote acknowledgment.
	// Advisory only; never part of conflict arithmetic.
	SyncedAt int64 `json:"syncedAt,omitempty"`

	// Version increments by exactly one on every observable local write
	// (create = 1). The remote side's value is data carried with the
	// record and compared, never adopted as a local counter.
	Version int64 `json:"_version"`
}

// Record is the collection-agnostic view the sync core operates on.
type Record interface {
	RecordID() string
	ProjectRef() string
	LastUpdated() int64
	RecordVersion() int64

	// Touch bumps UpdatedAt and Version for a local mutation.
	Touch(now int64)
	// MarkSynced records the remote acknowledgment time.
	MarkSynced(ts int64)
}

func (m *Meta) RecordID() string     { return m.ID }
func (m *Meta) ProjectRef() string   { return m.ProjectID }
func (m *Meta) LastUpdated() int64   { return m.UpdatedAt }
func (m *Meta) RecordVersion() int64 { return m.Version }

func (m *Meta) Touch(now int64) {
	m.UpdatedAt = now
	m.Version++
}

func (m *Meta) MarkSynced(ts int64) { m.SyncedAt = ts }

// NewMeta returns metadata for a freshly created record.
func NewMeta(id, projectID string, now int64) Meta {
	return Meta{
		ID:        id,
		ProjectID: projectID,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}
