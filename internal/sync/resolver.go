package sync

import (
	"sync"

	"github.com/tmorishita/penflow/internal/models"
)

// Policy names a conflict-resolution strategy.
type Policy string

const (
	// PolicyLocal always keeps the local copy.
	PolicyLocal Policy = "local"
	// PolicyRemote always adopts the remote copy.
	PolicyRemote Policy = "remote"
	// PolicyManual defers to the user; neither side is applied until the
	// conflict is explicitly resolved.
	PolicyManual Policy = "manual"
)

// Side identifies the winning copy of a resolved conflict.
type Side string

const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
)

// Resolution is the outcome of resolving one detected conflict.
type Resolution struct {
	// Winner is valid only when Pending is false.
	Winner Side
	// Pending means the conflict was parked for manual resolution and
	// neither side may be applied yet.
	Pending bool
}

// PendingConflict holds both sides of a divergence awaiting a user
// decision. Fields lists the top-level JSON keys that differ.
type PendingConflict struct {
	Collection models.Collection `json:"collection"`
	ID         string            `json:"id"`
	Local      models.Record     `json:"local"`
	Remote     models.Record     `json:"remote"`
	Fields     []string          `json:"conflictFields"`
}

// PolicyFunc supplies the active policy per resolution, letting the
// orchestrator read it from the settings row without the resolver knowing
// about storage.
type PolicyFunc func() Policy

// Resolver applies the configured policy to detected conflicts and owns
// the pending-conflict list.
type Resolver struct {
	policy PolicyFunc

	mu      sync.Mutex
	pending []PendingConflict
}

// NewResolver builds a resolver. A nil policy function defaults to manual.
func NewResolver(policy PolicyFunc) *Resolver {
	if policy == nil {
		policy = func() Policy { return PolicyManual }
	}
	return &Resolver{policy: policy}
}

// Resolve decides a detected conflict between two copies of one record.
// Forced policies short-circuit to their side. The automatic path is
// last-write-wins on UpdatedAt: the local copy wins only when strictly
// newer, so timestamp ties go to remote. Manual policy records a pending
// conflict (at most one per record id) and reports Pending.
func (r *Resolver) Resolve(col models.Collection, local, remote models.Record) (Resolution, error) {
	switch r.policy() {
	case PolicyLocal:
		return Resolution{Winner: SideLocal}, nil
	case PolicyRemote:
		return Resolution{Winner: SideRemote}, nil
	case PolicyManual:
		fields, err := ConflictFields(local, remote)
		if err != nil {
			return Resolution{}, err
		}
		r.addPending(PendingConflict{
			Collection: col,
			ID:         local.RecordID(),
			Local:      local,
			Remote:     remote,
			Fields:     fields,
		})
		return Resolution{Pending: true}, nil
	}

	if local.LastUpdated() > remote.LastUpdated() {
		return Resolution{Winner: SideLocal}, nil
	}
	return Resolution{Winner: SideRemote}, nil
}

func (r *Resolver) addPending(pc PendingConflict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.pending {
		if existing.ID == pc.ID {
			r.pending[i] = pc
			return
		}
	}
	r.pending = append(r.pending, pc)
}

// Pending returns a snapshot of the unresolved conflicts.
func (r *Resolver) Pending() []PendingConflict {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PendingConflict, len(r.pending))
	copy(out, r.pending)
	return out
}

// IsPending reports whether the record has an unresolved conflict. Queue
// drains use it to hold back pushes that would clobber the user's eventual
// decision.
func (r *Resolver) IsPending(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pc := range r.pending {
		if pc.ID == id {
			return true
		}
	}
	return false
}

// Take removes and returns the pending conflict for id. The second return
// is false when none exists.
func (r *Resolver) Take(id string) (PendingConflict, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, pc := range r.pending {
		if pc.ID == id {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return pc, true
		}
	}
	return PendingConflict{}, false
}

// HasPending reports whether any conflicts await resolution.
func (r *Resolver) HasPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending) > 0
}
