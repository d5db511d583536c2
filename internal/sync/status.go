// Package sync implements the offline-first synchronization engine: a
// debounced change queue, conflict detection and resolution, realtime
// change-feed application and the orchestrator tying them to the
// connectivity monitor.
package sync

// Status is the engine's user-visible state.
type Status string

const (
	// StatusOffline means the remote is unreachable or not configured;
	// changes accumulate locally.
	StatusOffline Status = "offline"

	// StatusSyncing means a drain or reconciliation is in flight.
	StatusSyncing Status = "syncing"

	// StatusSynced means the last sync pass completed cleanly.
	StatusSynced Status = "synced"

	// StatusConflict means at least one manual conflict awaits resolution.
	StatusConflict Status = "conflict"

	// StatusError means the last sync pass failed; the queue holds the
	// unpushed changes for the next attempt.
	StatusError Status = "error"
)
