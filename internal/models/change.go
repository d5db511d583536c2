package models

// ChangeAction classifies a local mutation intent awaiting remote
// propagation.
type ChangeAction string

const (
	ChangeCreate ChangeAction = "create"
	ChangeUpdate ChangeAction = "update"
	ChangeDelete ChangeAction = "delete"
)
