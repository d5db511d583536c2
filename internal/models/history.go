package models

import "encoding/json"

// History is a local-only snapshot of an entity taken on create/update.
// It never crosses the sync boundary but is removed by the project delete
// cascade.
type History struct {
	ID         string          `json:"id"`
	EntityType Collection      `json:"entityType"`
	EntityID   string          `json:"entityId"`
	ProjectID  string          `json:"projectId"`
	Snapshot   json.RawMessage `json:"snapshot"`
	ChangeType string          `json:"changeType"` // "create", "update" or "delete"
	CreatedAt  int64           `json:"createdAt"`
}
