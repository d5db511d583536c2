package models

// ProgressLog accumulates one day's writing activity for a project.
// Local-only; keyed by (projectId, date).
type ProgressLog struct {
	ID                string   `json:"id"`
	ProjectID         string   `json:"projectId"`
	Date              string   `json:"date"` // YYYY-MM-DD
	CharactersWritten int      `json:"charactersWritten"`
	TimeSpentMinutes  int      `json:"timeSpent"`
	SceneIDs          []string `json:"sceneIds"`
	CreatedAt         int64    `json:"createdAt"`
}

// ProgressStats summarizes recent activity for one project.
type ProgressStats struct {
	TotalCharacters int
	AverageDaily    float64
	MaxDaily        int
	ConsecutiveDays int
}
