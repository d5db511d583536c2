package models

// ProjectStatus tracks where a manuscript is in its life.
type ProjectStatus string

const (
	ProjectDraft     ProjectStatus = "draft"
	ProjectWriting   ProjectStatus = "writing"
	ProjectCompleted ProjectStatus = "completed"
)

// WritingGoal is a per-project word target.
type WritingGoal struct {
	Type   string `json:"type"` // "daily" or "total"
	Target int    `json:"target"`
}

// ProjectSettings holds per-project editor preferences carried with the
// project record.
type ProjectSettings struct {
	WritingMode string      `json:"writingMode"` // "vertical" or "horizontal"
	FontSize    int         `json:"fontSize"`
	Theme       string      `json:"theme"`
	Goal        WritingGoal `json:"goal"`
}

// Project is the root record; all other collections hang off its id.
type Project struct {
	Meta
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      ProjectStatus   `json:"status"`
	Settings    ProjectSettings `json:"settings"`
}

// ProjectCreateInput carries the caller-supplied fields for a new project.
type ProjectCreateInput struct {
	Title       string
	Description string
}
