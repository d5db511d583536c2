package models

// AppSettings is the single local settings row. SyncEnabled gates whether
// project-scoped realtime sync starts at all; ConflictResolution selects
// the resolver policy ("local", "remote" or "manual").
type AppSettings struct {
	Theme              string `json:"theme"`
	AutoSave           bool   `json:"autoSave"`
	AutoSaveIntervalMs int    `json:"autoSaveInterval"`
	SyncEnabled        bool   `json:"syncEnabled"`
	ConflictResolution string `json:"conflictResolution"`
	UpdatedAt          int64  `json:"updatedAt"`
}

// DefaultSettings mirrors the values a fresh install starts with.
func DefaultSettings(now int64) AppSettings {
	return AppSettings{
		Theme:              "auto",
		AutoSave:           true,
		AutoSaveIntervalMs: 30000,
		SyncEnabled:        true,
		ConflictResolution: "manual",
		UpdatedAt:          now,
	}
}
