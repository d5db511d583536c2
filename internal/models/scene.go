package models

// Scene is the unit of prose. Content is opaque to the sync core; the
// CharacterCount is recomputed locally whenever content changes.
type Scene struct {
	Meta
	ChapterID      string   `json:"chapterId"`
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Order          int      `json:"order"`
	CharacterCount int      `json:"characterCount"`
	Tags           []string `json:"tags"`
}

type SceneCreateInput struct {
	ProjectID string
	ChapterID string
	Title     string
	Content   string
}
