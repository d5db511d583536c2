package models

// Chapter groups scenes inside a project.
type Chapter struct {
	Meta
	Title    string `json:"title"`
	Order    int    `json:"order"`
	Synopsis string `json:"synopsis"`
}

type ChapterCreateInput struct {
	ProjectID string
	Title     string
	Synopsis  string
}
