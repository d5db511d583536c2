package models

// Attachment references an external asset on a worldbuilding entry.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Worldbuilding is a lore entry: a term, location, timeline or free note.
type Worldbuilding struct {
	Meta
	Category    string       `json:"category"` // "term", "timeline", "location", "other"
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	Tags        []string     `json:"tags"`
	Attachments []Attachment `json:"attachments"`
}

type WorldbuildingCreateInput struct {
	ProjectID string
	Category  string
	Title     string
	Content   string
}
