package models

// PlotPosition is the card's coordinate on the plotting board.
type PlotPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Plot is a story-structure card, optionally linked to a scene or chapter.
type Plot struct {
	Meta
	Title           string       `json:"title"`
	Type            string       `json:"type"`   // "scene", "chapter" or "arc"
	Status          string       `json:"status"` // "idea", "planned", "written", "revised"
	Content         string       `json:"content"`
	LinkedSceneID   string       `json:"linkedSceneId,omitempty"`
	LinkedChapterID string       `json:"linkedChapterId,omitempty"`
	Position        PlotPosition `json:"position"`
	Color           string       `json:"color"`
	Order           int          `json:"order"`
}

type PlotCreateInput struct {
	ProjectID string
	Title     string
	Type      string
	Status    string
}
