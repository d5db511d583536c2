package models

// CharacterRelationship links two characters within a project.
type CharacterRelationship struct {
	CharacterID string `json:"characterId"`
	Relation    string `json:"relation"`
}

// Character is a cast entry scoped to one project.
type Character struct {
	Meta
	Name          string                  `json:"name"`
	Role          string                  `json:"role"`
	Age           int                     `json:"age,omitempty"`
	Gender        string                  `json:"gender,omitempty"`
	Appearance    string                  `json:"appearance"`
	Personality   string                  `json:"personality"`
	Background    string                  `json:"background"`
	Relationships []CharacterRelationship `json:"relationships"`
	ImageURL      string                  `json:"imageUrl,omitempty"`
}

type CharacterCreateInput struct {
	ProjectID string
	Name      string
	Role      string
}
