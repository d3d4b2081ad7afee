package models

import "github.com/nomdev/corbo/internal/apidate"

// Story is a journal entry captured by the user.
type Story struct {
	ID               int64        `json:"id"`
	Content          string       `json:"content"`
	UserAccountID    int64        `json:"userAccountId"`
	CreatedTime      apidate.Time `json:"createdTime"`
	LastModifiedTime apidate.Time `json:"lastModifiedTime"`
}

// Location is where a story was captured.
type Location struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Geocode *string `json:"geocode,omitempty"`
}

// StoryWithEntities is a story together with the entities extracted from it.
type StoryWithEntities struct {
	Story      *Story    `json:"story,omitempty"`
	EntityList []Entity  `json:"entityList,omitempty"`
	Location   *Location `json:"location,omitempty"`
}

// ID returns the story id, or -1 when the story is missing.
func (s StoryWithEntities) ID() int64 {
	if s.Story == nil {
		return -1
	}
	return s.Story.ID
}
