// Package models defines the wire types shared by the Corbo client packages.
package models

import (
	"encoding/json"
	"fmt"
)

// EntityType classifies a named entity found in an answer or story.
type EntityType string

// Known entity types. Any other value is rejected on decode.
const (
	EntityPerson       EntityType = "person"
	EntityPlace        EntityType = "place"
	EntityOrganization EntityType = "organization"
)

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityPerson, EntityPlace, EntityOrganization:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown entity types so a malformed frame fails as a whole.
func (t *EntityType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !EntityType(s).Valid() {
		return fmt.Errorf("unknown entity type %q", s)
	}
	*t = EntityType(s)
	return nil
}

// Entity is a word in an answer or story linked to a person, place or organization.
type Entity struct {
	Name       *string     `json:"name,omitempty"`
	Type       *EntityType `json:"type,omitempty"`
	ExternalID *int64      `json:"externalId,omitempty"`
}

// AnswerChunk is one decoded frame of a streamed answer. The same shape is
// stored as the output of question interactions.
type AnswerChunk struct {
	Data       *string  `json:"data"`
	QuestionID *int64   `json:"questionId"`
	SessionID  *int64   `json:"sessionId"`
	EntityList []Entity `json:"entityList"`
}
