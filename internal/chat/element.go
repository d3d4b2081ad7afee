package chat

import (
	"github.com/google/uuid"

	"github.com/nomdev/corbo/internal/models"
)

// Kind is the type of a transcript element.
type Kind string

const (
	KindAssistantMessage Kind = "assistantMessage"
	KindUserTranscript   Kind = "userTranscript"
	// KindResultList keeps its historical wire name so cached transcripts
	// stay readable.
	KindResultList Kind = "storyList"
)

// ResultList is the payload of a story search result element.
type ResultList struct {
	ID      uuid.UUID                  `json:"id"`
	Stories []models.StoryWithEntities `json:"storyList"`
	Prompt  string                     `json:"prompt"`
}

// Element is one entry of a conversation transcript.
type Element struct {
	ID         uuid.UUID       `json:"id"`
	Kind       Kind            `json:"type"`
	Text       *string         `json:"text,omitempty"`
	Results    *ResultList     `json:"storyListResponseData,omitempty"`
	Entities   []models.Entity `json:"entityList,omitempty"`
	QuestionID *int64          `json:"questionId,omitempty"`
	Input      *string         `json:"input,omitempty"`
}

// AssistantMessage creates an assistant element with fixed text.
func AssistantMessage(text string) Element {
	return Element{ID: uuid.New(), Kind: KindAssistantMessage, Text: &text}
}

// UserTranscript creates an element holding what the user said or typed.
// questionID may be nil.
func UserTranscript(text string, questionID *int64) Element {
	return Element{ID: uuid.New(), Kind: KindUserTranscript, Text: &text, QuestionID: questionID}
}

// Answer creates a completed assistant answer.
func Answer(text string, entities []models.Entity, questionID *int64, input string) Element {
	return Element{
		ID:         uuid.New(),
		Kind:       KindAssistantMessage,
		Text:       &text,
		Entities:   entities,
		QuestionID: questionID,
		Input:      &input,
	}
}

// Results creates a story search result element.
func Results(stories []models.StoryWithEntities, prompt string, input *string) Element {
	return Element{
		ID:      uuid.New(),
		Kind:    KindResultList,
		Results: &ResultList{ID: uuid.New(), Stories: stories, Prompt: prompt},
		Input:   input,
	}
}

// TextOr returns the element text or fallback when it has none.
func (e Element) TextOr(fallback string) string {
	if e.Text == nil {
		return fallback
	}
	return *e.Text
}
