package models

import (
	"encoding/json"
	"fmt"

	"github.com/nomdev/corbo/internal/apidate"
)

// Intent is the label the classifier assigns to free text, also recorded by
// the server as the type of each interaction.
type Intent string

const (
	IntentAddStory           Intent = "addStory"
	IntentAskQuestion        Intent = "askQuestion"
	IntentSearchYourContacts Intent = "searchYourContacts"
	IntentSearchYourStories  Intent = "searchYourStories"
	IntentUnknown            Intent = "unknown"
)

// Intents lists every label in a stable order.
var Intents = []Intent{
	IntentAddStory,
	IntentAskQuestion,
	IntentSearchYourContacts,
	IntentSearchYourStories,
	IntentUnknown,
}

// Valid reports whether i is a known label.
func (i Intent) Valid() bool {
	for _, known := range Intents {
		if i == known {
			return true
		}
	}
	return false
}

// UnmarshalJSON rejects unknown labels.
func (i *Intent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !Intent(s).Valid() {
		return fmt.Errorf("unknown interaction type %q", s)
	}
	*i = Intent(s)
	return nil
}

// StoryListOutput is the output of a story search interaction.
type StoryListOutput struct {
	SessionID int64               `json:"sessionId"`
	StoryList []StoryWithEntities `json:"storyList"`
}

// Interaction is one exchange recorded in a session. Which output field is
// set depends on Type: question-like interactions carry Answer, story
// searches carry Stories, and story captures carry neither.
type Interaction struct {
	ID          int64
	SessionID   int64
	Input       string
	Type        *Intent
	CreatedTime apidate.Time
	Answer      *AnswerChunk
	Stories     *StoryListOutput
}

type interactionJSON struct {
	ID          int64           `json:"id"`
	SessionID   int64           `json:"sessionId"`
	Input       string          `json:"input"`
	Output      json.RawMessage `json:"output,omitempty"`
	Type        *Intent         `json:"type,omitempty"`
	CreatedTime apidate.Time    `json:"createdTime"`
}

// UnmarshalJSON decodes the output according to the interaction type.
func (i *Interaction) UnmarshalJSON(data []byte) error {
	var raw interactionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*i = Interaction{
		ID:          raw.ID,
		SessionID:   raw.SessionID,
		Input:       raw.Input,
		Type:        raw.Type,
		CreatedTime: raw.CreatedTime,
	}
	if raw.Type == nil {
		return nil
	}

	switch *raw.Type {
	case IntentAskQuestion, IntentSearchYourContacts, IntentUnknown:
		var answer AnswerChunk
		if err := decodeOutput(raw.Output, &answer); err != nil {
			return fmt.Errorf("interaction %d: %w", raw.ID, err)
		}
		i.Answer = &answer
	case IntentSearchYourStories:
		var stories StoryListOutput
		if err := decodeOutput(raw.Output, &stories); err != nil {
			return fmt.Errorf("interaction %d: %w", raw.ID, err)
		}
		i.Stories = &stories
	}
	return nil
}

// MarshalJSON encodes whichever output is set.
func (i Interaction) MarshalJSON() ([]byte, error) {
	raw := interactionJSON{
		ID:          i.ID,
		SessionID:   i.SessionID,
		Input:       i.Input,
		Type:        i.Type,
		CreatedTime: i.CreatedTime,
	}

	var output any
	switch {
	case i.Answer != nil:
		output = i.Answer
	case i.Stories != nil:
		output = i.Stories
	}
	if output != nil {
		data, err := json.Marshal(output)
		if err != nil {
			return nil, err
		}
		raw.Output = data
	}
	return json.Marshal(raw)
}

func decodeOutput(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("missing output")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode output: %w", err)
	}
	return nil
}

// SessionInteractions is a session with its interactions, newest first.
type SessionInteractions struct {
	Session         Session       `json:"session"`
	InteractionList []Interaction `json:"interactionList"`
}
