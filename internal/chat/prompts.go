package chat

import "github.com/nomdev/corbo/internal/models"

// Assistant prompts shown before the user's input.
const (
	PromptListening     = "I'm listening..."
	PromptTextMode      = "What's on your mind?"
	PromptStoryCapture  = "Go ahead, tell me your story."
	PromptQuestion      = "What would you like to know?"
	PromptContactSearch = "Who are you looking for?"
	PromptStorySearch   = "Which stories are you looking for?"
	PromptStorySuccess  = "Got it! Your story has been saved."
	PromptStoryAdding   = "Saving your story..."
	PromptReadyToSave   = "Ready to save your story."
)

// PromptFor returns the prompt that introduces an interaction of the given
// intent. A nil intent gets the listening prompt.
func PromptFor(intent *models.Intent) string {
	if intent == nil {
		return PromptListening
	}
	switch *intent {
	case models.IntentAddStory:
		return PromptStoryCapture
	case models.IntentAskQuestion:
		return PromptQuestion
	case models.IntentSearchYourContacts:
		return PromptContactSearch
	case models.IntentSearchYourStories:
		return PromptStorySearch
	default:
		return PromptListening
	}
}
