package history

import (
	"log/slog"

	"github.com/nomdev/corbo/internal/chat"
	"github.com/nomdev/corbo/internal/models"
)

// FromInteractions rebuilds a transcript from server interactions, which
// arrive newest first. Each interaction opens with the same prompt the live
// chat shows for its intent. Interactions without a type, or without the
// output their type requires, are skipped.
func FromInteractions(interactions []models.Interaction, logger *slog.Logger) []chat.Element {
	if logger == nil {
		logger = slog.Default()
	}

	var result []chat.Element
	for i := len(interactions) - 1; i >= 0; i-- {
		result = append(result, interactionElements(interactions[i], logger)...)
	}
	return result
}

func interactionElements(in models.Interaction, logger *slog.Logger) []chat.Element {
	if in.Type == nil {
		logger.Warn("got unknown interaction type", "interaction_id", in.ID, "type", "nil")
		return nil
	}

	switch *in.Type {
	case models.IntentAddStory:
		return []chat.Element{
			chat.AssistantMessage(chat.PromptFor(in.Type)),
			chat.UserTranscript(in.Input, nil),
			chat.AssistantMessage(chat.PromptStorySuccess),
		}

	case models.IntentAskQuestion, models.IntentSearchYourContacts, models.IntentUnknown:
		if in.Answer == nil {
			return nil
		}
		qid := in.Answer.QuestionID
		return []chat.Element{
			chat.AssistantMessage(chat.PromptFor(in.Type)),
			chat.UserTranscript(in.Input, qid),
			chat.Answer(models.Deref(in.Answer.Data), in.Answer.EntityList, qid, in.Input),
		}

	case models.IntentSearchYourStories:
		if in.Stories == nil {
			return nil
		}
		input := in.Input
		return []chat.Element{
			chat.AssistantMessage(chat.PromptFor(in.Type)),
			chat.UserTranscript(in.Input, nil),
			chat.Results(in.Stories.StoryList, in.Input, &input),
		}
	}

	logger.Warn("got unknown interaction type", "interaction_id", in.ID, "type", string(*in.Type))
	return nil
}
