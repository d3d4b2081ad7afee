package intent

import (
	"context"
	"strings"
	"unicode"

	"github.com/nomdev/corbo/internal/models"
)

type cue struct {
	label  models.Intent
	weight float64
	match  func(text string) bool
}

func prefix(p string) func(string) bool { return func(s string) bool { return strings.HasPrefix(s, p) } }
func contains(p string) func(string) bool { return func(s string) bool { return strings.Contains(s, p) } }

var keywordCues = []cue{
	{models.IntentSearchYourStories, 3, contains("my stories")},
	{models.IntentSearchYourStories, 3, contains("stories about")},
	{models.IntentSearchYourStories, 2, prefix("find ")},
	{models.IntentSearchYourStories, 2, prefix("show me")},
	{models.IntentSearchYourStories, 1, contains("when did i")},

	{models.IntentSearchYourContacts, 3, prefix("who is")},
	{models.IntentSearchYourContacts, 3, prefix("who's")},
	{models.IntentSearchYourContacts, 2, contains("contact")},
	{models.IntentSearchYourContacts, 2, contains("phone number")},
	{models.IntentSearchYourContacts, 1, contains("people who")},

	{models.IntentAddStory, 3, contains("remember when")},
	{models.IntentAddStory, 2, prefix("today ")},
	{models.IntentAddStory, 2, prefix("yesterday ")},
	{models.IntentAddStory, 2, prefix("last night")},
	{models.IntentAddStory, 1, prefix("i ")},
	{models.IntentAddStory, 1, prefix("we ")},

	{models.IntentAskQuestion, 2, func(s string) bool { return strings.HasSuffix(s, "?") }},
	{models.IntentAskQuestion, 1, prefix("what")},
	{models.IntentAskQuestion, 1, prefix("how")},
	{models.IntentAskQuestion, 1, prefix("why")},
	{models.IntentAskQuestion, 1, prefix("where")},
	{models.IntentAskQuestion, 1, prefix("when ")},
	{models.IntentAskQuestion, 1, prefix("did ")},
	{models.IntentAskQuestion, 1, prefix("do ")},
}

// Keyword is an offline classifier driven by phrase cues. It never fails.
type Keyword struct{}

// NewKeyword returns the keyword classifier.
func NewKeyword() Keyword { return Keyword{} }

// Predict scores text against the cue table. Scores are normalized to sum
// to one; text matching no cue is unknown.
func (Keyword) Predict(_ context.Context, text string) (Prediction, error) {
	normalized := normalize(text)
	if normalized == "" {
		return Certain(models.IntentUnknown), nil
	}

	scores := make(map[models.Intent]float64)
	var total float64
	for _, c := range keywordCues {
		if c.match(normalized) {
			scores[c.label] += c.weight
			total += c.weight
		}
	}
	if total == 0 {
		return Certain(models.IntentUnknown), nil
	}
	for label := range scores {
		scores[label] /= total
	}
	return Prediction{Scores: scores}, nil
}

// normalize lowercases text, folds curly apostrophes and collapses runs
// of whitespace.
func normalize(text string) string {
	text = strings.ReplaceAll(strings.ToLower(text), "’", "'")
	fields := strings.FieldsFunc(text, unicode.IsSpace)
	return strings.Join(fields, " ")
}
