// Package intent predicts what the user wants from free text: capture a
// story, ask a question, or search contacts or stories.
package intent

import (
	"context"

	"github.com/nomdev/corbo/internal/models"
)

// Classifier predicts the intent of text. Predictions are advisory; callers
// fall back to asking a question when classification fails.
type Classifier interface {
	Predict(ctx context.Context, text string) (Prediction, error)
}

// Prediction holds a score per label. Missing labels score zero.
type Prediction struct {
	Scores map[models.Intent]float64
}

// Certain returns a prediction that puts all weight on label.
func Certain(label models.Intent) Prediction {
	return Prediction{Scores: map[models.Intent]float64{label: 1}}
}

// Strongest returns the highest scoring label and its score. Ties go to
// the label listed first in models.Intents; an empty prediction is
// unknown.
func (p Prediction) Strongest() (models.Intent, float64) {
	best, bestScore := models.IntentUnknown, 0.0
	for _, label := range models.Intents {
		if score := p.Scores[label]; score > bestScore {
			best, bestScore = label, score
		}
	}
	return best, bestScore
}
