package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nomdev/corbo/internal/intent"
	"github.com/nomdev/corbo/internal/metrics"
	"github.com/nomdev/corbo/internal/models"
)

const classifySystemPrompt = `You sort messages sent to a personal journaling assistant.
Reply with exactly one of these labels and nothing else:

addStory - the user is telling something that happened to them
askQuestion - the user asks about their own past or stories
searchYourContacts - the user looks for a person they know
searchYourStories - the user wants to list stories on a topic
unknown - none of the above`

// Generator produces a completion for a system and user prompt.
type Generator interface {
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Classifier predicts intents by asking a model for a single label.
type Classifier struct {
	gen     Generator
	metrics *metrics.Collector
	logger  *slog.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithMetrics records classification timings into m.
func WithMetrics(m *metrics.Collector) ClassifierOption {
	return func(c *Classifier) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClassifierOption {
	return func(c *Classifier) { c.logger = l }
}

// NewClassifier creates a classifier backed by gen.
func NewClassifier(gen Generator, opts ...ClassifierOption) *Classifier {
	c := &Classifier{gen: gen, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ intent.Classifier = (*Classifier)(nil)

// Predict returns a certain prediction for the label the model answers
// with. Answers that name no label are unknown.
func (c *Classifier) Predict(ctx context.Context, text string) (intent.Prediction, error) {
	start := time.Now()
	out, err := c.gen.GenerateWithSystem(ctx, classifySystemPrompt, text)
	c.metrics.RecordResult(metrics.OpClassify, time.Since(start), err)
	if err != nil {
		return intent.Prediction{}, fmt.Errorf("classify: %w", err)
	}

	label := parseLabel(out)
	if label == models.IntentUnknown {
		c.logger.Debug("classifier answered without a known label", "answer", out)
	}
	return intent.Certain(label), nil
}

// parseLabel finds the label in a model answer. An exact answer wins; a
// chatty answer is accepted when it mentions exactly one label.
func parseLabel(answer string) models.Intent {
	cleaned := strings.ToLower(strings.Trim(strings.TrimSpace(answer), "\"'`.*"))
	for _, label := range models.Intents {
		if cleaned == strings.ToLower(string(label)) {
			return label
		}
	}

	found := models.IntentUnknown
	matches := 0
	for _, label := range models.Intents {
		if label != models.IntentUnknown && strings.Contains(cleaned, strings.ToLower(string(label))) {
			found = label
			matches++
		}
	}
	if matches == 1 {
		return found
	}
	return models.IntentUnknown
}
