package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomdev/corbo/internal/metrics"
	"github.com/nomdev/corbo/internal/models"
)

type stubGenerator struct {
	answer string
	err    error
	user   string
}

func (s *stubGenerator) GenerateWithSystem(_ context.Context, _, user string) (string, error) {
	s.user = user
	return s.answer, s.err
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		answer string
		want   models.Intent
	}{
		{"addStory", models.IntentAddStory},
		{"  searchYourStories\n", models.IntentSearchYourStories},
		{`"askQuestion".`, models.IntentAskQuestion},
		{"SEARCHYOURCONTACTS", models.IntentSearchYourContacts},
		{"The label is searchYourContacts.", models.IntentSearchYourContacts},
		{"unknown", models.IntentUnknown},
		{"either addStory or askQuestion", models.IntentUnknown},
		{"I cannot tell", models.IntentUnknown},
		{"", models.IntentUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLabel(tt.answer))
		})
	}
}

func TestClassifierPredict(t *testing.T) {
	gen := &stubGenerator{answer: "searchYourStories"}
	m := metrics.NewCollector()
	c := NewClassifier(gen, WithMetrics(m))

	p, err := c.Predict(context.Background(), "show my beach stories")
	require.NoError(t, err)

	label, score := p.Strongest()
	assert.Equal(t, models.IntentSearchYourStories, label)
	assert.InDelta(t, 1.0, score, 1e-9)
	assert.Equal(t, "show my beach stories", gen.user)
	require.NotNil(t, m.Snapshot().Classify)
	assert.Equal(t, int64(1), m.Snapshot().Classify.Count)
}

func TestClassifierPredictError(t *testing.T) {
	boom := errors.New("boom")
	m := metrics.NewCollector()
	c := NewClassifier(&stubGenerator{err: boom}, WithMetrics(m))

	_, err := c.Predict(context.Background(), "anything")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), m.Snapshot().Classify.Errors)
}
