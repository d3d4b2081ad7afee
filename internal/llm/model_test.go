package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/nomdev/corbo/internal/config"
)

// fakeLLM records the messages it receives and answers with reply.
type fakeLLM struct {
	reply    string
	err      error
	noChoice bool
	messages []llms.MessageContent
}

func (f *fakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	if f.noChoice {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestIsFatalAPIError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"credit balance", errors.New("insufficient credit balance"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota exceeded", errors.New("quota exceeded for model"), true},
		{"invalid api key", errors.New("Invalid API key"), true},
		{"401 status", errors.New("HTTP 401: not allowed"), true},
		{"wrapped error", fmt.Errorf("classify: %w", errors.New("billing account inactive")), true},
		{"404 not fatal", errors.New("HTTP 404: model not found"), false},
		{"timeout not fatal", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, isFatalAPIError(tt.err))
		})
	}
}

func TestWrapFatalError(t *testing.T) {
	assert.ErrorIs(t, wrapFatalError(errors.New("unauthorized request")), ErrFatalAPI)

	plain := errors.New("network timeout")
	assert.Same(t, plain, wrapFatalError(plain))
	assert.NoError(t, wrapFatalError(nil))
}

func TestGenerateWithSystem(t *testing.T) {
	fake := &fakeLLM{reply: "askQuestion"}
	m := NewModelFrom(fake, "test-model")

	out, err := m.GenerateWithSystem(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "askQuestion", out)
	assert.Equal(t, "test-model", m.Model())

	require.Len(t, fake.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, fake.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, fake.messages[1].Role)
}

func TestGenerateWithSystemErrors(t *testing.T) {
	_, err := NewModelFrom(&fakeLLM{err: errors.New("HTTP 403: forbidden")}, "m").
		GenerateWithSystem(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrFatalAPI)

	_, err = NewModelFrom(&fakeLLM{noChoice: true}, "m").
		GenerateWithSystem(context.Background(), "s", "u")
	assert.ErrorContains(t, err, "no response choices")
}

func TestNewModelRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{"openai without key", config.Config{Classifier: config.ProviderOpenAI}, "OpenAI API key required"},
		{"anthropic without key", config.Config{Classifier: config.ProviderAnthropic}, "Anthropic API key required"},
		{"keyword is not an llm", config.Config{Classifier: config.ProviderKeyword}, "unsupported LLM provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModel(context.Background(), tt.cfg)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestNewModelDefaultsModelName(t *testing.T) {
	m, err := NewModel(context.Background(), config.Config{
		Classifier: config.ProviderOllama,
		OllamaHost: "http://localhost:11434",
	})
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", m.Model())
}
