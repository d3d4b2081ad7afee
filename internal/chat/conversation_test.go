package chat

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomdev/corbo/internal/models"
)

func newTestConversation() (*Conversation, *bytes.Buffer) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	return NewConversation(WithLogger(logger)), &logs
}

func recordEvents(c *Conversation) *[]Event {
	var events []Event
	c.Subscribe(func(ev Event) { events = append(events, ev) })
	return &events
}

func TestHandleChunkStreamsIntoOpenAnswer(t *testing.T) {
	c, _ := newTestConversation()
	events := recordEvents(c)

	id, err := c.BeginAnswer("how are you?")
	require.NoError(t, err)

	c.HandleChunk(models.AnswerChunk{Data: models.Ptr("Hel")})
	c.HandleChunk(models.AnswerChunk{Data: models.Ptr("lo")})
	c.HandleChunk(models.AnswerChunk{
		QuestionID: models.Ptr(int64(42)),
		EntityList: []models.Entity{{Name: models.Ptr("Ana")}},
	})

	elems := c.Elements()
	require.Len(t, elems, 1)
	answer := elems[0]
	assert.Equal(t, id, answer.ID)
	assert.Equal(t, "Hello", *answer.Text)
	assert.Equal(t, int64(42), *answer.QuestionID)
	assert.Equal(t, "how are you?", *answer.Input)
	assert.Len(t, answer.Entities, 1)
	assert.False(t, c.Streaming())

	require.Len(t, *events, 4)
	assert.Equal(t, ElementAppended, (*events)[0].Kind)
	assert.Equal(t, "Hel", *(*events)[1].Element.Text)
	assert.False(t, (*events)[2].Final)
	assert.True(t, (*events)[3].Final)
	assert.Equal(t, "Hello", *(*events)[3].Element.Text)
}

func TestHandleChunkAppliesEffectsInOrder(t *testing.T) {
	c, _ := newTestConversation()
	events := recordEvents(c)
	_, err := c.BeginAnswer("q")
	require.NoError(t, err)

	// One frame carrying text, question id and session id.
	c.HandleChunk(models.AnswerChunk{
		Data:       models.Ptr("all at once"),
		QuestionID: models.Ptr(int64(1)),
		SessionID:  models.Ptr(int64(10)),
	})

	kinds := make([]EventKind, 0, len(*events))
	for _, ev := range *events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{ElementAppended, ElementUpdated, ElementUpdated, SessionBound}, kinds)
	assert.Equal(t, "all at once", *(*events)[2].Element.Text)
	assert.Equal(t, int64(10), *(*events)[3].Session.ID)
}

func TestSessionBindingFirstWins(t *testing.T) {
	c, logs := newTestConversation()

	c.HandleChunk(models.AnswerChunk{SessionID: models.Ptr(int64(10))})
	c.HandleChunk(models.AnswerChunk{SessionID: models.Ptr(int64(99))})

	id, ok := c.SessionID()
	require.True(t, ok)
	assert.Equal(t, int64(10), id)
	assert.Contains(t, logs.String(), "got a different session id")

	// Rebinding the same id is silent.
	logs.Reset()
	assert.False(t, c.BindSession(models.Ptr(int64(10))))
	assert.Empty(t, logs.String())
}

func TestBindSessionNil(t *testing.T) {
	c, logs := newTestConversation()

	assert.False(t, c.BindSession(nil))
	assert.Contains(t, logs.String(), "got nil session id")
	assert.Nil(t, c.Session())
}

func TestBeginAnswerWhileStreaming(t *testing.T) {
	c, _ := newTestConversation()

	_, err := c.BeginAnswer("first")
	require.NoError(t, err)
	_, err = c.BeginAnswer("second")
	assert.ErrorIs(t, err, ErrAnswerInProgress)

	c.HandleChunk(models.AnswerChunk{QuestionID: models.Ptr(int64(1))})
	_, err = c.BeginAnswer("second")
	assert.NoError(t, err)
}

func TestChunksWithoutOpenAnswer(t *testing.T) {
	c, logs := newTestConversation()

	c.HandleChunk(models.AnswerChunk{Data: models.Ptr("stray"), SessionID: models.Ptr(int64(3))})

	assert.Zero(t, c.Len())
	assert.Contains(t, logs.String(), "dropping answer text")
	id, ok := c.SessionID()
	assert.True(t, ok, "session still binds")
	assert.Equal(t, int64(3), id)
}

func TestAbandonIgnoresLaterChunks(t *testing.T) {
	c, _ := newTestConversation()
	_, err := c.BeginAnswer("q")
	require.NoError(t, err)
	c.HandleChunk(models.AnswerChunk{Data: models.Ptr("part")})

	c.Abandon()
	c.HandleChunk(models.AnswerChunk{Data: models.Ptr(" more"), SessionID: models.Ptr(int64(5))})

	assert.True(t, c.Abandoned())
	assert.Equal(t, "part", *c.Elements()[0].Text)
	_, ok := c.SessionID()
	assert.False(t, ok)

	_, err = c.BeginAnswer("again")
	assert.ErrorIs(t, err, ErrAbandoned)
}

func TestFailAnswer(t *testing.T) {
	t.Run("removes empty placeholder", func(t *testing.T) {
		c, _ := newTestConversation()
		c.Append(UserTranscript("q", nil))
		events := recordEvents(c)
		_, err := c.BeginAnswer("q")
		require.NoError(t, err)

		c.FailAnswer()

		assert.Equal(t, 1, c.Len())
		assert.False(t, c.Streaming())
		last := (*events)[len(*events)-1]
		assert.Equal(t, ElementRemoved, last.Kind)
	})

	t.Run("keeps partial text", func(t *testing.T) {
		c, _ := newTestConversation()
		_, err := c.BeginAnswer("q")
		require.NoError(t, err)
		c.HandleChunk(models.AnswerChunk{Data: models.Ptr("half an ans")})

		c.FailAnswer()

		require.Equal(t, 1, c.Len())
		assert.Equal(t, "half an ans", *c.Elements()[0].Text)
		assert.False(t, c.Streaming())
	})
}

func TestFinishAnswerWithoutTerminalFrame(t *testing.T) {
	c, _ := newTestConversation()
	events := recordEvents(c)
	_, err := c.BeginAnswer("q")
	require.NoError(t, err)

	c.FinishAnswer()

	elems := c.Elements()
	require.Len(t, elems, 1)
	require.NotNil(t, elems[0].Text, "finished answers always have text")
	assert.Equal(t, "", *elems[0].Text)
	assert.True(t, (*events)[len(*events)-1].Final)

	// Nothing open: no-op.
	c.FinishAnswer()
	assert.Len(t, *events, 2)
}

func TestFindInput(t *testing.T) {
	c, _ := newTestConversation()
	c.Append(UserTranscript("what is up", models.Ptr(int64(7))))
	c.Append(Answer("not much", nil, models.Ptr(int64(7)), "what is up"))

	input, ok := c.FindInput(7)
	require.True(t, ok)
	assert.Equal(t, "what is up", input)

	_, ok = c.FindInput(8)
	assert.False(t, ok)
}

func TestUnsubscribe(t *testing.T) {
	c, _ := newTestConversation()
	var count int
	unsubscribe := c.Subscribe(func(Event) { count++ })

	c.Append(AssistantMessage(PromptListening))
	unsubscribe()
	c.Append(AssistantMessage(PromptListening))

	assert.Equal(t, 1, count)
}

func TestSubscriberMayChangeConversation(t *testing.T) {
	c, _ := newTestConversation()
	var kinds []EventKind
	c.Subscribe(func(ev Event) {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == SessionBound {
			c.Append(AssistantMessage(PromptListening))
		}
	})
	var seen []EventKind
	c.Subscribe(func(ev Event) { seen = append(seen, ev.Kind) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.BindSession(models.Ptr(int64(5)))
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BindSession did not return")
	}

	want := []EventKind{SessionBound, ElementAppended}
	assert.Equal(t, want, kinds)
	assert.Equal(t, want, seen, "every subscriber sees the binding before the append")
	assert.Equal(t, 1, c.Len())

	c.Append(AssistantMessage(PromptQuestion))
	assert.Len(t, seen, 3, "delivery resumes after a nested change")
}

func TestRestore(t *testing.T) {
	c, _ := newTestConversation()
	saved := []Element{AssistantMessage(PromptQuestion), UserTranscript("hi", nil)}

	require.NoError(t, c.Restore(saved))
	assert.Equal(t, saved, c.Elements())

	_, err := c.BeginAnswer("q")
	require.NoError(t, err)
	assert.ErrorIs(t, c.Restore(nil), ErrAnswerInProgress)
}

func TestPromptFor(t *testing.T) {
	tests := []struct {
		intent *models.Intent
		want   string
	}{
		{intent: nil, want: PromptListening},
		{intent: models.Ptr(models.IntentAddStory), want: PromptStoryCapture},
		{intent: models.Ptr(models.IntentAskQuestion), want: PromptQuestion},
		{intent: models.Ptr(models.IntentSearchYourContacts), want: PromptContactSearch},
		{intent: models.Ptr(models.IntentSearchYourStories), want: PromptStorySearch},
		{intent: models.Ptr(models.IntentUnknown), want: PromptListening},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.intent != nil {
			name = string(*tt.intent)
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, PromptFor(tt.intent))
		})
	}
}

func TestElementTextOr(t *testing.T) {
	e := Element{Kind: KindAssistantMessage}
	assert.Equal(t, "...", e.TextOr("..."))
	assert.True(t, strings.HasPrefix(AssistantMessage("hey").TextOr(""), "hey"))
}
