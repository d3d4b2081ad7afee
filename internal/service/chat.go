// Package service orchestrates one conversation against the backend.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/nomdev/corbo/internal/analytics"
	"github.com/nomdev/corbo/internal/api"
	"github.com/nomdev/corbo/internal/chat"
	"github.com/nomdev/corbo/internal/history"
	"github.com/nomdev/corbo/internal/intent"
	"github.com/nomdev/corbo/internal/models"
	"github.com/nomdev/corbo/internal/notify"
	"github.com/nomdev/corbo/internal/stream"
)

// Sentinel errors for chat operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNoSession indicates the operation needs a session the chat is not
	// bound to yet.
	ErrNoSession = errors.New("no session bound")

	// ErrQuestionNotFound indicates a re-ask named a question id that is
	// not in the transcript.
	ErrQuestionNotFound = errors.New("question not found")
)

// API is the subset of the backend client a chat uses.
type API interface {
	AskWithStream(ctx context.Context, req api.AskRequest, handle func(stream.Chunk) error) (stream.Stats, error)
	SearchStories(ctx context.Context, req api.SearchStoriesRequest) (*api.SearchStoriesResponse, error)
	CreateStory(ctx context.Context, req api.CreateStoryRequest) (*api.CreateStoryResponse, error)
	DeleteSession(ctx context.Context, sessionID int64) error
	RenameSession(ctx context.Context, sessionID int64, title string) error
	SubmitQuestionFeedback(ctx context.Context, fb api.QuestionFeedback) error
}

// Notifier shows failures to the user.
type Notifier interface {
	Error(context string, err error) string
}

// Deps are the collaborators of a Chat. API and History are required;
// the rest fall back to offline defaults.
type Deps struct {
	API        API
	History    *history.Service
	Classifier intent.Classifier
	Notifier   Notifier
	Analytics  analytics.Sink
	Logger     *slog.Logger
	Now        func() time.Time
}

func (d *Deps) defaults() {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Classifier == nil {
		d.Classifier = intent.NewKeyword()
	}
	if d.Notifier == nil {
		d.Notifier = notify.New(io.Discard, notify.WithLogger(d.Logger))
	}
	if d.Analytics == nil {
		d.Analytics = analytics.Nop{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

// Chat drives one conversation. Operations are meant to be called from a
// single goroutine; the transcript may be observed from others.
type Chat struct {
	deps     Deps
	conv     *chat.Conversation
	started  time.Time
	location *models.Location
}

// NewChat starts a conversation with no session. The session is bound by
// the first server response that reveals one.
func NewChat(deps Deps) *Chat {
	deps.defaults()
	c := &Chat{
		deps:    deps,
		conv:    chat.NewConversation(chat.WithLogger(deps.Logger)),
		started: deps.Now(),
	}
	c.deps.Analytics.Track(analytics.EventChatSessionStarted, analytics.Props{"startDate": c.started.Format(time.RFC3339)})
	return c
}

// OpenChat resumes session with its transcript restored from history.
func OpenChat(ctx context.Context, deps Deps, session models.Session) (*Chat, error) {
	deps.defaults()
	if session.ID == nil {
		return nil, fmt.Errorf("open chat: %w", ErrNoSession)
	}

	elements, err := deps.History.Retrieve(ctx, *session.ID)
	if err != nil {
		deps.Notifier.Error("Chat.Open", err)
		return nil, err
	}

	c := &Chat{
		deps:    deps,
		conv:    chat.NewConversation(chat.WithLogger(deps.Logger), chat.WithSession(session)),
		started: deps.Now(),
	}
	if err := c.conv.Restore(elements); err != nil {
		return nil, fmt.Errorf("restore transcript: %w", err)
	}
	c.deps.Analytics.Track(analytics.EventChatSessionRestored, analytics.Props{"date": c.started.Format(time.RFC3339)})
	return c, nil
}

// Conversation returns the live transcript.
func (c *Chat) Conversation() *chat.Conversation {
	return c.conv
}

// SetLocation attaches loc to stories created from now on.
func (c *Chat) SetLocation(loc *models.Location) {
	c.location = loc
}

func (c *Chat) sessionID() *int64 {
	if id, ok := c.conv.SessionID(); ok {
		return &id
	}
	return nil
}

// Ask streams the answer to question into the transcript. A failed
// request removes the empty answer placeholder and shows a toast.
func (c *Chat) Ask(ctx context.Context, question string, searchContacts bool) error {
	if _, err := c.conv.BeginAnswer(question); err != nil {
		return err
	}

	req := api.AskRequest{
		Question:          question,
		SessionID:         c.sessionID(),
		SearchContactOnly: searchContacts,
	}
	stats, err := c.deps.API.AskWithStream(ctx, req, func(chunk stream.Chunk) error {
		c.conv.HandleChunk(chunk)
		return nil
	})
	if err != nil {
		c.conv.FailAnswer()
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			c.deps.Logger.Debug("ask cancelled", "error", err)
			return err
		}
		c.deps.Notifier.Error("Chat.Ask", err)
		return err
	}

	if c.conv.Streaming() {
		c.deps.Logger.Warn("answer stream ended without a question id", "frames", stats.Frames)
		c.conv.FinishAnswer()
	}
	return nil
}

// Reask repeats the question that produced questionID.
func (c *Chat) Reask(ctx context.Context, questionID int64) error {
	input, ok := c.conv.FindInput(questionID)
	if !ok {
		return fmt.Errorf("reask %d: %w", questionID, ErrQuestionNotFound)
	}

	label := c.classify(ctx, input)
	c.conv.Append(chat.UserTranscript(input, nil))
	return c.Ask(ctx, input, label == models.IntentSearchYourContacts)
}

// Submit classifies text and routes it: stories are saved, story searches
// list stories, and everything else is asked as a question. It returns the
// label the text was routed by.
func (c *Chat) Submit(ctx context.Context, text string) (models.Intent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		c.deps.Logger.Warn("submit without text")
		return models.IntentUnknown, nil
	}

	label := c.classify(ctx, text)
	c.deps.Analytics.Track(analytics.EventChatInteraction, analytics.Props{"type": string(label)})

	c.introduce(label, text)

	c.deps.Logger.Info("routing input", "intent", string(label))
	switch label {
	case models.IntentAddStory:
		return label, c.CreateStory(ctx, text)
	case models.IntentSearchYourContacts:
		return label, c.Ask(ctx, text, true)
	case models.IntentSearchYourStories:
		return label, c.SearchStories(ctx, text)
	default:
		return label, c.Ask(ctx, text, false)
	}
}

// Question asks text without classifying it, introduced the same way a
// routed question is.
func (c *Chat) Question(ctx context.Context, text string, searchContacts bool) error {
	label := models.IntentAskQuestion
	if searchContacts {
		label = models.IntentSearchYourContacts
	}
	c.introduce(label, text)
	return c.Ask(ctx, text, searchContacts)
}

// introduce appends the prompt for label and the user's text.
func (c *Chat) introduce(label models.Intent, text string) {
	c.conv.Append(chat.AssistantMessage(chat.PromptFor(&label)))
	c.conv.Append(chat.UserTranscript(text, nil))
}

// classify returns the strongest label for text. Classifier failures
// route to a question.
func (c *Chat) classify(ctx context.Context, text string) models.Intent {
	p, err := c.deps.Classifier.Predict(ctx, text)
	if err != nil {
		c.deps.Logger.Warn("intent classification failed", "error", err)
		return models.IntentAskQuestion
	}
	label, _ := p.Strongest()
	return label
}

// SearchStories appends the stories matching prompt and saves the history.
func (c *Chat) SearchStories(ctx context.Context, prompt string) error {
	resp, err := c.deps.API.SearchStories(ctx, api.SearchStoriesRequest{
		Input:     prompt,
		SessionID: c.sessionID(),
	})
	if err != nil {
		c.deps.Notifier.Error("Chat.SearchStories", err)
		return err
	}

	c.conv.BindSession(resp.SessionID)
	c.conv.Append(chat.Results(resp.StoryList, prompt, nil))
	c.save(ctx)
	return nil
}

// CreateStory saves content as a story in this session.
func (c *Chat) CreateStory(ctx context.Context, content string) error {
	resp, err := c.deps.API.CreateStory(ctx, api.CreateStoryRequest{
		Input:     content,
		Location:  c.location,
		SessionID: c.sessionID(),
		InChat:    models.Ptr(true),
	})
	if err != nil {
		c.deps.Notifier.Error("Chat.CreateStory", err)
		return err
	}

	c.conv.BindSession(resp.SessionID)
	c.conv.Append(chat.AssistantMessage(chat.PromptStorySuccess))
	c.save(ctx)
	return nil
}

func (c *Chat) save(ctx context.Context) {
	if id, ok := c.conv.SessionID(); ok {
		c.deps.History.Save(ctx, id, c.conv.Elements())
	}
}

// Leave stops the conversation, saves its history when a session is
// bound and reports how long it lasted.
func (c *Chat) Leave(ctx context.Context) {
	c.conv.Abandon()
	c.save(ctx)
	c.deps.Analytics.Track(analytics.EventChatSessionEnded, analytics.Props{
		"dateStart": c.started.Format(time.RFC3339),
		"dateEnd":   c.deps.Now().Format(time.RFC3339),
	})
}

// Delete deletes the session on the server and drops its cached history.
func (c *Chat) Delete(ctx context.Context) error {
	id, ok := c.conv.SessionID()
	if !ok {
		return fmt.Errorf("delete session: %w", ErrNoSession)
	}
	if err := c.deps.API.DeleteSession(ctx, id); err != nil {
		c.deps.Notifier.Error("Chat.Delete", err)
		return err
	}
	c.conv.Abandon()
	if err := c.deps.History.Forget(ctx, id); err != nil {
		c.deps.Logger.Warn("failed to drop cached history", "session_id", id, "error", err)
	}
	return nil
}

// Rename sets the session title.
func (c *Chat) Rename(ctx context.Context, title string) error {
	id, ok := c.conv.SessionID()
	if !ok {
		return fmt.Errorf("rename session: %w", ErrNoSession)
	}
	if err := c.deps.API.RenameSession(ctx, id, title); err != nil {
		c.deps.Notifier.Error("Chat.Rename", err)
		return err
	}
	return nil
}

// SubmitFeedback rates the answer to a question.
func (c *Chat) SubmitFeedback(ctx context.Context, fb api.QuestionFeedback) error {
	if err := c.deps.API.SubmitQuestionFeedback(ctx, fb); err != nil {
		c.deps.Notifier.Error("Chat.SubmitFeedback", err)
		return err
	}
	return nil
}
