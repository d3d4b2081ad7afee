// Package chat holds the live transcript of a conversation and merges
// streamed answer frames into it.
package chat

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nomdev/corbo/internal/models"
)

// Sentinel errors for transcript operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAnswerInProgress indicates an answer is still streaming into the
	// transcript. A new one may start once its terminal frame arrives.
	ErrAnswerInProgress = errors.New("answer in progress")

	// ErrAbandoned indicates the conversation was left.
	ErrAbandoned = errors.New("conversation abandoned")
)

// EventKind identifies what changed in a conversation.
type EventKind int

const (
	ElementAppended EventKind = iota
	ElementUpdated
	ElementRemoved
	SessionBound
)

func (k EventKind) String() string {
	switch k {
	case ElementAppended:
		return "appended"
	case ElementUpdated:
		return "updated"
	case ElementRemoved:
		return "removed"
	case SessionBound:
		return "session bound"
	default:
		return "unknown"
	}
}

// Event describes one change. Element is set for element events, Session
// for SessionBound. Final marks the update that completes an answer.
type Event struct {
	Kind    EventKind
	Element Element
	Final   bool
	Session models.Session
}

// Conversation is an ordered transcript bound to at most one session.
// It is safe for concurrent use. Subscribers are called outside the lock,
// one event at a time, in the order the changes happened.
type Conversation struct {
	mu        sync.Mutex
	elements  []Element
	session   *models.Session
	openID    uuid.UUID
	answer    strings.Builder
	abandoned bool
	subs      map[int]func(Event)
	nextSub   int
	logger    *slog.Logger

	// pending holds changes not yet delivered. Only the goroutine that set
	// dispatching drains it.
	pending     []delivery
	dispatching bool
}

// delivery is one change's events and the subscribers registered when it
// happened.
type delivery struct {
	events []Event
	subs   []func(Event)
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Conversation) { c.logger = l }
}

// WithSession binds the conversation to an existing session.
func WithSession(s models.Session) Option {
	return func(c *Conversation) { c.session = &s }
}

// NewConversation creates an empty conversation.
func NewConversation(opts ...Option) *Conversation {
	c := &Conversation{
		subs:   make(map[int]func(Event)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers fn for every later change and returns a function
// that removes it. fn may change the conversation; events caused by such a
// change are delivered after fn returns, once the change being delivered has reached
// every subscriber.
func (c *Conversation) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// unlockAndDispatch queues events for the subscribers registered at the
// time of the change and releases the lock. If no other call is delivering,
// it delivers the queue until it is empty; otherwise that call will.
func (c *Conversation) unlockAndDispatch(events []Event) {
	if len(events) == 0 {
		c.mu.Unlock()
		return
	}
	subs := make([]func(Event), 0, len(c.subs))
	for id := 0; id < c.nextSub; id++ {
		if fn, ok := c.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	c.pending = append(c.pending, delivery{events: events, subs: subs})
	if c.dispatching {
		c.mu.Unlock()
		return
	}
	c.dispatching = true

	for len(c.pending) > 0 {
		next := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		for _, ev := range next.events {
			for _, fn := range next.subs {
				fn(ev)
			}
		}
		c.mu.Lock()
	}
	c.pending = nil
	c.dispatching = false
	c.mu.Unlock()
}

// Append adds e to the end of the transcript, assigning an id if it has none.
func (c *Conversation) Append(e Element) Element {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	c.mu.Lock()
	c.elements = append(c.elements, e)
	c.unlockAndDispatch([]Event{{Kind: ElementAppended, Element: e}})
	return e
}

// BeginAnswer appends an empty assistant element that subsequent frames
// stream into, and returns its id.
func (c *Conversation) BeginAnswer(input string) (uuid.UUID, error) {
	c.mu.Lock()
	if c.abandoned {
		c.mu.Unlock()
		return uuid.Nil, ErrAbandoned
	}
	if c.openID != uuid.Nil {
		c.mu.Unlock()
		return uuid.Nil, ErrAnswerInProgress
	}

	e := Element{ID: uuid.New(), Kind: KindAssistantMessage, Input: &input}
	c.elements = append(c.elements, e)
	c.openID = e.ID
	c.answer.Reset()
	c.unlockAndDispatch([]Event{{Kind: ElementAppended, Element: e}})
	return e.ID, nil
}

// HandleChunk applies one streamed frame: text is appended to the open
// answer, a question id completes it, and a session id binds the session.
// Frames arriving after Abandon are ignored.
func (c *Conversation) HandleChunk(chunk models.AnswerChunk) {
	c.mu.Lock()
	if c.abandoned {
		c.mu.Unlock()
		return
	}

	var events []Event

	if chunk.Data != nil {
		if i := c.openIndexLocked(); i >= 0 {
			c.answer.WriteString(*chunk.Data)
			text := c.answer.String()
			c.elements[i].Text = &text
			events = append(events, Event{Kind: ElementUpdated, Element: c.elements[i]})
		} else {
			c.logger.Warn("dropping answer text with no open element", "data", *chunk.Data)
		}
	}

	if chunk.QuestionID != nil {
		if i := c.openIndexLocked(); i >= 0 {
			text := c.answer.String()
			qid := *chunk.QuestionID
			c.elements[i].Text = &text
			c.elements[i].Entities = chunk.EntityList
			c.elements[i].QuestionID = &qid
			events = append(events, Event{Kind: ElementUpdated, Element: c.elements[i], Final: true})
			c.openID = uuid.Nil
			c.answer.Reset()
		} else {
			c.logger.Warn("got question id with no open element", "question_id", *chunk.QuestionID)
		}
	}

	if chunk.SessionID != nil {
		if ev, ok := c.bindLocked(chunk.SessionID); ok {
			events = append(events, ev)
		}
	}

	c.unlockAndDispatch(events)
}

func (c *Conversation) openIndexLocked() int {
	if c.openID == uuid.Nil {
		return -1
	}
	return c.indexLocked(c.openID)
}

func (c *Conversation) indexLocked(id uuid.UUID) int {
	for i := range c.elements {
		if c.elements[i].ID == id {
			return i
		}
	}
	return -1
}

// BindSession binds the conversation to session id. The first binding
// wins: a nil id or a different id is logged and ignored. It reports
// whether the session was newly bound.
func (c *Conversation) BindSession(id *int64) bool {
	c.mu.Lock()
	ev, ok := c.bindLocked(id)
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.unlockAndDispatch([]Event{ev})
	return true
}

func (c *Conversation) bindLocked(id *int64) (Event, bool) {
	if id == nil {
		c.logger.Warn("got nil session id")
		return Event{}, false
	}
	if c.session == nil || c.session.ID == nil {
		sid := *id
		c.session = &models.Session{ID: &sid}
		return Event{Kind: SessionBound, Session: *c.session}, true
	}
	if *c.session.ID != *id {
		c.logger.Warn("got a different session id from the one already bound",
			"bound", *c.session.ID, "received", *id)
	}
	return Event{}, false
}

// FinishAnswer closes an answer whose stream ended without a terminal
// frame, keeping whatever text arrived.
func (c *Conversation) FinishAnswer() {
	c.mu.Lock()
	i := c.openIndexLocked()
	if i < 0 {
		c.mu.Unlock()
		return
	}
	c.unlockAndDispatch([]Event{c.finishLocked(i)})
}

func (c *Conversation) finishLocked(i int) Event {
	text := c.answer.String()
	c.elements[i].Text = &text
	c.openID = uuid.Nil
	c.answer.Reset()
	return Event{Kind: ElementUpdated, Element: c.elements[i], Final: true}
}

// FailAnswer closes an answer whose request failed. A placeholder that
// never received text is removed; partial text is kept.
func (c *Conversation) FailAnswer() {
	c.mu.Lock()
	i := c.openIndexLocked()
	if i < 0 {
		c.mu.Unlock()
		return
	}
	if c.answer.Len() > 0 {
		c.unlockAndDispatch([]Event{c.finishLocked(i)})
		return
	}

	removed := c.elements[i]
	c.elements = append(c.elements[:i], c.elements[i+1:]...)
	c.openID = uuid.Nil
	c.unlockAndDispatch([]Event{{Kind: ElementRemoved, Element: removed}})
}

// Abandon stops the conversation from accepting further frames.
func (c *Conversation) Abandon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abandoned = true
}

// Abandoned reports whether Abandon was called.
func (c *Conversation) Abandoned() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.abandoned
}

// Streaming reports whether an answer is open.
func (c *Conversation) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openID != uuid.Nil
}

// FindInput returns the input of the first element carrying questionID
// and an input.
func (c *Conversation) FindInput(questionID int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.elements {
		if e.QuestionID != nil && *e.QuestionID == questionID && e.Input != nil {
			return *e.Input, true
		}
	}
	return "", false
}

// Elements returns a snapshot of the transcript.
func (c *Conversation) Elements() []Element {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Element(nil), c.elements...)
}

// Len returns the number of elements.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.elements)
}

// Session returns the bound session, or nil.
func (c *Conversation) Session() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// SessionID returns the bound session id.
func (c *Conversation) SessionID() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.ID == nil {
		return 0, false
	}
	return *c.session.ID, true
}

// Restore replaces the transcript with previously saved elements. It
// emits no events and fails while an answer is streaming.
func (c *Conversation) Restore(elements []Element) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openID != uuid.Nil {
		return ErrAnswerInProgress
	}
	c.elements = append([]Element(nil), elements...)
	return nil
}
