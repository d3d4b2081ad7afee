// Package server is a self-contained development backend. It serves the
// same HTTP and websocket surface as the Corbo backend from memory, so the
// client can be run and tested without network access.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nomdev/corbo/internal/api"
	"github.com/nomdev/corbo/internal/apidate"
	"github.com/nomdev/corbo/internal/auth"
	"github.com/nomdev/corbo/internal/models"
)

// DefaultCode is the verification code accepted for every phone number
// unless WithVerificationCode overrides it.
const DefaultCode = "123456"

const headerAuthToken = "authToken"

var (
	errUnauthorized    = errors.New("invalid or expired token")
	errSessionNotFound = errors.New("session not found")
)

// Answerer produces the full answer to a question. Backend streams it in
// word-sized frames.
type Answerer func(question string, contactsOnly bool, stories []models.Story) (string, []models.Entity)

type user struct {
	id       int64
	phone    string
	userData *models.UserData
}

type session struct {
	models.Session
	owner        int64
	interactions []models.Interaction // oldest first
}

type question struct {
	api.Question
	owner    int64
	feedback []api.FeedbackEntry
}

// Backend holds all server state in memory. It is safe for concurrent use.
type Backend struct {
	mu            sync.Mutex
	usersByPhone  map[string]*user
	refreshTokens map[string]int64
	sessions      map[int64]*session
	stories       map[int64][]models.Story
	questions     map[int64]*question
	nextID        int64

	code          string
	tokenLifetime time.Duration
	frameDelay    time.Duration
	answer        Answerer
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// WithVerificationCode sets the code accepted by verifyCode.
func WithVerificationCode(code string) Option {
	return func(b *Backend) { b.code = code }
}

// WithTokenLifetime sets how long issued access tokens stay valid.
// Lifetimes are rounded down to whole minutes, with a minimum of one.
func WithTokenLifetime(d time.Duration) Option {
	return func(b *Backend) { b.tokenLifetime = d }
}

// WithFrameDelay pauses between streamed answer frames.
func WithFrameDelay(d time.Duration) Option {
	return func(b *Backend) { b.frameDelay = d }
}

// WithAnswerer replaces the canned answer generator.
func WithAnswerer(a Answerer) Option {
	return func(b *Backend) { b.answer = a }
}

// NewBackend creates an empty backend.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		usersByPhone:  make(map[string]*user),
		refreshTokens: make(map[string]int64),
		sessions:      make(map[int64]*session),
		stories:       make(map[int64][]models.Story),
		questions:     make(map[int64]*question),
		code:          DefaultCode,
		tokenLifetime: time.Hour,
		answer:        storyAnswer,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Handler returns the routes of the backend wrapped in request logging.
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+api.PathRefreshTokenLogin, b.handleRefreshTokenLogin)
	mux.HandleFunc("POST "+api.PathPhoneNumberLogin, b.handlePhoneNumberLogin)
	mux.HandleFunc("POST "+api.PathVerifyCode, b.handleVerifyCode)
	mux.HandleFunc("POST "+api.PathUpdateUserData, b.authed(b.handleUpdateUserData))
	mux.HandleFunc("POST "+api.PathListSessions, b.authed(b.handleListSessions))
	mux.HandleFunc("POST "+api.PathListSessionInteractions, b.authed(b.handleListSessionInteractions))
	mux.HandleFunc("POST "+api.PathDeleteSession, b.authed(b.handleDeleteSession))
	mux.HandleFunc("POST "+api.PathRenameSession, b.authed(b.handleRenameSession))
	mux.HandleFunc("POST "+api.PathSearchStories, b.authed(b.handleSearchStories))
	mux.HandleFunc("POST "+api.PathCreateStory, b.authed(b.handleCreateStory))
	mux.HandleFunc("POST "+api.PathSubmitQuestionFeedback, b.authed(b.handleSubmitQuestionFeedback))
	mux.HandleFunc("POST "+api.PathQuestionDetails, b.authed(b.handleQuestionDetails))
	mux.HandleFunc("POST "+api.PathAskWithStream, b.authed(b.handleAskWithStream))
	mux.HandleFunc("GET "+api.PathAskWithStreamWS, b.authed(b.handleAskWithStreamWS))
	mux.HandleFunc("POST "+api.PathWhisperTranscript, b.authed(b.handleWhisperTranscript))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	return LoggingMiddleware(b.logger)(mux)
}

type authedHandler func(w http.ResponseWriter, r *http.Request, userID int64)

// authed rejects requests without a valid, unexpired access token.
func (b *Backend) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := auth.ParseAccessToken(r.Header.Get(headerAuthToken))
		if err != nil || !b.now().Before(claims.ExpiresAt()) {
			writeError(w, http.StatusUnauthorized, errUnauthorized.Error())
			return
		}
		next(w, r, claims.UserID)
	}
}

// issueLocked creates a token pair for u. Callers hold b.mu.
func (b *Backend) issueLocked(u *user) (api.VerifyCodeResponse, error) {
	minutes := int64(b.tokenLifetime / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	token, err := auth.EncodeAccessToken(auth.Claims{
		UserID:         u.id,
		MinutesTimeout: minutes,
		CreationTime:   apidate.New(b.now().Truncate(time.Second)),
	})
	if err != nil {
		return api.VerifyCodeResponse{}, err
	}

	refresh := uuid.NewString()
	b.refreshTokens[refresh] = u.id

	return api.VerifyCodeResponse{
		Token:        token,
		RefreshToken: refresh,
		UserData:     u.userData,
		UserID:       u.id,
		PhoneNumber:  u.phone,
	}, nil
}

func (b *Backend) userByIDLocked(id int64) *user {
	for _, u := range b.usersByPhone {
		if u.id == id {
			return u
		}
	}
	return nil
}

func (b *Backend) newIDLocked() int64 {
	b.nextID++
	return b.nextID
}

// sessionLocked returns the session id owned by userID, creating a new
// one when id is nil. Callers hold b.mu.
func (b *Backend) sessionLocked(userID int64, id *int64, title string) (*session, error) {
	if id != nil {
		s, ok := b.sessions[*id]
		if !ok || s.owner != userID {
			return nil, errSessionNotFound
		}
		return s, nil
	}

	sid := b.newIDLocked()
	s := &session{
		Session: models.Session{
			ID:            &sid,
			UserAccountID: &userID,
			CreatedTime:   apidate.Ptr(b.now().Truncate(time.Second)),
		},
		owner: userID,
	}
	if title = titleFrom(title); title != "" {
		s.Title = &title
	}
	b.sessions[sid] = s
	return s, nil
}

// recordLocked appends an interaction to s. Callers hold b.mu.
func (b *Backend) recordLocked(s *session, kind models.Intent, input string, answer *models.AnswerChunk, stories *models.StoryListOutput) {
	s.interactions = append(s.interactions, models.Interaction{
		ID:          b.newIDLocked(),
		SessionID:   *s.ID,
		Input:       input,
		Type:        &kind,
		CreatedTime: apidate.New(b.now().Truncate(time.Second)),
		Answer:      answer,
		Stories:     stories,
	})
}

const maxTitleLen = 40

func titleFrom(input string) string {
	input = strings.Join(strings.Fields(input), " ")
	if r := []rune(input); len(r) > maxTitleLen {
		return string(r[:maxTitleLen-3]) + "..."
	}
	return input
}

// matchStories returns the stories sharing at least one word of three or
// more letters with input, newest first.
func matchStories(stories []models.Story, input string) []models.Story {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(input)) {
		w = strings.Trim(w, ".,!?;:'\"")
		if len([]rune(w)) >= 3 {
			words = append(words, w)
		}
	}

	var out []models.Story
	for i := len(stories) - 1; i >= 0; i-- {
		content := strings.ToLower(stories[i].Content)
		for _, w := range words {
			if strings.Contains(content, w) {
				out = append(out, stories[i])
				break
			}
		}
	}
	return out
}

func storyAnswer(question string, _ bool, stories []models.Story) (string, []models.Entity) {
	matches := matchStories(stories, question)
	if len(matches) == 0 {
		return "I don't know that yet. Tell me a story about it and I'll remember.", nil
	}
	return "From your stories: " + matches[0].Content, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorMessage{Message: &msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return false
	}
	return true
}
