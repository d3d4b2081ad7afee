package server

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nomdev/corbo/internal/api"
	"github.com/nomdev/corbo/internal/apidate"
	"github.com/nomdev/corbo/internal/models"
)

// maxUploadSize bounds whisperTranscript uploads.
const maxUploadSize = 25 << 20

func (b *Backend) handlePhoneNumberLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		writeError(w, http.StatusBadRequest, "phone number is required")
		return
	}
	b.logger.Info("verification code issued", "phone", req.PhoneNumber, "code", b.code)
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
		Code        string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code != b.code {
		writeError(w, http.StatusUnauthorized, "wrong verification code")
		return
	}

	b.mu.Lock()
	u, ok := b.usersByPhone[req.PhoneNumber]
	if !ok {
		u = &user{id: b.newIDLocked(), phone: req.PhoneNumber}
		b.usersByPhone[req.PhoneNumber] = u
	}
	resp, err := b.issueLocked(u)
	b.mu.Unlock()

	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, resp)
}

// handleRefreshTokenLogin rotates the refresh token: the presented one
// stops working once a new pair is issued.
func (b *Backend) handleRefreshTokenLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	b.mu.Lock()
	userID, ok := b.refreshTokens[req.RefreshToken]
	var u *user
	if ok {
		u = b.userByIDLocked(userID)
	}
	if u == nil {
		b.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "unknown refresh token")
		return
	}
	delete(b.refreshTokens, req.RefreshToken)
	resp, err := b.issueLocked(u)
	b.mu.Unlock()

	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, resp)
}

func (b *Backend) handleUpdateUserData(w http.ResponseWriter, r *http.Request, userID int64) {
	var req models.UserData
	if !decodeBody(w, r, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.userByIDLocked(userID)
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	u.userData = &req
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) handleListSessions(w http.ResponseWriter, r *http.Request, userID int64) {
	b.mu.Lock()
	list := make([]models.Session, 0)
	for _, s := range b.sessions {
		if s.owner == userID {
			list = append(list, s.Session)
		}
	}
	b.mu.Unlock()

	// Newest first.
	slices.SortFunc(list, func(a, c models.Session) int {
		return cmp.Compare(*c.ID, *a.ID)
	})
	writeJSON(w, map[string]any{"sessionList": list})
}

type sessionRequest struct {
	SessionID int64  `json:"sessionId"`
	Title     string `json:"title"`
}

func (b *Backend) handleListSessionInteractions(w http.ResponseWriter, r *http.Request, userID int64) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	b.mu.Lock()
	s, err := b.sessionLocked(userID, &req.SessionID, "")
	var out models.SessionInteractions
	if err == nil {
		out.Session = s.Session
		out.InteractionList = make([]models.Interaction, 0, len(s.interactions))
		for i := len(s.interactions) - 1; i >= 0; i-- {
			out.InteractionList = append(out.InteractionList, s.interactions[i])
		}
	}
	b.mu.Unlock()

	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, out)
}

func (b *Backend) handleDeleteSession(w http.ResponseWriter, r *http.Request, userID int64) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	b.mu.Lock()
	_, err := b.sessionLocked(userID, &req.SessionID, "")
	if err == nil {
		delete(b.sessions, req.SessionID)
	}
	b.mu.Unlock()

	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) handleRenameSession(w http.ResponseWriter, r *http.Request, userID int64) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	b.mu.Lock()
	s, err := b.sessionLocked(userID, &req.SessionID, "")
	if err == nil {
		title := req.Title
		s.Title = &title
	}
	b.mu.Unlock()

	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) handleSearchStories(w http.ResponseWriter, r *http.Request, userID int64) {
	var req api.SearchStoriesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	b.mu.Lock()
	s, err := b.sessionLocked(userID, req.SessionID, req.Input)
	var resp api.SearchStoriesResponse
	if err == nil {
		resp.SessionID = s.ID
		resp.StoryList = make([]models.StoryWithEntities, 0)
		for _, story := range matchStories(b.stories[userID], req.Input) {
			resp.StoryList = append(resp.StoryList, models.StoryWithEntities{Story: &story})
		}
		b.recordLocked(s, models.IntentSearchYourStories, req.Input, nil, &models.StoryListOutput{
			SessionID: *s.ID,
			StoryList: resp.StoryList,
		})
	}
	b.mu.Unlock()

	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, resp)
}

// handleCreateStory stores a story. Stories captured in a chat are also
// recorded as an interaction of the chat's session, which is created when
// the chat has none yet.
func (b *Backend) handleCreateStory(w http.ResponseWriter, r *http.Request, userID int64) {
	var req api.CreateStoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		writeError(w, http.StatusBadRequest, "story is empty")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := apidate.New(b.now().Truncate(time.Second))
	story := models.Story{
		ID:               b.newIDLocked(),
		Content:          req.Input,
		UserAccountID:    userID,
		CreatedTime:      now,
		LastModifiedTime: now,
	}

	resp := api.CreateStoryResponse{ID: story.ID, Content: story.Content}
	if req.SessionID != nil || (req.InChat != nil && *req.InChat) {
		s, err := b.sessionLocked(userID, req.SessionID, req.Input)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		b.recordLocked(s, models.IntentAddStory, req.Input, nil, nil)
		resp.SessionID = s.ID
	}

	b.stories[userID] = append(b.stories[userID], story)
	writeJSON(w, resp)
}

func (b *Backend) handleSubmitQuestionFeedback(w http.ResponseWriter, r *http.Request, userID int64) {
	var req api.QuestionFeedback
	if !decodeBody(w, r, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.questions[req.QuestionID]
	if !ok || q.owner != userID {
		writeError(w, http.StatusNotFound, fmt.Sprintf("question %d not found", req.QuestionID))
		return
	}
	q.feedback = append(q.feedback, api.FeedbackEntry{
		ID:          b.newIDLocked(),
		QuestionID:  req.QuestionID,
		Feedback:    req.Feedback,
		CreatedTime: apidate.New(b.now().Truncate(time.Second)),
	})
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) handleQuestionDetails(w http.ResponseWriter, r *http.Request, userID int64) {
	var req struct {
		QuestionID int64 `json:"questionId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.questions[req.QuestionID]
	if !ok || q.owner != userID {
		writeError(w, http.StatusNotFound, fmt.Sprintf("question %d not found", req.QuestionID))
		return
	}
	question := q.Question
	writeJSON(w, api.QuestionDetails{
		Question: &question,
		Feedback: slices.Clone(q.feedback),
	})
}

// handleWhisperTranscript echoes text uploads back as the transcript;
// anything else is reported by size only.
func (b *Backend) handleWhisperTranscript(w http.ResponseWriter, r *http.Request, _ int64) {
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "recording too large")
			return
		}
		writeError(w, http.StatusBadRequest, "missing file part: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read file part: "+err.Error())
		return
	}
	parsed := time.Since(start)

	text := fmt.Sprintf("(%d bytes of audio)", len(data))
	if utf8.Valid(data) {
		text = strings.TrimSpace(string(data))
	}

	writeJSON(w, api.Transcript{
		FileSize:       fmt.Sprintf("%d", len(data)),
		Text:           text,
		RecordDuration: "0",
		Language:       "en",
		EstimatedCost:  "0",
		OperationTime: api.OperationTime{
			ParseMultipartFile:  parsed.String(),
			ExternalServiceCall: "0s",
			FullTime:            time.Since(start).String(),
		},
	})
}
