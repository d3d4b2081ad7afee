package server

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nomdev/corbo/internal/api"
	"github.com/nomdev/corbo/internal/apidate"
	"github.com/nomdev/corbo/internal/models"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ask records the question and returns the frames of its answer: the
// session first, then the text word by word, then the question id with
// the entities.
func (b *Backend) ask(userID int64, req api.AskRequest) ([]models.AnswerChunk, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.sessionLocked(userID, req.SessionID, req.Question)
	if err != nil {
		return nil, err
	}

	text, entities := b.answer(req.Question, req.SearchContactOnly, slices.Clone(b.stories[userID]))
	if entities == nil {
		entities = []models.Entity{}
	}

	qid := b.newIDLocked()
	b.questions[qid] = &question{
		Question: api.Question{
			ID:            &qid,
			UserAccountID: &userID,
			Question:      &req.Question,
			Answer:        &text,
			CreatedTime:   apidate.Ptr(b.now().Truncate(time.Second)),
			Session:       &s.Session,
		},
		owner: userID,
	}

	kind := models.IntentAskQuestion
	if req.SearchContactOnly {
		kind = models.IntentSearchYourContacts
	}
	b.recordLocked(s, kind, req.Question, &models.AnswerChunk{
		Data:       &text,
		QuestionID: &qid,
		SessionID:  s.ID,
		EntityList: entities,
	}, nil)

	frames := []models.AnswerChunk{{SessionID: s.ID}}
	for _, word := range strings.SplitAfter(text, " ") {
		if word != "" {
			frames = append(frames, models.AnswerChunk{Data: &word})
		}
	}
	frames = append(frames, models.AnswerChunk{QuestionID: &qid, EntityList: entities})
	return frames, nil
}

// pause waits the configured frame delay.
func (b *Backend) pause(ctx context.Context) error {
	if b.frameDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(b.frameDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func encodeFrame(chunk models.AnswerChunk) ([]byte, error) {
	data, err := json.Marshal(chunk)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// handleAskWithStream streams the answer as newline-delimited JSON,
// flushing after every frame.
func (b *Backend) handleAskWithStream(w http.ResponseWriter, r *http.Request, userID int64) {
	var req api.AskRequest
	if !decodeBody(w, r, &req) {
		return
	}

	frames, err := b.ask(userID, req)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	for _, f := range frames {
		if err := b.pause(r.Context()); err != nil {
			return
		}
		data, err := encodeFrame(f)
		if err != nil {
			b.logger.Error("failed to encode frame", "error", err)
			return
		}
		if _, err := w.Write(data); err != nil {
			b.logger.Debug("client went away", "error", err)
			return
		}
		if err := rc.Flush(); err != nil {
			b.logger.Warn("failed to flush frame", "error", err)
		}
	}
}

// handleAskWithStreamWS reads one AskRequest message, sends the answer
// frames as text messages and closes normally.
func (b *Backend) handleAskWithStreamWS(w http.ResponseWriter, r *http.Request, userID int64) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var req api.AskRequest
	if err := conn.ReadJSON(&req); err != nil {
		b.logger.Warn("failed to read ask request", "error", err)
		return
	}

	frames, err := b.ask(userID, req)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		return
	}

	for _, f := range frames {
		if err := b.pause(r.Context()); err != nil {
			return
		}
		data, err := encodeFrame(f)
		if err != nil {
			b.logger.Error("failed to encode frame", "error", err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			b.logger.Debug("client went away", "error", err)
			return
		}
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
