package api

import (
	"github.com/nomdev/corbo/internal/apidate"
	"github.com/nomdev/corbo/internal/models"
)

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type phoneNumberLoginRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type verifyCodeRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Code        string `json:"code"`
}

// VerifyCodeResponse is returned by a code verification or a refresh token login.
type VerifyCodeResponse struct {
	Token        string           `json:"token"`
	RefreshToken string           `json:"refreshToken"`
	UserData     *models.UserData `json:"userData,omitempty"`
	UserID       int64            `json:"userId"`
	PhoneNumber  string           `json:"phoneNumber"`
}

type listSessionsResponse struct {
	SessionList []models.Session `json:"sessionList"`
}

type sessionRequest struct {
	SessionID int64 `json:"sessionId"`
}

type renameSessionRequest struct {
	SessionID int64  `json:"sessionId"`
	Title     string `json:"title"`
}

// SearchStoriesRequest searches the user's stories.
type SearchStoriesRequest struct {
	Input     string `json:"input"`
	SessionID *int64 `json:"sessionId,omitempty"`
}

// SearchStoriesResponse lists matching stories and the session the search was recorded in.
type SearchStoriesResponse struct {
	StoryList []models.StoryWithEntities `json:"storyList"`
	SessionID *int64                     `json:"sessionId,omitempty"`
}

// CreateStoryRequest captures a new story.
type CreateStoryRequest struct {
	Input     string           `json:"input"`
	Location  *models.Location `json:"location,omitempty"`
	SessionID *int64           `json:"sessionId,omitempty"`
	InChat    *bool            `json:"inChat,omitempty"`
}

// CreateStoryResponse is the stored story.
type CreateStoryResponse struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	SessionID *int64 `json:"sessionId,omitempty"`
}

// QuestionFeedback rates an answer.
type QuestionFeedback struct {
	QuestionID int64  `json:"questionId"`
	Feedback   string `json:"feedback"`
	IsPositive bool   `json:"isPositive"`
	IsHarmful  bool   `json:"isHarmful"`
	NotTrue    bool   `json:"notTrue"`
	NotHelpful bool   `json:"notHelpful"`
}

type questionDetailsRequest struct {
	QuestionID int64 `json:"questionId"`
}

// Question is a stored question with its final answer.
type Question struct {
	ID            *int64          `json:"id,omitempty"`
	UserAccountID *int64          `json:"userAccountId,omitempty"`
	Question      *string         `json:"question,omitempty"`
	Answer        *string         `json:"answer,omitempty"`
	CreatedTime   *apidate.Time   `json:"createdTime,omitempty"`
	Session       *models.Session `json:"session,omitempty"`
}

// FeedbackEntry is feedback previously submitted for a question.
type FeedbackEntry struct {
	ID          int64        `json:"id"`
	QuestionID  int64        `json:"questionId"`
	Feedback    string       `json:"feedback"`
	CreatedTime apidate.Time `json:"createdTime"`
}

// QuestionDetails is a question together with its feedback.
type QuestionDetails struct {
	Question *Question       `json:"question,omitempty"`
	Feedback []FeedbackEntry `json:"feedback,omitempty"`
}

// AskRequest starts a streamed answer.
type AskRequest struct {
	Question          string `json:"question"`
	SessionID         *int64 `json:"sessionId,omitempty"`
	SearchContactOnly bool   `json:"searchContactOnly"`
}

// OperationTime breaks down where a transcription spent its time.
type OperationTime struct {
	ParseMultipartFile  string `json:"parseMultipartFile"`
	ExternalServiceCall string `json:"externalServiceCall"`
	FullTime            string `json:"fullTime"`
}

// Transcript is the result of an audio transcription.
type Transcript struct {
	FileSize       string        `json:"fileSize"`
	Text           string        `json:"text"`
	RecordDuration string        `json:"recordDuration"`
	Language       string        `json:"languaje"`
	TokensUsed     int64         `json:"tokensUsed"`
	EstimatedCost  string        `json:"estimatedCost"`
	OperationTime  OperationTime `json:"operationTime"`
}
