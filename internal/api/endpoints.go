package api

import (
	"context"
	"time"

	"github.com/nomdev/corbo/internal/auth"
	"github.com/nomdev/corbo/internal/metrics"
	"github.com/nomdev/corbo/internal/models"
)

// Backend paths.
const (
	PathRefreshTokenLogin       = "/api/core/refreshTokenLogin"
	PathPhoneNumberLogin        = "/api/core/phoneNumberLogin"
	PathVerifyCode              = "/api/core/verifyCode"
	PathUpdateUserData          = "/api/core/updateUserData"
	PathListSessions            = "/api/core/listSessions"
	PathListSessionInteractions = "/api/core/listSessionInteractions"
	PathDeleteSession           = "/api/core/deleteSession"
	PathRenameSession           = "/api/core/renameSession"
	PathSearchStories           = "/api/core/searchStories"
	PathCreateStory             = "/api/core/createStory"
	PathSubmitQuestionFeedback  = "/api/core/submitQuestionFeedback"
	PathQuestionDetails         = "/api/core/questionDetails"
	PathAskWithStream           = "/api/core/askWithStream"
	PathAskWithStreamWS         = "/api/core/askWithStream/ws"
	PathWhisperTranscript       = "/api/playground/whisperTranscript"
)

// RefreshTokenLogin exchanges a refresh token for a new token pair.
func (c *Client) RefreshTokenLogin(ctx context.Context, refreshToken string) (*VerifyCodeResponse, error) {
	resp, err := Call[VerifyCodeResponse](ctx, c, PathRefreshTokenLogin,
		refreshTokenRequest{RefreshToken: refreshToken}, WithoutAuth())
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// RedeemRefreshToken implements auth.Redeemer.
func (c *Client) RedeemRefreshToken(ctx context.Context, refreshToken string) (auth.Grant, error) {
	start := time.Now()
	resp, err := c.RefreshTokenLogin(ctx, refreshToken)
	c.metrics.RecordResult(metrics.OpTokenRefresh, time.Since(start), err)
	if err != nil {
		return auth.Grant{}, err
	}
	return resp.Grant(), nil
}

// Grant converts the response into credentials for the auth provider.
func (r *VerifyCodeResponse) Grant() auth.Grant {
	return auth.Grant{AccessToken: r.Token, RefreshToken: r.RefreshToken, UserID: r.UserID}
}

// PhoneNumberLogin asks the backend to text a verification code.
func (c *Client) PhoneNumberLogin(ctx context.Context, phoneNumber string) error {
	_, err := Call[Empty](ctx, c, PathPhoneNumberLogin,
		phoneNumberLoginRequest{PhoneNumber: phoneNumber}, WithoutAuth())
	return err
}

// VerifyCode completes a phone number login.
func (c *Client) VerifyCode(ctx context.Context, phoneNumber, code string) (*VerifyCodeResponse, error) {
	resp, err := Call[VerifyCodeResponse](ctx, c, PathVerifyCode,
		verifyCodeRequest{PhoneNumber: phoneNumber, Code: code}, WithoutAuth())
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateUserData stores the user's profile.
func (c *Client) UpdateUserData(ctx context.Context, data models.UserData) error {
	_, err := Call[Empty](ctx, c, PathUpdateUserData, data)
	return err
}

// ListSessions returns the user's sessions.
func (c *Client) ListSessions(ctx context.Context) ([]models.Session, error) {
	resp, err := Call[listSessionsResponse](ctx, c, PathListSessions, nil)
	if err != nil {
		return nil, err
	}
	return resp.SessionList, nil
}

// ListSessionInteractions returns a session with its interactions, newest first.
func (c *Client) ListSessionInteractions(ctx context.Context, sessionID int64) (*models.SessionInteractions, error) {
	resp, err := Call[models.SessionInteractions](ctx, c, PathListSessionInteractions,
		sessionRequest{SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteSession deletes a session and its interactions.
func (c *Client) DeleteSession(ctx context.Context, sessionID int64) error {
	_, err := Call[Empty](ctx, c, PathDeleteSession, sessionRequest{SessionID: sessionID})
	return err
}

// RenameSession sets a session's title.
func (c *Client) RenameSession(ctx context.Context, sessionID int64, title string) error {
	_, err := Call[Empty](ctx, c, PathRenameSession,
		renameSessionRequest{SessionID: sessionID, Title: title})
	return err
}

// SearchStories runs a story search, recording it in the session.
func (c *Client) SearchStories(ctx context.Context, req SearchStoriesRequest) (*SearchStoriesResponse, error) {
	resp, err := Call[SearchStoriesResponse](ctx, c, PathSearchStories, req)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateStory captures a story.
func (c *Client) CreateStory(ctx context.Context, req CreateStoryRequest) (*CreateStoryResponse, error) {
	resp, err := Call[CreateStoryResponse](ctx, c, PathCreateStory, req)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitQuestionFeedback rates an answer.
func (c *Client) SubmitQuestionFeedback(ctx context.Context, fb QuestionFeedback) error {
	_, err := Call[Empty](ctx, c, PathSubmitQuestionFeedback, fb)
	return err
}

// QuestionDetails returns a question with its feedback.
func (c *Client) QuestionDetails(ctx context.Context, questionID int64) (*QuestionDetails, error) {
	resp, err := Call[QuestionDetails](ctx, c, PathQuestionDetails,
		questionDetailsRequest{QuestionID: questionID})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
