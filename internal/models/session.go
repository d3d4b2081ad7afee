package models

import "github.com/nomdev/corbo/internal/apidate"

// Session is a server-side conversation. Its ID is unknown until the first
// round trip that reveals it.
type Session struct {
	ID            *int64        `json:"id"`
	UserAccountID *int64        `json:"userAccountId"`
	Title         *string       `json:"title"`
	CreatedTime   *apidate.Time `json:"createdTime"`
}

// DisplayTitle returns the title or a placeholder for untitled sessions.
func (s Session) DisplayTitle() string {
	if s.Title != nil && *s.Title != "" {
		return *s.Title
	}
	return "Untitled session"
}

// UserData is the profile submitted after the first login.
type UserData struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}
