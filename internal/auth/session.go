package auth

import "time"

// UserIdentity is the user the session belongs to, as reported by the backend at sign-in
type UserIdentity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Session is the credential bundle carried in the signed session cookie.
// Handlers treat it as read-only.
type Session struct {
	AccessToken  string       `json:"-"`
	RefreshToken string       `json:"-"`
	ProjectID    string       `json:"projectId,omitempty"`
	User         UserIdentity `json:"user"`
	ExpiresAt    time.Time    `json:"expiresAt"`
}

// Authenticated reports whether the session carries a backend access token
func (s *Session) Authenticated() bool {
	return s != nil && s.AccessToken != ""
}
