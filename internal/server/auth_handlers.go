package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/portal-dev/portal/internal/auth"
	"github.com/portal-dev/portal/internal/backend"
)

// SignupRequest is the signup body as received. Only the presence of the
// required fields is checked; the backend owns type and format validation.
type SignupRequest map[string]json.RawMessage

var signupRequiredFields = []string{"name", "email", "password"}

// missingFields reports whether a required field is absent, null or ""
func (r SignupRequest) missingFields() bool {
	for _, field := range signupRequiredFields {
		switch string(r[field]) {
		case "", "null", `""`:
			return true
		}
	}
	return false
}

// email returns the email for logging, or "" when it is not a string
func (r SignupRequest) email() string {
	var email string
	_ = json.Unmarshal(r["email"], &email)
	return email
}

// SigninRequest represents a sign-in request
type SigninRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SessionResponse is the public part of a session
type SessionResponse struct {
	User      auth.UserIdentity `json:"user"`
	ProjectID string            `json:"projectId,omitempty"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

const (
	msgMissingFields  = "Missing required fields"
	msgInvalidBody    = "Invalid request body"
	msgInternalError  = "Internal server error"
	msgUnauthorized   = "Unauthorized"
	msgSignupFailed   = "Signup failed"
	msgInvalidSignin  = "Invalid email or password"
	msgSessionExpired = "Session expired"
	msgBodyTooLarge   = "Request body too large"
)

// maxSignupBody bounds the forwarded signup payload
const maxSignupBody = 64 << 10

// bindRequired decodes the JSON body into req and checks required fields. An
// empty body counts as missing fields. On failure it has already written the
// 400 response.
func (s *Server) bindRequired(c *gin.Context, req any) bool {
	if err := json.NewDecoder(c.Request.Body).Decode(req); err != nil {
		if errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingFields})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return false
	}

	if err := s.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingFields})
		return false
	}
	return true
}

// @Summary Sign up
// @Description Forwards a new account to the backend
// @Router /api/auth/signup [post]
func (s *Server) signup(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSignupBody+1))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read signup body")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}
	if len(body) > maxSignupBody {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": msgBodyTooLarge})
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingFields})
		return
	}

	var req SignupRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}
	if req.missingFields() {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingFields})
		return
	}

	resp, err := s.backend.Do(c.Request.Context(), backend.Request{
		Method: http.MethodPost,
		Path:   backend.SignupPath,
		Body:   body,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Signup forward failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	if !resp.OK() {
		message, ok := resp.ErrorMessage()
		if !ok {
			message = msgSignupFailed
		}
		s.logger.Info().Int("status", resp.StatusCode).Str("email", req.email()).Msg("Backend rejected signup")
		c.JSON(resp.StatusCode, gin.H{"error": message})
		return
	}

	s.logger.Info().Str("email", req.email()).Msg("User signed up")
	c.Data(http.StatusOK, jsonContentType(resp), resp.Body)
}

// @Summary Sign in
// @Description Exchanges credentials for a session cookie
// @Router /api/auth/signin [post]
func (s *Server) signin(c *gin.Context) {
	var req SigninRequest
	if !s.bindRequired(c, &req) {
		return
	}

	tokens, resp, err := s.backend.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Login forward failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	if tokens == nil {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			c.JSON(resp.StatusCode, gin.H{"error": msgInvalidSignin})
			return
		}
		message, ok := resp.ErrorMessage()
		if !ok {
			message = msgInternalError
		}
		c.JSON(resp.StatusCode, gin.H{"error": message})
		return
	}

	session := sessionFromTokens(tokens, "")
	s.issueSession(c, session)
}

// @Summary Sign out
// @Router /api/auth/signout [post]
func (s *Server) signout(c *gin.Context) {
	if session, ok := GetSession(c); ok {
		s.logger.Info().Str("user_id", session.User.ID).Msg("User signed out")
	}
	s.sessions.Clear(c.Writer)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// @Summary Current session
// @Router /api/auth/session [get]
func (s *Server) getSession(c *gin.Context) {
	session, ok := GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
		return
	}

	c.JSON(http.StatusOK, SessionResponse{
		User:      session.User,
		ProjectID: session.ProjectID,
		ExpiresAt: session.ExpiresAt,
	})
}

// @Summary Refresh session
// @Description Trades the session's refresh token for a new access token
// @Router /api/auth/refresh [post]
func (s *Server) refresh(c *gin.Context) {
	current, ok := GetSession(c)
	if !ok || current.RefreshToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
		return
	}

	tokens, resp, err := s.backend.Refresh(c.Request.Context(), current.RefreshToken)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", current.User.ID).Msg("Refresh forward failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	if tokens == nil {
		s.sessions.Clear(c.Writer)
		status := resp.StatusCode
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"error": msgSessionExpired})
		return
	}

	session := sessionFromTokens(tokens, current.RefreshToken)
	if session.User.ID == "" {
		session.User = current.User
	}
	if session.ProjectID == "" {
		session.ProjectID = current.ProjectID
	}
	s.issueSession(c, session)
}

func (s *Server) issueSession(c *gin.Context, session *auth.Session) {
	expiresAt, err := s.sessions.Establish(c.Writer, session)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to issue session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	s.logger.Info().Str("user_id", session.User.ID).Msg("Session issued")
	c.JSON(http.StatusOK, SessionResponse{
		User:      session.User,
		ProjectID: session.ProjectID,
		ExpiresAt: expiresAt,
	})
}

// sessionFromTokens keeps previousRefresh when the backend does not rotate it
func sessionFromTokens(tokens *backend.TokenResponse, previousRefresh string) *auth.Session {
	refreshToken := tokens.RefreshToken
	if refreshToken == "" {
		refreshToken = previousRefresh
	}
	return &auth.Session{
		AccessToken:  tokens.AccessToken,
		RefreshToken: refreshToken,
		ProjectID:    tokens.ProjectID,
		User: auth.UserIdentity{
			ID:    tokens.User.ID,
			Email: tokens.User.Email,
			Name:  tokens.User.Name,
		},
	}
}

func jsonContentType(resp *backend.Response) string {
	if resp.ContentType != "" {
		return resp.ContentType
	}
	return "application/json"
}
