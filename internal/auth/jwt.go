package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrSecretNotConfigured = errors.New("session secret not configured")
	ErrInvalidToken        = errors.New("invalid session token")
)

const issuer = "portal"

// SessionClaims represents the JWT claims stored in the session cookie
type SessionClaims struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken,omitempty"`
	ProjectID    string       `json:"projectId,omitempty"`
	User         UserIdentity `json:"user"`
	jwt.RegisteredClaims
}

// Manager signs and verifies session tokens with a shared HMAC secret
type Manager struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewManager creates a session manager. An empty secret yields a manager
// that refuses to issue tokens and rejects every token it is given.
func NewManager(secret string, maxAge time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// MaxAge returns the lifetime of newly issued sessions
func (m *Manager) MaxAge() time.Duration {
	return m.maxAge
}

// Issue signs a session and returns the token with its expiry
func (m *Manager) Issue(s *Session) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, ErrSecretNotConfigured
	}

	now := m.now()
	expiresAt := now.Add(m.maxAge)

	claims := SessionClaims{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ProjectID:    s.ProjectID,
		User:         s.User,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   s.User.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify validates a session token and returns the session it carries
func (m *Manager) Verify(tokenString string) (*Session, error) {
	if len(m.secret) == 0 {
		return nil, ErrSecretNotConfigured
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing access token", ErrInvalidToken)
	}

	return &Session{
		AccessToken:  claims.AccessToken,
		RefreshToken: claims.RefreshToken,
		ProjectID:    claims.ProjectID,
		User:         claims.User,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}
