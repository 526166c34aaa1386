package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

const (
	// CookieName is the session cookie used on plain-HTTP deployments
	CookieName = "next-auth.session-token"
	// SecureCookieName is the session cookie used when the site is served over HTTPS
	SecureCookieName = "__Secure-next-auth.session-token"

	bearerPrefix = "Bearer "
)

var ErrNoSession = errors.New("no session")

// Resolver reads the session from an inbound request
type Resolver struct {
	manager *Manager
	secure  bool
}

// NewResolver creates a resolver. When secure is set the cookie is written
// with the __Secure- prefix and the Secure attribute.
func NewResolver(manager *Manager, secure bool) *Resolver {
	return &Resolver{manager: manager, secure: secure}
}

// CookieName returns the name of the cookie this resolver writes
func (r *Resolver) CookieName() string {
	if r.secure {
		return SecureCookieName
	}
	return CookieName
}

// Resolve returns the session carried by the request cookie, falling back to
// an Authorization bearer header holding a session token.
func (r *Resolver) Resolve(req *http.Request) (*Session, error) {
	token := r.tokenFromRequest(req)
	if token == "" {
		return nil, ErrNoSession
	}
	return r.manager.Verify(token)
}

func (r *Resolver) tokenFromRequest(req *http.Request) string {
	for _, name := range []string{r.CookieName(), CookieName, SecureCookieName} {
		if c, err := req.Cookie(name); err == nil && c.Value != "" {
			return c.Value
		}
	}

	authHeader := req.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
	}
	return ""
}

// Establish signs the session and writes it as a cookie
func (r *Resolver) Establish(w http.ResponseWriter, s *Session) (time.Time, error) {
	token, expiresAt, err := r.manager.Issue(s)
	if err != nil {
		return time.Time{}, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     r.CookieName(),
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(r.manager.MaxAge().Seconds()),
		HttpOnly: true,
		Secure:   r.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return expiresAt, nil
}

// Clear removes the session cookie
func (r *Resolver) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     r.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
