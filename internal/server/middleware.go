package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/portal-dev/portal/internal/auth"
	"github.com/portal-dev/portal/internal/guard"
	"github.com/portal-dev/portal/internal/metrics"
)

const (
	requestIDHeader = "X-Request-ID"
	sessionKey      = "session"
	requestIDKey    = "request_id"
)

func setSession(c *gin.Context, session *auth.Session) {
	c.Set(sessionKey, session)
}

// GetSession returns the session resolved for this request, if any
func GetSession(c *gin.Context) (*auth.Session, bool) {
	v, exists := c.Get(sessionKey)
	if !exists {
		return nil, false
	}

	session, ok := v.(*auth.Session)
	return session, ok && session.Authenticated()
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg(message)
	c.AbortWithStatusJSON(statusCode, gin.H{"error": message})
}

// requestIDMiddleware propagates or assigns a request ID
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = ulid.Make().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("request_id", c.GetString(requestIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// sessionMiddleware resolves the session cookie once per request. A missing
// or unverifiable token leaves the request anonymous.
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := s.sessions.Resolve(c.Request)
		switch {
		case err == nil:
			setSession(c, session)
		case errors.Is(err, auth.ErrNoSession):
		default:
			s.logger.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("Ignoring invalid session token")
		}
		c.Next()
	}
}

// requireSession rejects requests without a valid session
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetSession(c); !ok {
			respondWithError(c, s.logger, http.StatusUnauthorized, auth.ErrNoSession, "Unauthorized")
			return
		}
		c.Next()
	}
}

// routeGuardMiddleware redirects between auth pages and protected pages
func (s *Server) routeGuardMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !guard.Matches(path) {
			c.Next()
			return
		}

		_, authenticated := GetSession(c)
		decision := guard.Decide(authenticated, path, c.Request.URL.RawQuery)
		if decision.Pass() {
			c.Next()
			return
		}

		metrics.RecordRedirect(decision.Target())
		c.Redirect(http.StatusTemporaryRedirect, decision.Redirect)
		c.Abort()
	}
}

const maxLimiterBuckets = 10000

// clientLimiter applies a per-client token bucket. A nil limiter allows everything.
type clientLimiter struct {
	mu      sync.Mutex
	perMin  int
	buckets map[string]*rate.Limiter
}

func newClientLimiter(perMinute int) *clientLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &clientLimiter{
		perMin:  perMinute,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *clientLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= maxLimiterBuckets {
			l.buckets = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)
		l.buckets[key] = lim
	}
	return lim.Allow()
}

func (l *clientLimiter) middleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		if !l.allow(c.ClientIP()) {
			respondWithError(c, log, http.StatusTooManyRequests, errors.New("rate limited"), "Too many requests")
			return
		}
		c.Next()
	}
}
