package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portal-dev/portal/internal/auth"
	"github.com/portal-dev/portal/internal/backend"
	"github.com/portal-dev/portal/internal/config"
	"github.com/portal-dev/portal/internal/seo"
	"github.com/portal-dev/portal/internal/workspace"
)

const testSecret = "test-nextauth-secret"

// recordedRequest is what the fake backend saw
type recordedRequest struct {
	Method    string
	Path      string
	Auth      string
	ProjectID string
	Body      []byte
}

// fakeBackend stands in for the upstream REST service
type fakeBackend struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  http.HandlerFunc
	srv      *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	fb.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fb.mu.Lock()
		fb.requests = append(fb.requests, recordedRequest{
			Method:    r.Method,
			Path:      r.URL.Path,
			Auth:      r.Header.Get("Authorization"),
			ProjectID: r.Header.Get(projectIDHeader),
			Body:      body,
		})
		handler := fb.handler
		fb.mu.Unlock()

		r.Body = io.NopCloser(bytes.NewReader(body))
		if handler == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) respond(status int, body string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.handler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func (fb *fakeBackend) route(handler http.HandlerFunc) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.handler = handler
}

func (fb *fakeBackend) last(t *testing.T) recordedRequest {
	t.Helper()
	fb.mu.Lock()
	defer fb.mu.Unlock()
	require.NotEmpty(t, fb.requests, "backend was not called")
	return fb.requests[len(fb.requests)-1]
}

func (fb *fakeBackend) calls() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.requests)
}

type testEnv struct {
	server  *Server
	backend *fakeBackend
	manager *auth.Manager
	store   *workspace.Store
	handler http.Handler
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	fb := newFakeBackend(t)

	cfg := &config.Config{
		Server:   config.ServerConfig{Port: "0", AllowedOrigins: []string{"http://localhost:3000"}},
		Backend:  config.BackendConfig{BaseURL: fb.srv.URL, Timeout: 5 * time.Second},
		Session:  config.SessionConfig{Secret: testSecret, MaxAge: time.Hour, ImpersonationTTL: time.Hour},
		Site:     config.SiteConfig{URL: "https://example.com"},
		Database: config.DatabaseConfig{URL: filepath.Join(t.TempDir(), "portal.sqlite")},
	}
	for _, m := range mutate {
		m(cfg)
	}

	store, err := workspace.Open(cfg.Database.URL, cfg.Session.ImpersonationTTL)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	generator, err := seo.New(cfg.Site.URL)
	require.NoError(t, err)

	manager := auth.NewManager(cfg.Session.Secret, cfg.Session.MaxAge)

	srv, err := NewWithDependencies(cfg, zerolog.Nop(), "test", Dependencies{
		Backend:   backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout),
		Sessions:  auth.NewResolver(manager, false),
		Workspace: store,
		SEO:       generator,
	})
	require.NoError(t, err)

	return &testEnv{server: srv, backend: fb, manager: manager, store: store, handler: srv.Handler()}
}

func (e *testEnv) sessionCookie(t *testing.T, projectID string) *http.Cookie {
	t.Helper()
	token, _, err := e.manager.Issue(&auth.Session{
		AccessToken:  "access-123",
		RefreshToken: "refresh-123",
		ProjectID:    projectID,
		User:         auth.UserIdentity{ID: "usr_1", Email: "ada@example.com", Name: "Ada"},
	})
	require.NoError(t, err)
	return &http.Cookie{Name: auth.CookieName, Value: token}
}

func (e *testEnv) do(t *testing.T, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func TestNewWithDependencies_RequiresAll(t *testing.T) {
	_, err := NewWithDependencies(&config.Config{}, zerolog.Nop(), "test", Dependencies{})
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-abc")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-abc", rec.Header().Get(requestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodGet, "/health", "")
	rec := env.do(t, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "portal_http_requests_total")
}

func TestStart_ListenFailureReleasesResources(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Server.Port = "-1"
	})

	pruner, err := workspace.StartPruner(env.store, zerolog.Nop(), workspace.PruneSchedule)
	require.NoError(t, err)
	env.server.pruner = pruner

	err = env.server.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP server error")

	// The store is closed once Start returns
	_, err = env.store.Get(context.Background(), "usr_1")
	assert.Error(t, err)
}
