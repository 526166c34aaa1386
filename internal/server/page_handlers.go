package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/portal-dev/portal/internal/auth"
	"github.com/portal-dev/portal/internal/backend"
	"github.com/portal-dev/portal/internal/guard"
	"github.com/portal-dev/portal/internal/seo"
	"github.com/portal-dev/portal/internal/workspace"
)

// statsTimeout bounds the server-side widget fetch so a slow backend only
// delays the dashboard shell, never blocks it.
const statsTimeout = 2 * time.Second

// StatCard is one dashboard metric as reported by the backend
type StatCard struct {
	Label    string  `json:"label"`
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
}

type pageData struct {
	Meta          seo.Metadata
	Path          string
	Section       string
	Session       *auth.Session
	Impersonation *workspace.Impersonation
	ProjectID     string
	Stats         []StatCard
	StatsLoading  bool
	ReturnTo      string
}

// @Router /robots.txt [get]
func (s *Server) robots(c *gin.Context) {
	c.String(http.StatusOK, s.seo.Robots())
}

// @Router /sitemap.xml [get]
func (s *Server) sitemap(c *gin.Context) {
	out, err := s.seo.Sitemap()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to render sitemap")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", out)
}

// @Summary Page metadata
// @Param path query string false "Page path"
// @Router /api/seo/metadata [get]
func (s *Server) pageMetadata(c *gin.Context) {
	c.JSON(http.StatusOK, s.seo.Metadata(c.DefaultQuery("path", "/")))
}

// renderPage renders the HTML shell for marketing, auth and dashboard pages
func (s *Server) renderPage(c *gin.Context) {
	path := c.Request.URL.Path

	data := pageData{
		Meta: s.seo.Metadata(path),
		Path: path,
	}

	switch guard.Classify(path) {
	case guard.AuthPage:
		data.ReturnTo = safeReturnTo(c.Query(guard.ReturnToParam))
		c.HTML(http.StatusOK, "auth.html", data)
		return
	case guard.ProtectedPage:
		session, _ := GetSession(c)
		data.Session = session
		data.Section = strings.Trim(strings.TrimPrefix(path, guard.DashboardPath), "/")

		state, err := s.workspace.Get(c.Request.Context(), session.User.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", session.User.ID).Msg("Failed to load workspace state")
		}
		data.Impersonation = state.Impersonation
		data.ProjectID, _ = state.EffectiveProjectID(session.ProjectID)

		data.Stats, err = s.fetchStats(c.Request.Context(), session, data.ProjectID)
		if err != nil {
			s.logger.Debug().Err(err).Msg("Dashboard stats unavailable")
			data.StatsLoading = true
		}
		c.HTML(http.StatusOK, "dashboard.html", data)
		return
	}

	c.HTML(http.StatusOK, "marketing.html", data)
}

func (s *Server) fetchStats(ctx context.Context, session *auth.Session, projectID string) ([]StatCard, error) {
	ctx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	header := http.Header{}
	if projectID != "" {
		header.Set(projectIDHeader, projectID)
	}

	resp, err := s.backend.Do(ctx, backend.Request{
		Method:      http.MethodGet,
		Path:        backend.DashboardStatsPath,
		AccessToken: session.AccessToken,
		Header:      header,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, backend.StatusError(resp)
	}

	var payload struct {
		Stats []StatCard `json:"stats"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, err
	}
	return payload.Stats, nil
}

// safeReturnTo only allows same-site relative paths through the sign-in flow
func safeReturnTo(from string) string {
	if !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.HasPrefix(from, "/\\") {
		return guard.DashboardPath
	}
	return from
}
