package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/portal-dev/portal/internal/backend"
)

const (
	projectIDHeader = "X-Project-ID"

	// maxWaitlistBody bounds the forwarded form payload
	maxWaitlistBody = 64 << 10
)

// @Summary List onboarding tasks
// @Description Forwards to the backend with the session's access token
// @Security SessionCookie
// @Router /api/onboarding/tasks [get]
func (s *Server) listOnboardingTasks(c *gin.Context) {
	session, _ := GetSession(c)

	header := http.Header{}
	if projectID, ok := s.effectiveProjectID(c, session); ok {
		header.Set(projectIDHeader, projectID)
	}

	resp, err := s.backend.Do(c.Request.Context(), backend.Request{
		Method:      http.MethodGet,
		Path:        backend.OnboardingTasksPath,
		AccessToken: session.AccessToken,
		Header:      header,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", session.User.ID).Msg("Failed to fetch onboarding tasks")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	c.Data(resp.StatusCode, jsonContentType(resp), resp.Body)
}

// @Summary Join waitlist
// @Description Forwards the JSON body as-is and mirrors the backend status
// @Router /api/waitlist [post]
func (s *Server) joinWaitlist(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWaitlistBody+1))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read waitlist body")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}
	if len(body) > maxWaitlistBody {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": msgBodyTooLarge})
		return
	}
	if !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	resp, err := s.backend.Do(c.Request.Context(), backend.Request{
		Method: http.MethodPost,
		Path:   backend.WaitlistPath,
		Body:   body,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Waitlist forward failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	if len(resp.Body) == 0 {
		c.Status(resp.StatusCode)
		return
	}
	c.Data(resp.StatusCode, jsonContentType(resp), resp.Body)
}
