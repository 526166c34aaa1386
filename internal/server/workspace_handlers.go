package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/portal-dev/portal/internal/auth"
	"github.com/portal-dev/portal/internal/workspace"
)

// SelectProjectRequest represents a project switch. ProjectID is a pointer so
// that an explicit "" is accepted while an absent field is rejected.
type SelectProjectRequest struct {
	ProjectID *string `json:"projectId" validate:"required"`
}

// ImpersonationRequest starts support-mode access to another project
type ImpersonationRequest struct {
	ProjectID   *string `json:"projectId" validate:"required"`
	ProjectName string  `json:"projectName"`
	UserEmail   string  `json:"userEmail"`
}

// WorkspaceResponse is the workspace state with the resolved project
type WorkspaceResponse struct {
	workspace.State
	EffectiveProjectID *string `json:"effectiveProjectId"`
}

func newWorkspaceResponse(state workspace.State, session *auth.Session) WorkspaceResponse {
	resp := WorkspaceResponse{State: state}
	if id, ok := state.EffectiveProjectID(session.ProjectID); ok {
		resp.EffectiveProjectID = &id
	}
	return resp
}

// effectiveProjectID resolves the project a request acts on. A store failure
// degrades to the session's project.
func (s *Server) effectiveProjectID(c *gin.Context, session *auth.Session) (string, bool) {
	state, err := s.workspace.Get(c.Request.Context(), session.User.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", session.User.ID).Msg("Failed to load workspace state")
		return session.ProjectID, session.ProjectID != ""
	}
	return state.EffectiveProjectID(session.ProjectID)
}

// @Summary Get workspace state
// @Security SessionCookie
// @Router /api/workspace [get]
func (s *Server) getWorkspace(c *gin.Context) {
	session, _ := GetSession(c)

	state, err := s.workspace.Get(c.Request.Context(), session.User.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", session.User.ID).Msg("Failed to load workspace state")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	c.JSON(http.StatusOK, newWorkspaceResponse(state, session))
}

// @Summary Select project
// @Security SessionCookie
// @Router /api/workspace/project [put]
func (s *Server) selectProject(c *gin.Context) {
	session, _ := GetSession(c)

	var req SelectProjectRequest
	if !s.bindRequired(c, &req) {
		return
	}

	state, err := s.workspace.SelectProject(c.Request.Context(), session.User.ID, *req.ProjectID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", session.User.ID).Msg("Failed to select project")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	c.JSON(http.StatusOK, newWorkspaceResponse(state, session))
}

// @Summary Start impersonation
// @Security SessionCookie
// @Router /api/workspace/impersonation [put]
func (s *Server) startImpersonation(c *gin.Context) {
	session, _ := GetSession(c)

	var req ImpersonationRequest
	if !s.bindRequired(c, &req) {
		return
	}

	state, err := s.workspace.Impersonate(c.Request.Context(), session.User.ID, workspace.Impersonation{
		ProjectID:   *req.ProjectID,
		ProjectName: req.ProjectName,
		UserEmail:   req.UserEmail,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", session.User.ID).Msg("Failed to start impersonation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	s.logger.Info().
		Str("user_id", session.User.ID).
		Str("project_id", *req.ProjectID).
		Str("impersonated_email", req.UserEmail).
		Msg("Impersonation started")

	c.JSON(http.StatusOK, newWorkspaceResponse(state, session))
}

// @Summary Clear impersonation
// @Security SessionCookie
// @Router /api/workspace/impersonation [delete]
func (s *Server) clearImpersonation(c *gin.Context) {
	session, _ := GetSession(c)

	state, err := s.workspace.ClearImpersonation(c.Request.Context(), session.User.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", session.User.ID).Msg("Failed to clear impersonation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	s.logger.Info().Str("user_id", session.User.ID).Msg("Impersonation cleared")
	c.JSON(http.StatusOK, newWorkspaceResponse(state, session))
}
