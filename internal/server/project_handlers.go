package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ltiernan/tracescope/internal/auth"
	"github.com/ltiernan/tracescope/internal/models"
)

type createProjectRequest struct {
	Name  string `json:"name" binding:"required"`
	OrgID string `json:"org_id" binding:"required"`
}

type renameProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

type projectResponse struct {
	ProjectID string    `json:"project_id"`
	OrgID     string    `json:"org_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newProjectResponse(project *models.Project) projectResponse {
	return projectResponse{
		ProjectID: project.ProjectID.String(),
		OrgID:     project.OrgID.String(),
		Name:      project.Name,
		CreatedAt: project.CreatedAt,
		UpdatedAt: project.UpdatedAt,
	}
}

// resolveProject parses the project ID from the path and runs it through the
// guard. Denied and missing both end the request with the uniform 404.
func (s *Server) resolveProject(c *gin.Context) (*models.Project, bool) {
	user := auth.CurrentUser(c)

	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project ID"})
		return nil, false
	}

	project, err := s.guard.ResolveProject(c.Request.Context(), user.UserID, projectID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}

	return project, true
}

func (s *Server) listProjects(c *gin.Context) {
	user := auth.CurrentUser(c)

	resp := make([]projectResponse, 0)
	for project, err := range s.guard.ScopedProjects(c.Request.Context(), user.UserID) {
		if err != nil {
			respondError(c, err)
			return
		}
		resp = append(resp, newProjectResponse(project))
	}

	c.JSON(http.StatusOK, gin.H{"projects": resp, "total": len(resp)})
}

func (s *Server) createProject(c *gin.Context) {
	user := auth.CurrentUser(c)

	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and org_id are required"})
		return
	}

	orgID, err := uuid.Parse(req.OrgID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization ID"})
		return
	}

	ctx := c.Request.Context()

	// Creating a project is an org-scoped mutation; there is no project row
	// to authorize against yet, so the membership check is direct.
	ok, err := s.guard.Index().IsMember(ctx, user.UserID, orgID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		notFound(c)
		return
	}

	projectID, err := uuid.NewV7()
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now()
	project := &models.Project{
		ProjectID: projectID,
		OrgID:     orgID,
		Name:      req.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.stores.Projects.Create(ctx, project); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newProjectResponse(project))
}

func (s *Server) getProject(c *gin.Context) {
	project, ok := s.resolveProject(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, newProjectResponse(project))
}

func (s *Server) renameProject(c *gin.Context) {
	user := auth.CurrentUser(c)

	project, ok := s.resolveProject(c)
	if !ok {
		return
	}

	var req renameProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	ctx := c.Request.Context()

	if err := s.guard.AuthorizeProjectMutation(ctx, user.UserID, project); err != nil {
		respondError(c, err)
		return
	}

	project.Name = req.Name
	if err := s.stores.Projects.Update(ctx, project); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newProjectResponse(project))
}

func (s *Server) deleteProject(c *gin.Context) {
	user := auth.CurrentUser(c)
	session := auth.CurrentSession(c)

	project, ok := s.resolveProject(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	if err := s.guard.AuthorizeProjectMutation(ctx, user.UserID, project); err != nil {
		respondError(c, err)
		return
	}

	if err := s.stores.Projects.Delete(ctx, project.ProjectID); err != nil {
		respondError(c, err)
		return
	}

	// Drop a current-project pointer that referenced the deleted project.
	if session.CurrentProjectID != nil && *session.CurrentProjectID == project.ProjectID {
		if err := s.stores.Sessions.SetCurrentProject(ctx, session.SessionID, nil); err != nil {
			respondError(c, err)
			return
		}
		session.CurrentProjectID = nil
	}

	c.JSON(http.StatusOK, gin.H{"message": "project deleted"})
}

func (s *Server) switchProject(c *gin.Context) {
	user := auth.CurrentUser(c)
	session := auth.CurrentSession(c)

	project, ok := s.resolveProject(c)
	if !ok {
		return
	}

	if err := s.selector.SwitchTo(c.Request.Context(), user.UserID, session, project); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newProjectResponse(project))
}

func (s *Server) currentProject(c *gin.Context) {
	user := auth.CurrentUser(c)
	session := auth.CurrentSession(c)

	project, err := s.selector.Resolve(c.Request.Context(), user.UserID, session)
	if err != nil {
		respondError(c, err)
		return
	}

	if project == nil {
		c.JSON(http.StatusOK, gin.H{"project": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": newProjectResponse(project)})
}
