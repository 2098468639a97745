package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ltiernan/tracescope/internal/auth"
)

// whoami tells an external caller which project its API key resolves to.
// This is the template for every ingest endpoint: authentication happens in
// the APIKeyRequired middleware, and handlers only ever see the project the
// verified key is scoped to.
func (s *Server) whoami(c *gin.Context) {
	project := auth.CurrentProject(c)

	c.JSON(http.StatusOK, gin.H{
		"project_id": project.ProjectID.String(),
		"org_id":     project.OrgID.String(),
		"name":       project.Name,
	})
}
