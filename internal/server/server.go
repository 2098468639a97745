package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ltiernan/tracescope/internal/access"
	"github.com/ltiernan/tracescope/internal/auth"
	"github.com/ltiernan/tracescope/internal/credentials"
	"github.com/ltiernan/tracescope/internal/logger"
	"github.com/ltiernan/tracescope/internal/store"
	"github.com/ltiernan/tracescope/internal/workspace"
	"github.com/rs/zerolog"
)

// Server wires the workspace core to its HTTP surface. Handlers never touch
// project or key storage directly: every read and write goes through the
// access guard, the credential manager, or the selector.
type Server struct {
	stores   store.Stores
	guard    *access.Guard
	keys     *credentials.Manager
	selector *workspace.Selector
	sessions *auth.Sessions
}

// New creates a server around an already-wired core.
func New(stores store.Stores, guard *access.Guard, keys *credentials.Manager, selector *workspace.Selector, sessions *auth.Sessions) *Server {
	return &Server{
		stores:   stores,
		guard:    guard,
		keys:     keys,
		selector: selector,
		sessions: sessions,
	}
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router(log zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(logger.GinRequests(log), gin.Recovery())

	v1 := router.Group("/v1")

	// Unauthenticated entry points
	v1.POST("/auth/register", s.register)
	v1.POST("/auth/login", s.login)

	// Session-authenticated workspace surface
	app := v1.Group("", auth.SessionRequired(s.sessions))
	{
		app.POST("/auth/logout", s.logout)

		app.GET("/organizations", s.listOrganizations)
		app.POST("/organizations", s.createOrganization)
		app.GET("/organizations/:org_id/members", s.listMembers)
		app.POST("/organizations/:org_id/members", s.addMember)
		app.DELETE("/organizations/:org_id/members/:user_id", s.removeMember)

		app.GET("/projects", s.listProjects)
		app.POST("/projects", s.createProject)
		app.GET("/projects/current", s.currentProject)
		app.GET("/projects/:project_id", s.getProject)
		app.PATCH("/projects/:project_id", s.renameProject)
		app.DELETE("/projects/:project_id", s.deleteProject)
		app.POST("/projects/:project_id/switch", s.switchProject)

		app.POST("/projects/:project_id/keys", s.createKey)
		app.GET("/projects/:project_id/keys", s.listKeys)
		app.POST("/projects/:project_id/keys/:key_id/revoke", s.revokeKey)
	}

	// API-key-authenticated ingest surface
	ingest := v1.Group("/ingest", auth.APIKeyRequired(s.keys))
	{
		ingest.GET("/whoami", s.whoami)
	}

	return router
}

// respondError maps core errors to the uniform external shapes. Authorization
// denials and missing resources both surface as 404; storage faults surface
// as a generic retryable failure with no internals attached.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, access.ErrDenied):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, auth.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, credentials.ErrNameRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
	default:
		zerologFromGin(c).Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error, please retry"})
	}
}

func zerologFromGin(c *gin.Context) *zerolog.Logger {
	return zerolog.Ctx(c.Request.Context())
}

// notFound emits the same body respondError produces for denied access, for
// handlers that detect a missing resource themselves.
func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}
