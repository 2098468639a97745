package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ltiernan/tracescope/internal/models"
	"github.com/rs/zerolog/log"
)

// Gin context keys for authenticated identities.
const (
	ctxUserKey    = "auth.user"
	ctxSessionKey = "auth.session"
	ctxProjectKey = "auth.project"
)

// KeyVerifier authenticates an API key plaintext and resolves its owning
// project. Satisfied by credentials.Manager.
type KeyVerifier interface {
	VerifyKey(ctx context.Context, plaintext string) (*models.Project, error)
}

// SessionRequired authenticates requests via the session cookie and injects
// the user and session into the request context. Unauthenticated requests
// get a 401 and are directed to log in.
func SessionRequired(sessions *Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, user, err := sessions.FromRequest(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		c.Set(ctxUserKey, user)
		c.Set(ctxSessionKey, session)
		c.Next()
	}
}

// APIKeyRequired authenticates external callers with a project-scoped API
// key carried as a bearer token. On success the owning project is injected
// into the request context. All failures are reported identically.
func APIKeyRequired(verifier KeyVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		plaintext, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		project, err := verifier.VerifyKey(c.Request.Context(), plaintext)
		if err != nil {
			// Invalid and revoked keys land here together; the caller learns
			// nothing beyond "no".
			log.Debug().Err(err).Msg("API key authentication failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}

		c.Set(ctxProjectKey, project)
		c.Next()
	}
}

// CurrentUser returns the authenticated user injected by SessionRequired.
func CurrentUser(c *gin.Context) *models.User {
	user, _ := c.MustGet(ctxUserKey).(*models.User)
	return user
}

// CurrentSession returns the session injected by SessionRequired.
func CurrentSession(c *gin.Context) *models.Session {
	session, _ := c.MustGet(ctxSessionKey).(*models.Session)
	return session
}

// CurrentProject returns the project injected by APIKeyRequired.
func CurrentProject(c *gin.Context) *models.Project {
	project, _ := c.MustGet(ctxProjectKey).(*models.Project)
	return project
}
