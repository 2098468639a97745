package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ltiernan/tracescope/internal/auth"
	"github.com/ltiernan/tracescope/internal/models"
)

type createKeyRequest struct {
	Name string `json:"name" binding:"required"`
}

// keyResponse is key metadata only: the digest stays server-side and the
// plaintext no longer exists anywhere after issuance.
type keyResponse struct {
	KeyID     string     `json:"key_id"`
	ProjectID string     `json:"project_id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

func newKeyResponse(key *models.APIKey) keyResponse {
	return keyResponse{
		KeyID:     key.KeyID.String(),
		ProjectID: key.ProjectID.String(),
		Name:      key.Name,
		CreatedAt: key.CreatedAt,
		RevokedAt: key.RevokedAt,
	}
}

// createKey issues a new API key. The response is the only place the
// plaintext secret ever appears; it cannot be retrieved again.
func (s *Server) createKey(c *gin.Context) {
	user := auth.CurrentUser(c)

	project, ok := s.resolveProject(c)
	if !ok {
		return
	}

	var req createKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	key, secret, err := s.keys.IssueKey(c.Request.Context(), user.UserID, project, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"key":    newKeyResponse(key),
		"secret": secret,
	})
}

func (s *Server) listKeys(c *gin.Context) {
	user := auth.CurrentUser(c)

	project, ok := s.resolveProject(c)
	if !ok {
		return
	}

	keys, err := s.keys.ListKeys(c.Request.Context(), user.UserID, project)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]keyResponse, 0, len(keys))
	for _, key := range keys {
		resp = append(resp, newKeyResponse(key))
	}

	c.JSON(http.StatusOK, gin.H{"keys": resp})
}

func (s *Server) revokeKey(c *gin.Context) {
	user := auth.CurrentUser(c)

	project, ok := s.resolveProject(c)
	if !ok {
		return
	}

	keyID, err := uuid.Parse(c.Param("key_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key ID"})
		return
	}

	// The key must belong to the project in the path; a key under some other
	// project is reported exactly like a missing one.
	ctx := c.Request.Context()
	keys, err := s.keys.ListKeys(ctx, user.UserID, project)
	if err != nil {
		respondError(c, err)
		return
	}

	found := false
	for _, key := range keys {
		if key.KeyID == keyID {
			found = true
			break
		}
	}
	if !found {
		notFound(c)
		return
	}

	if err := s.keys.RevokeKey(ctx, user.UserID, keyID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "key revoked"})
}
