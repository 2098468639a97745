package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ltiernan/tracescope/internal/auth"
	"github.com/ltiernan/tracescope/internal/models"
	"github.com/ltiernan/tracescope/internal/store"
)

// Organization and membership handlers are the account-management surface
// the access guard depends on but does not police: mutating the membership
// relation here is what grants and revokes scope everywhere else. The guard
// itself only ever reads it.

type createOrganizationRequest struct {
	Name string `json:"name" binding:"required"`
}

type addMemberRequest struct {
	Handle string `json:"handle" binding:"required"`
	Role   string `json:"role"`
}

type organizationResponse struct {
	OrgID     string    `json:"org_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type memberResponse struct {
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

func newOrganizationResponse(org *models.Organization) organizationResponse {
	return organizationResponse{
		OrgID:     org.OrgID.String(),
		Name:      org.Name,
		CreatedAt: org.CreatedAt,
	}
}

func (s *Server) listOrganizations(c *gin.Context) {
	user := auth.CurrentUser(c)

	orgs, err := s.guard.Index().OrganizationsFor(c.Request.Context(), user.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]organizationResponse, 0, len(orgs))
	for _, org := range orgs {
		resp = append(resp, newOrganizationResponse(org))
	}

	c.JSON(http.StatusOK, gin.H{"organizations": resp})
}

// createOrganization creates an org and makes the creator its first (admin)
// member, so the new tenancy is immediately usable.
func (s *Server) createOrganization(c *gin.Context) {
	user := auth.CurrentUser(c)

	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	ctx := c.Request.Context()

	orgID, err := uuid.NewV7()
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now()
	org := &models.Organization{
		OrgID:     orgID,
		Name:      req.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.stores.Organizations.Create(ctx, org); err != nil {
		respondError(c, err)
		return
	}

	membershipID, err := uuid.NewV7()
	if err != nil {
		respondError(c, err)
		return
	}

	membership := &models.Membership{
		MembershipID: membershipID,
		UserID:       user.UserID,
		OrgID:        org.OrgID,
		Role:         models.RoleAdmin,
		CreatedAt:    now,
	}

	if err := s.stores.Memberships.Create(ctx, membership); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newOrganizationResponse(org))
}

// requireOrgMembership resolves the org in the path and checks the caller
// belongs to it. Missing org and non-membership produce the same 404.
func (s *Server) requireOrgMembership(c *gin.Context) (*models.Organization, bool) {
	user := auth.CurrentUser(c)

	orgID, err := uuid.Parse(c.Param("org_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization ID"})
		return nil, false
	}

	ctx := c.Request.Context()

	org, err := s.stores.Organizations.Get(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			notFound(c)
			return nil, false
		}
		respondError(c, err)
		return nil, false
	}

	ok, err := s.guard.Index().IsMember(ctx, user.UserID, org.OrgID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if !ok {
		notFound(c)
		return nil, false
	}

	return org, true
}

func (s *Server) listMembers(c *gin.Context) {
	org, ok := s.requireOrgMembership(c)
	if !ok {
		return
	}

	memberships, err := s.stores.Memberships.ListByOrg(c.Request.Context(), org.OrgID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]memberResponse, 0, len(memberships))
	for _, membership := range memberships {
		resp = append(resp, memberResponse{
			UserID:   membership.UserID.String(),
			Role:     membership.Role,
			JoinedAt: membership.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"members": resp})
}

func (s *Server) addMember(c *gin.Context) {
	org, ok := s.requireOrgMembership(c)
	if !ok {
		return
	}

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "handle is required"})
		return
	}

	role := req.Role
	if role == "" {
		role = models.RoleMember
	}
	if role != models.RoleAdmin && role != models.RoleMember {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}

	ctx := c.Request.Context()

	target, err := s.stores.Users.GetByHandle(ctx, req.Handle)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			notFound(c)
			return
		}
		respondError(c, err)
		return
	}

	membershipID, err := uuid.NewV7()
	if err != nil {
		respondError(c, err)
		return
	}

	membership := &models.Membership{
		MembershipID: membershipID,
		UserID:       target.UserID,
		OrgID:        org.OrgID,
		Role:         role,
		CreatedAt:    time.Now(),
	}

	if err := s.stores.Memberships.Create(ctx, membership); err != nil {
		if errors.Is(err, store.ErrMembershipAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "already a member"})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, memberResponse{
		UserID:   target.UserID.String(),
		Role:     membership.Role,
		JoinedAt: membership.CreatedAt,
	})
}

func (s *Server) removeMember(c *gin.Context) {
	org, ok := s.requireOrgMembership(c)
	if !ok {
		return
	}

	targetID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	if err := s.stores.Memberships.Delete(c.Request.Context(), targetID, org.OrgID); err != nil {
		if errors.Is(err, store.ErrMembershipNotFound) {
			notFound(c)
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "member removed"})
}
