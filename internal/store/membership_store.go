package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ltiernan/tracescope/internal/models"
)

// Sentinel errors for membership store operations
var (
	ErrMembershipNotFound      = errors.New("membership not found")
	ErrMembershipAlreadyExists = errors.New("membership already exists")
)

// MembershipStore defines the interface for membership storage operations.
// The membership relation is the single source of truth for all scoping
// decisions made by the access guard. The guard only reads; membership
// mutation belongs to the account management surface (invitations, leaving
// an org).
type MembershipStore interface {
	// Create adds a user to an organization.
	// Returns ErrMembershipAlreadyExists if the (user, org) pair already exists.
	Create(ctx context.Context, membership *models.Membership) error

	// Get retrieves the membership for a (user, org) pair.
	// Returns ErrMembershipNotFound if the user is not a member.
	Get(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error)

	// Delete removes a user from an organization.
	// Returns ErrMembershipNotFound if the user is not a member.
	Delete(ctx context.Context, userID, orgID uuid.UUID) error

	// ListByUser returns all memberships for a user, ordered by creation time.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error)

	// ListByOrg returns all memberships for an organization.
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Membership, error)
}
