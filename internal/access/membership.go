package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ltiernan/tracescope/internal/models"
	"github.com/ltiernan/tracescope/internal/store"
)

// MembershipIndex answers "which organizations can this user act in". It is
// the single source of truth for every scoping decision in the workspace
// core; the guard never derives scope from anything else.
//
// The index is read-only: membership mutation belongs to the account
// management surface (invitations, leaving an org).
type MembershipIndex struct {
	memberships   store.MembershipStore
	organizations store.OrganizationStore
}

// NewMembershipIndex creates a membership index backed by the given stores.
func NewMembershipIndex(memberships store.MembershipStore, organizations store.OrganizationStore) *MembershipIndex {
	return &MembershipIndex{
		memberships:   memberships,
		organizations: organizations,
	}
}

// OrganizationsFor returns all organizations the user is currently a member
// of, ordered by when they joined.
func (idx *MembershipIndex) OrganizationsFor(ctx context.Context, userID uuid.UUID) ([]*models.Organization, error) {
	memberships, err := idx.memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	orgs := make([]*models.Organization, 0, len(memberships))
	for _, membership := range memberships {
		org, err := idx.organizations.Get(ctx, membership.OrgID)
		if err != nil {
			// A membership pointing at a removed organization confers nothing.
			if errors.Is(err, store.ErrOrganizationNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to get organization: %w", err)
		}
		orgs = append(orgs, org)
	}

	return orgs, nil
}

// IsMember reports whether the user is currently a member of the
// organization. The check always hits the membership store: decisions are
// made at call time, never from a cached earlier answer.
func (idx *MembershipIndex) IsMember(ctx context.Context, userID, orgID uuid.UUID) (bool, error) {
	_, err := idx.memberships.Get(ctx, userID, orgID)
	if err != nil {
		if errors.Is(err, store.ErrMembershipNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return true, nil
}
