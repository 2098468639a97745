package access

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/google/uuid"
	"github.com/ltiernan/tracescope/internal/models"
	"github.com/ltiernan/tracescope/internal/store"
	"github.com/ltiernan/tracescope/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// ErrDenied is returned whenever a user is not in scope for a resource,
// including when the resource does not exist at all. Callers outside the
// core must surface both cases identically ("not found"), so a caller can
// never probe for the existence of another tenant's resources. The internal
// distinction is preserved in the debug log.
var ErrDenied = errors.New("not authorized")

// Guard makes every allow/deny decision for org-owned resources. All project
// and key entry points, read or write, pass through it; no other component
// re-implements the membership check.
type Guard struct {
	index    *MembershipIndex
	projects store.ProjectStore
	apiKeys  store.APIKeyStore
}

// NewGuard creates an access guard backed by the given membership index and
// stores.
func NewGuard(index *MembershipIndex, projects store.ProjectStore, apiKeys store.APIKeyStore) *Guard {
	return &Guard{
		index:    index,
		projects: projects,
		apiKeys:  apiKeys,
	}
}

// Index returns the membership index the guard consults.
func (g *Guard) Index() *MembershipIndex {
	return g.index
}

// AuthorizeProjectAccess allows the user to read the project iff they are a
// member of its owning organization at call time.
func (g *Guard) AuthorizeProjectAccess(ctx context.Context, userID uuid.UUID, project *models.Project) error {
	ok, err := g.index.IsMember(ctx, userID, project.OrgID)
	if err != nil {
		return fmt.Errorf("membership check failed: %w", err)
	}
	if !ok {
		log.Debug().
			Str("user_id", userID.String()).
			Str("project_id", project.ProjectID.String()).
			Str("org_id", project.OrgID.String()).
			Msg("Project access denied: not a member of owning org")
		telemetry.GetMetrics().AuthzDenialsTotal.Add(ctx, 1)
		return ErrDenied
	}
	return nil
}

// AuthorizeProjectMutation allows the user to mutate (rename, delete) the
// project. The predicate is identical to AuthorizeProjectAccess today, but
// mutation callers must use this entry point so a future asymmetric policy
// (e.g. read-only members) only has to change one place.
func (g *Guard) AuthorizeProjectMutation(ctx context.Context, userID uuid.UUID, project *models.Project) error {
	return g.AuthorizeProjectAccess(ctx, userID, project)
}

// AuthorizeKeyAccess allows the user to act on an API key iff they can act on
// its owning project. Keys have no independent ACL: scope is inherited. The
// owning project is returned so callers don't need a second lookup.
func (g *Guard) AuthorizeKeyAccess(ctx context.Context, userID uuid.UUID, key *models.APIKey) (*models.Project, error) {
	project, err := g.projects.Get(ctx, key.ProjectID)
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			log.Debug().
				Str("user_id", userID.String()).
				Str("key_id", key.KeyID.String()).
				Str("project_id", key.ProjectID.String()).
				Msg("Key access denied: owning project missing")
			return nil, ErrDenied
		}
		return nil, fmt.Errorf("failed to get owning project: %w", err)
	}

	if err := g.AuthorizeProjectAccess(ctx, userID, project); err != nil {
		return nil, err
	}
	return project, nil
}

// ResolveProject fetches a project by ID and authorizes read access in one
// step. A missing project and an out-of-scope project both return ErrDenied,
// so handlers cannot accidentally leak which of the two happened.
func (g *Guard) ResolveProject(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error) {
	project, err := g.projects.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			log.Debug().
				Str("user_id", userID.String()).
				Str("project_id", projectID.String()).
				Msg("Project lookup denied: no such project")
			return nil, ErrDenied
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	if err := g.AuthorizeProjectAccess(ctx, userID, project); err != nil {
		return nil, err
	}
	return project, nil
}

// ScopedProjects returns a restartable sequence of every project the user can
// see, walking their organizations in join order. Projects outside the
// user's organizations are never yielded, not even transiently. The sequence
// re-reads memberships each time it is iterated.
func (g *Guard) ScopedProjects(ctx context.Context, userID uuid.UUID) iter.Seq2[*models.Project, error] {
	return func(yield func(*models.Project, error) bool) {
		orgs, err := g.index.OrganizationsFor(ctx, userID)
		if err != nil {
			yield(nil, err)
			return
		}

		for _, org := range orgs {
			projects, err := g.projects.ListByOrg(ctx, org.OrgID)
			if err != nil {
				yield(nil, fmt.Errorf("failed to list projects for org %s: %w", org.OrgID, err))
				return
			}
			for _, project := range projects {
				if !yield(project, nil) {
					return
				}
			}
		}
	}
}
