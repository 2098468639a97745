package workspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ltiernan/tracescope/internal/access"
	"github.com/ltiernan/tracescope/internal/models"
	"github.com/ltiernan/tracescope/internal/store"
	"github.com/rs/zerolog/log"
)

// Selector maintains the per-session current-project pointer. The pointer is
// derived state: it is re-validated against the access guard on every switch
// and every resolve, so a session can never observe a project the user has
// lost access to, even if nothing touched the pointer since the membership
// change.
type Selector struct {
	guard    *access.Guard
	sessions store.SessionStore
}

// NewSelector creates a current-project selector.
func NewSelector(guard *access.Guard, sessions store.SessionStore) *Selector {
	return &Selector{
		guard:    guard,
		sessions: sessions,
	}
}

// SwitchTo points the session at the given project. On denial the prior
// pointer is left untouched and access.ErrDenied is returned; the selector
// never silently falls back to another project.
func (s *Selector) SwitchTo(ctx context.Context, userID uuid.UUID, session *models.Session, project *models.Project) error {
	if err := s.guard.AuthorizeProjectAccess(ctx, userID, project); err != nil {
		return err
	}

	projectID := project.ProjectID
	if err := s.sessions.SetCurrentProject(ctx, session.SessionID, &projectID); err != nil {
		return fmt.Errorf("failed to update current project: %w", err)
	}
	session.CurrentProjectID = &projectID

	log.Debug().
		Str("session_id", session.SessionID.String()).
		Str("project_id", projectID.String()).
		Msg("Switched current project")

	return nil
}

// Resolve returns the session's current project, or nil when none is set.
// Access is re-checked on every call: if the user has since lost access, or
// the project is gone, the stale pointer is cleared and nil is returned
// rather than surfacing a project the session no longer has rights to.
func (s *Selector) Resolve(ctx context.Context, userID uuid.UUID, session *models.Session) (*models.Project, error) {
	if session.CurrentProjectID == nil {
		return nil, nil
	}

	project, err := s.guard.ResolveProject(ctx, userID, *session.CurrentProjectID)
	if err != nil {
		if errors.Is(err, access.ErrDenied) {
			log.Debug().
				Str("session_id", session.SessionID.String()).
				Str("project_id", session.CurrentProjectID.String()).
				Msg("Clearing stale current-project pointer")
			if clearErr := s.sessions.SetCurrentProject(ctx, session.SessionID, nil); clearErr != nil {
				return nil, fmt.Errorf("failed to clear current project: %w", clearErr)
			}
			session.CurrentProjectID = nil
			return nil, nil
		}
		return nil, err
	}

	return project, nil
}
