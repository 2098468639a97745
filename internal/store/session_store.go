package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ltiernan/tracescope/internal/models"
)

// Sentinel errors for session store operations
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// SessionStore defines the interface for session storage operations.
// Sessions are server-side records keyed by an opaque ID held in a cookie.
type SessionStore interface {
	// Create creates a new session.
	Create(ctx context.Context, session *models.Session) error

	// Get retrieves a session by ID.
	// Returns ErrSessionNotFound if the session doesn't exist and
	// ErrSessionExpired if it exists but has expired.
	Get(ctx context.Context, sessionID uuid.UUID) (*models.Session, error)

	// SetCurrentProject atomically updates the session's current-project
	// pointer. A nil projectID clears the pointer.
	// Returns ErrSessionNotFound if the session doesn't exist.
	SetCurrentProject(ctx context.Context, sessionID uuid.UUID, projectID *uuid.UUID) error

	// UpdateLastUsed updates the last_used_at timestamp for a session.
	UpdateLastUsed(ctx context.Context, sessionID uuid.UUID) error

	// Delete deletes a session by ID (logout).
	// Returns ErrSessionNotFound if the session doesn't exist.
	Delete(ctx context.Context, sessionID uuid.UUID) error

	// DeleteExpired deletes all expired sessions (cleanup job). Returns the
	// number of sessions removed.
	DeleteExpired(ctx context.Context) (int, error)
}
