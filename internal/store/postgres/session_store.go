package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ltiernan/tracescope/internal/models"
	"github.com/ltiernan/tracescope/internal/store"
	"github.com/rs/zerolog/log"
)

// SessionStore implements store.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates a new PostgreSQL-backed session store.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{
		pool: pool,
	}
}

// Create creates a new session in the database.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (
			session_id, user_id, current_project_id, created_at,
			expires_at, last_used_at, user_agent, ip_address
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	// The inet column rejects empty strings, so an absent address is NULL.
	var ip *netip.Addr
	if addr, err := netip.ParseAddr(session.IPAddress); err == nil {
		ip = &addr
	}

	_, err := s.pool.Exec(ctx, query,
		session.SessionID,
		session.UserID,
		session.CurrentProjectID,
		session.CreatedAt,
		session.ExpiresAt,
		session.LastUsedAt,
		session.UserAgent,
		ip,
	)

	if err != nil {
		return fmt.Errorf("failed to create session: %w", describePostgresError(err))
	}

	log.Debug().
		Str("session_id", session.SessionID.String()).
		Str("user_id", session.UserID.String()).
		Msg("Created session")

	return nil
}

// Get retrieves a session by ID. An expired row is reported as
// ErrSessionExpired rather than filtered out, so callers can distinguish a
// stale cookie from a forged one.
func (s *SessionStore) Get(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	query := `
		SELECT session_id, user_id, current_project_id, created_at,
		       expires_at, last_used_at, user_agent, ip_address
		FROM sessions
		WHERE session_id = $1
	`

	var session models.Session
	var ip *netip.Addr
	err := s.pool.QueryRow(ctx, query, sessionID).Scan(
		&session.SessionID,
		&session.UserID,
		&session.CurrentProjectID,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.LastUsedAt,
		&session.UserAgent,
		&ip,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", describePostgresError(err))
	}

	if ip != nil {
		session.IPAddress = ip.String()
	}

	if session.IsExpired() {
		return nil, store.ErrSessionExpired
	}

	return &session, nil
}

// SetCurrentProject atomically updates the session's current-project pointer.
func (s *SessionStore) SetCurrentProject(ctx context.Context, sessionID uuid.UUID, projectID *uuid.UUID) error {
	query := `
		UPDATE sessions SET
			current_project_id = $2
		WHERE session_id = $1
	`

	result, err := s.pool.Exec(ctx, query, sessionID, projectID)
	if err != nil {
		return fmt.Errorf("failed to set current project: %w", describePostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrSessionNotFound
	}

	return nil
}

// UpdateLastUsed updates the last_used_at timestamp for a session.
func (s *SessionStore) UpdateLastUsed(ctx context.Context, sessionID uuid.UUID) error {
	query := `
		UPDATE sessions SET
			last_used_at = $2
		WHERE session_id = $1
	`

	result, err := s.pool.Exec(ctx, query, sessionID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update session last used: %w", describePostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrSessionNotFound
	}

	return nil
}

// Delete deletes a session by ID.
func (s *SessionStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	query := `
		DELETE FROM sessions
		WHERE session_id = $1
	`

	result, err := s.pool.Exec(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", describePostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrSessionNotFound
	}

	log.Debug().
		Str("session_id", sessionID.String()).
		Msg("Deleted session")

	return nil
}

// DeleteExpired deletes all expired sessions and returns the count removed.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int, error) {
	query := `
		DELETE FROM sessions
		WHERE expires_at <= now()
	`

	result, err := s.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", describePostgresError(err))
	}

	removed := int(result.RowsAffected())
	if removed > 0 {
		log.Debug().
			Int("removed", removed).
			Msg("Deleted expired sessions")
	}

	return removed, nil
}
