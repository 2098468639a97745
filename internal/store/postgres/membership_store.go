package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ltiernan/tracescope/internal/models"
	"github.com/ltiernan/tracescope/internal/store"
	"github.com/rs/zerolog/log"
)

// MembershipStore implements store.MembershipStore using PostgreSQL.
type MembershipStore struct {
	pool *pgxpool.Pool
}

// NewMembershipStore creates a new PostgreSQL-backed membership store.
func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{
		pool: pool,
	}
}

// Create adds a user to an organization. The (user_id, org_id) unique
// constraint maps to ErrMembershipAlreadyExists.
func (s *MembershipStore) Create(ctx context.Context, membership *models.Membership) error {
	query := `
		INSERT INTO memberships (
			membership_id, user_id, org_id, role, created_at
		) VALUES (
			$1, $2, $3, $4, $5
		)
	`

	_, err := s.pool.Exec(ctx, query,
		membership.MembershipID,
		membership.UserID,
		membership.OrgID,
		membership.Role,
		membership.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrMembershipAlreadyExists
		}
		return fmt.Errorf("failed to create membership: %w", describePostgresError(err))
	}

	log.Debug().
		Str("user_id", membership.UserID.String()).
		Str("org_id", membership.OrgID.String()).
		Str("role", membership.Role).
		Msg("Created membership")

	return nil
}

// Get retrieves the membership for a (user, org) pair.
func (s *MembershipStore) Get(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error) {
	query := `
		SELECT membership_id, user_id, org_id, role, created_at
		FROM memberships
		WHERE user_id = $1 AND org_id = $2
	`

	return s.scanMembership(s.pool.QueryRow(ctx, query, userID, orgID))
}

// Delete removes a user from an organization.
func (s *MembershipStore) Delete(ctx context.Context, userID, orgID uuid.UUID) error {
	query := `
		DELETE FROM memberships
		WHERE user_id = $1 AND org_id = $2
	`

	result, err := s.pool.Exec(ctx, query, userID, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", describePostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrMembershipNotFound
	}

	log.Debug().
		Str("user_id", userID.String()).
		Str("org_id", orgID.String()).
		Msg("Deleted membership")

	return nil
}

// ListByUser returns all memberships for a user, ordered by creation time.
func (s *MembershipStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error) {
	query := `
		SELECT membership_id, user_id, org_id, role, created_at
		FROM memberships
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships by user: %w", describePostgresError(err))
	}
	defer rows.Close()

	return s.collectMemberships(rows)
}

// ListByOrg returns all memberships for an organization.
func (s *MembershipStore) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Membership, error) {
	query := `
		SELECT membership_id, user_id, org_id, role, created_at
		FROM memberships
		WHERE org_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships by org: %w", describePostgresError(err))
	}
	defer rows.Close()

	return s.collectMemberships(rows)
}

func (s *MembershipStore) scanMembership(row pgx.Row) (*models.Membership, error) {
	var m models.Membership
	err := row.Scan(
		&m.MembershipID,
		&m.UserID,
		&m.OrgID,
		&m.Role,
		&m.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", describePostgresError(err))
	}

	return &m, nil
}

func (s *MembershipStore) collectMemberships(rows pgx.Rows) ([]*models.Membership, error) {
	memberships := make([]*models.Membership, 0)

	for rows.Next() {
		var m models.Membership
		err := rows.Scan(
			&m.MembershipID,
			&m.UserID,
			&m.OrgID,
			&m.Role,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}

	return memberships, nil
}
