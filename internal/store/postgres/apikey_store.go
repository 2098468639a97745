package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ltiernan/tracescope/internal/models"
	"github.com/ltiernan/tracescope/internal/store"
	"github.com/rs/zerolog/log"
)

// APIKeyStore implements store.APIKeyStore using PostgreSQL.
type APIKeyStore struct {
	pool *pgxpool.Pool
}

// NewAPIKeyStore creates a new PostgreSQL-backed API key store.
func NewAPIKeyStore(pool *pgxpool.Pool) *APIKeyStore {
	return &APIKeyStore{
		pool: pool,
	}
}

// Create persists a new API key record. Only the digest is stored; the
// plaintext secret never reaches this layer.
func (s *APIKeyStore) Create(ctx context.Context, key *models.APIKey) error {
	query := `
		INSERT INTO api_keys (
			key_id, project_id, name, hashed_key, created_at, revoked_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	_, err := s.pool.Exec(ctx, query,
		key.KeyID,
		key.ProjectID,
		key.Name,
		key.HashedKey,
		key.CreatedAt,
		key.RevokedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAPIKeyAlreadyExists
		}
		return fmt.Errorf("failed to create api key: %w", describePostgresError(err))
	}

	log.Debug().
		Str("key_id", key.KeyID.String()).
		Str("project_id", key.ProjectID.String()).
		Msg("Created api key")

	return nil
}

// Get retrieves an API key by ID, whether active or revoked.
func (s *APIKeyStore) Get(ctx context.Context, keyID uuid.UUID) (*models.APIKey, error) {
	query := `
		SELECT key_id, project_id, name, hashed_key, created_at, revoked_at
		FROM api_keys
		WHERE key_id = $1
	`

	return s.scanAPIKey(s.pool.QueryRow(ctx, query, keyID))
}

// GetActiveByHashedKey retrieves the active key matching the given digest.
// Revoked keys are filtered in the query so a revoked credential is
// indistinguishable from one that never existed.
func (s *APIKeyStore) GetActiveByHashedKey(ctx context.Context, hashedKey string) (*models.APIKey, error) {
	query := `
		SELECT key_id, project_id, name, hashed_key, created_at, revoked_at
		FROM api_keys
		WHERE hashed_key = $1 AND revoked_at IS NULL
	`

	return s.scanAPIKey(s.pool.QueryRow(ctx, query, hashedKey))
}

// Revoke sets revoked_at as a single compare-and-set. The WHERE clause only
// matches rows still active, so a concurrent or repeated revocation can never
// overwrite the original timestamp.
func (s *APIKeyStore) Revoke(ctx context.Context, keyID uuid.UUID, revokedAt time.Time) error {
	query := `
		UPDATE api_keys SET
			revoked_at = $2
		WHERE key_id = $1 AND revoked_at IS NULL
	`

	result, err := s.pool.Exec(ctx, query, keyID, revokedAt)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", describePostgresError(err))
	}

	if result.RowsAffected() == 0 {
		// Either the key is already revoked or it never existed.
		if _, err := s.Get(ctx, keyID); err != nil {
			return err
		}
		return store.ErrAPIKeyAlreadyRevoked
	}

	log.Debug().
		Str("key_id", keyID.String()).
		Time("revoked_at", revokedAt).
		Msg("Revoked api key")

	return nil
}

// ListByProject returns all keys for a project, newest first, including
// revoked ones.
func (s *APIKeyStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.APIKey, error) {
	query := `
		SELECT key_id, project_id, name, hashed_key, created_at, revoked_at
		FROM api_keys
		WHERE project_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", describePostgresError(err))
	}
	defer rows.Close()

	keys := make([]*models.APIKey, 0)

	for rows.Next() {
		var key models.APIKey
		err := rows.Scan(
			&key.KeyID,
			&key.ProjectID,
			&key.Name,
			&key.HashedKey,
			&key.CreatedAt,
			&key.RevokedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, &key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate api keys: %w", err)
	}

	return keys, nil
}

func (s *APIKeyStore) scanAPIKey(row pgx.Row) (*models.APIKey, error) {
	var key models.APIKey
	err := row.Scan(
		&key.KeyID,
		&key.ProjectID,
		&key.Name,
		&key.HashedKey,
		&key.CreatedAt,
		&key.RevokedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", describePostgresError(err))
	}

	return &key, nil
}
