package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ltiernan/tracescope/internal/models"
)

// Sentinel errors for API key store operations
var (
	ErrAPIKeyNotFound       = errors.New("api key not found")
	ErrAPIKeyAlreadyExists  = errors.New("api key already exists")
	ErrAPIKeyAlreadyRevoked = errors.New("api key already revoked")
)

// APIKeyStore defines the interface for API key storage operations.
// Rows are append-and-flag only: keys are created, optionally revoked, and
// never deleted, so revoked credentials remain as an audit trail.
type APIKeyStore interface {
	// Create persists a new API key record (digest only, never the secret).
	// Returns ErrAPIKeyAlreadyExists if a key with the same ID exists.
	Create(ctx context.Context, key *models.APIKey) error

	// Get retrieves an API key by ID, whether active or revoked.
	// Returns ErrAPIKeyNotFound if the key doesn't exist.
	Get(ctx context.Context, keyID uuid.UUID) (*models.APIKey, error)

	// GetActiveByHashedKey retrieves the active (non-revoked) key matching the
	// given digest. A revoked key with a matching digest behaves exactly like
	// a missing one: ErrAPIKeyNotFound.
	GetActiveByHashedKey(ctx context.Context, hashedKey string) (*models.APIKey, error)

	// Revoke sets revoked_at if and only if it is currently null, as a single
	// atomic compare-and-set. Returns ErrAPIKeyAlreadyRevoked when the key was
	// already revoked (the original timestamp is preserved), and
	// ErrAPIKeyNotFound when no such key exists.
	Revoke(ctx context.Context, keyID uuid.UUID, revokedAt time.Time) error

	// ListByProject returns all keys for a project, newest first, including
	// revoked ones.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.APIKey, error)
}
