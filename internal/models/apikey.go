package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is a bearer credential scoped to exactly one project. Only a one-way
// digest of the secret is stored; the plaintext exists transiently inside key
// issuance and is returned to the caller exactly once.
//
// A key is either active (RevokedAt nil) or revoked. Revocation is terminal:
// RevokedAt is set once, never cleared, and the row is never deleted, so the
// audit trail survives the credential.
type APIKey struct {
	KeyID     uuid.UUID // UUIDv7
	ProjectID uuid.UUID // FK to projects, immutable after creation
	Name      string    // Display label, e.g. "ci ingest"

	HashedKey string // Hex-encoded SHA-256 of the plaintext secret

	CreatedAt time.Time
	RevokedAt *time.Time // nil while the key is active
}

// IsRevoked returns true once the key has been revoked.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}
