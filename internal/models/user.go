package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered identity. Users are created at registration
// and are never mutated or deleted by the workspace core; authorization is
// derived entirely from their memberships.
type User struct {
	UserID       uuid.UUID // UUIDv7
	Handle       string    // Unique login handle
	Email        string
	PasswordHash string // bcrypt, managed by the auth layer

	CreatedAt time.Time
}
