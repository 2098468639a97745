package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ltiernan/tracescope/internal/models"
)

// Sentinel errors for user store operations
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserStore defines the interface for user storage operations.
// Users are created at registration and never mutated by the workspace core.
type UserStore interface {
	// Create creates a new user.
	// Returns ErrUserAlreadyExists if the ID or handle is already taken.
	Create(ctx context.Context, user *models.User) error

	// Get retrieves a user by ID.
	// Returns ErrUserNotFound if the user doesn't exist.
	Get(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetByHandle retrieves a user by their unique handle.
	// Returns ErrUserNotFound if no user has that handle.
	GetByHandle(ctx context.Context, handle string) (*models.User, error)
}
