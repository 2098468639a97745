package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ltiernan/tracescope/internal/models"
)

// Sentinel errors for project store operations
var (
	ErrProjectNotFound      = errors.New("project not found")
	ErrProjectAlreadyExists = errors.New("project already exists")
)

// ProjectStore defines the interface for project storage operations.
// A project belongs to exactly one organization; OrgID is set at creation
// and implementations must never change it on update.
type ProjectStore interface {
	// Create creates a new project.
	// Returns ErrProjectAlreadyExists if a project with the same ID exists.
	Create(ctx context.Context, project *models.Project) error

	// Get retrieves a project by ID.
	// Returns ErrProjectNotFound if the project doesn't exist.
	Get(ctx context.Context, projectID uuid.UUID) (*models.Project, error)

	// Update updates a project's mutable fields (name).
	// Returns ErrProjectNotFound if the project doesn't exist.
	Update(ctx context.Context, project *models.Project) error

	// Delete deletes a project by ID.
	// Returns ErrProjectNotFound if the project doesn't exist.
	Delete(ctx context.Context, projectID uuid.UUID) error

	// ListByOrg returns all projects owned by an organization, newest first.
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Project, error)
}
