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

// ProjectStore implements store.ProjectStore using PostgreSQL.
type ProjectStore struct {
	pool *pgxpool.Pool
}

// NewProjectStore creates a new PostgreSQL-backed project store.
func NewProjectStore(pool *pgxpool.Pool) *ProjectStore {
	return &ProjectStore{
		pool: pool,
	}
}

// Create creates a new project in the database.
func (s *ProjectStore) Create(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (
			project_id, org_id, name, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5
		)
	`

	_, err := s.pool.Exec(ctx, query,
		project.ProjectID,
		project.OrgID,
		project.Name,
		project.CreatedAt,
		project.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrProjectAlreadyExists
		}
		return fmt.Errorf("failed to create project: %w", describePostgresError(err))
	}

	log.Debug().
		Str("project_id", project.ProjectID.String()).
		Str("org_id", project.OrgID.String()).
		Str("name", project.Name).
		Msg("Created project")

	return nil
}

// Get retrieves a project by ID.
func (s *ProjectStore) Get(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	query := `
		SELECT project_id, org_id, name, created_at, updated_at
		FROM projects
		WHERE project_id = $1
	`

	var project models.Project
	err := s.pool.QueryRow(ctx, query, projectID).Scan(
		&project.ProjectID,
		&project.OrgID,
		&project.Name,
		&project.CreatedAt,
		&project.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", describePostgresError(err))
	}

	return &project, nil
}

// Update updates a project's name. The org_id column is deliberately absent
// from the SET list: ownership never moves between organizations.
func (s *ProjectStore) Update(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now()

	query := `
		UPDATE projects SET
			name = $2,
			updated_at = $3
		WHERE project_id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		project.ProjectID,
		project.Name,
		project.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update project: %w", describePostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrProjectNotFound
	}

	log.Debug().
		Str("project_id", project.ProjectID.String()).
		Msg("Updated project")

	return nil
}

// Delete deletes a project by ID. API keys cascade with the row.
func (s *ProjectStore) Delete(ctx context.Context, projectID uuid.UUID) error {
	query := `
		DELETE FROM projects
		WHERE project_id = $1
	`

	result, err := s.pool.Exec(ctx, query, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", describePostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrProjectNotFound
	}

	log.Debug().
		Str("project_id", projectID.String()).
		Msg("Deleted project")

	return nil
}

// ListByOrg returns all projects owned by an organization, newest first.
func (s *ProjectStore) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Project, error) {
	query := `
		SELECT project_id, org_id, name, created_at, updated_at
		FROM projects
		WHERE org_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", describePostgresError(err))
	}
	defer rows.Close()

	projects := make([]*models.Project, 0)

	for rows.Next() {
		var project models.Project
		err := rows.Scan(
			&project.ProjectID,
			&project.OrgID,
			&project.Name,
			&project.CreatedAt,
			&project.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, &project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}

	return projects, nil
}
