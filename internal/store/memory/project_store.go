package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ltiernan/tracescope/internal/models"
	"github.com/ltiernan/tracescope/internal/store"
)

// ProjectStore implements store.ProjectStore using in-memory storage.
// This implementation is for testing and single-node development - data is
// lost on restart.
type ProjectStore struct {
	mu sync.RWMutex

	projects map[uuid.UUID]*models.Project // project_id -> Project
}

// NewProjectStore creates a new in-memory project store.
func NewProjectStore() *ProjectStore {
	return &ProjectStore{
		projects: make(map[uuid.UUID]*models.Project),
	}
}

// Create creates a new project in memory.
func (s *ProjectStore) Create(ctx context.Context, project *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.projects[project.ProjectID]; exists {
		return store.ErrProjectAlreadyExists
	}

	// Clone to avoid external modifications
	clone := *project
	s.projects[project.ProjectID] = &clone

	return nil
}

// Get retrieves a project by ID.
func (s *ProjectStore) Get(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project, exists := s.projects[projectID]
	if !exists {
		return nil, store.ErrProjectNotFound
	}

	clone := *project
	return &clone, nil
}

// Update updates a project's mutable fields. The owning organization is
// immutable: the stored OrgID always wins.
func (s *ProjectStore) Update(ctx context.Context, project *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.projects[project.ProjectID]
	if !exists {
		return store.ErrProjectNotFound
	}

	project.OrgID = existing.OrgID
	project.UpdatedAt = time.Now()

	clone := *project
	s.projects[project.ProjectID] = &clone

	return nil
}

// Delete deletes a project by ID.
func (s *ProjectStore) Delete(ctx context.Context, projectID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.projects[projectID]; !exists {
		return store.ErrProjectNotFound
	}

	delete(s.projects, projectID)

	return nil
}

// ListByOrg returns all projects owned by an organization, newest first.
func (s *ProjectStore) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Project
	for _, project := range s.projects {
		if project.OrgID == orgID {
			clone := *project
			result = append(result, &clone)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}
