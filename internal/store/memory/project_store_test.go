package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ltiernan/tracescope/internal/models"
	"github.com/ltiernan/tracescope/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestProject(orgID uuid.UUID, name string) *models.Project {
	now := time.Now()
	return &models.Project{
		ProjectID: uuid.Must(uuid.NewV7()),
		OrgID:     orgID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestProjectStore_Update(t *testing.T) {
	t.Run("rename project", func(t *testing.T) {
		st := NewProjectStore()
		ctx := context.Background()

		project := newTestProject(uuid.Must(uuid.NewV7()), "tracer")
		require.NoError(t, st.Create(ctx, project))

		project.Name = "tracer-v2"
		require.NoError(t, st.Update(ctx, project))

		got, err := st.Get(ctx, project.ProjectID)
		require.NoError(t, err)
		require.Equal(t, "tracer-v2", got.Name)
	})

	t.Run("update cannot move project between orgs", func(t *testing.T) {
		st := NewProjectStore()
		ctx := context.Background()

		orgID := uuid.Must(uuid.NewV7())
		project := newTestProject(orgID, "tracer")
		require.NoError(t, st.Create(ctx, project))

		hijacked := *project
		hijacked.OrgID = uuid.Must(uuid.NewV7())
		require.NoError(t, st.Update(ctx, &hijacked))

		got, err := st.Get(ctx, project.ProjectID)
		require.NoError(t, err)
		require.Equal(t, orgID, got.OrgID)
	})

	t.Run("update missing project", func(t *testing.T) {
		st := NewProjectStore()
		ctx := context.Background()

		err := st.Update(ctx, newTestProject(uuid.Must(uuid.NewV7()), "ghost"))
		require.Equal(t, store.ErrProjectNotFound, err)
	})
}

func TestProjectStore_ListByOrg(t *testing.T) {
	st := NewProjectStore()
	ctx := context.Background()

	orgID := uuid.Must(uuid.NewV7())

	older := newTestProject(orgID, "older")
	older.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, st.Create(ctx, older))

	newer := newTestProject(orgID, "newer")
	require.NoError(t, st.Create(ctx, newer))

	require.NoError(t, st.Create(ctx, newTestProject(uuid.Must(uuid.NewV7()), "elsewhere")))

	projects, err := st.ListByOrg(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	require.Equal(t, newer.ProjectID, projects[0].ProjectID)
	require.Equal(t, older.ProjectID, projects[1].ProjectID)
}

func TestProjectStore_Delete(t *testing.T) {
	st := NewProjectStore()
	ctx := context.Background()

	project := newTestProject(uuid.Must(uuid.NewV7()), "tracer")
	require.NoError(t, st.Create(ctx, project))

	require.NoError(t, st.Delete(ctx, project.ProjectID))

	_, err := st.Get(ctx, project.ProjectID)
	require.Equal(t, store.ErrProjectNotFound, err)

	require.Equal(t, store.ErrProjectNotFound, st.Delete(ctx, project.ProjectID))
}

func TestProjectStore_ImplementsInterface(t *testing.T) {
	var _ store.ProjectStore = (*ProjectStore)(nil)
}
