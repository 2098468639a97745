package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ltiernan/tracescope/internal/access"
	"github.com/ltiernan/tracescope/internal/models"
	"github.com/ltiernan/tracescope/internal/store"
	"github.com/ltiernan/tracescope/internal/store/memory"
	"github.com/stretchr/testify/require"
)

type selectorFixture struct {
	stores   store.Stores
	selector *Selector
	user     *models.User
	org      *models.Organization
	project  *models.Project
	session  *models.Session
}

func newSelectorFixture(t *testing.T, ctx context.Context) *selectorFixture {
	t.Helper()

	stores := memory.NewStores()
	index := access.NewMembershipIndex(stores.Memberships, stores.Organizations)
	guard := access.NewGuard(index, stores.Projects, stores.APIKeys)

	user := &models.User{
		UserID:       uuid.Must(uuid.NewV7()),
		Handle:       "alice",
		PasswordHash: "x",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, stores.Users.Create(ctx, user))

	org := &models.Organization{
		OrgID:     uuid.Must(uuid.NewV7()),
		Name:      "acme",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, stores.Organizations.Create(ctx, org))

	require.NoError(t, stores.Memberships.Create(ctx, &models.Membership{
		MembershipID: uuid.Must(uuid.NewV7()),
		UserID:       user.UserID,
		OrgID:        org.OrgID,
		Role:         models.RoleMember,
		CreatedAt:    time.Now(),
	}))

	project := &models.Project{
		ProjectID: uuid.Must(uuid.NewV7()),
		OrgID:     org.OrgID,
		Name:      "tracer",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, stores.Projects.Create(ctx, project))

	session := &models.Session{
		SessionID:  uuid.Must(uuid.NewV7()),
		UserID:     user.UserID,
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(time.Hour),
		LastUsedAt: time.Now(),
	}
	require.NoError(t, stores.Sessions.Create(ctx, session))

	return &selectorFixture{
		stores:   stores,
		selector: NewSelector(guard, stores.Sessions),
		user:     user,
		org:      org,
		project:  project,
		session:  session,
	}
}

func TestSelector_SwitchTo(t *testing.T) {
	ctx := context.Background()

	t.Run("switch then resolve", func(t *testing.T) {
		f := newSelectorFixture(t, ctx)

		require.NoError(t, f.selector.SwitchTo(ctx, f.user.UserID, f.session, f.project))

		got, err := f.selector.Resolve(ctx, f.user.UserID, f.session)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, f.project.ProjectID, got.ProjectID)

		// The pointer is persisted, not just held on the in-memory session.
		stored, err := f.stores.Sessions.Get(ctx, f.session.SessionID)
		require.NoError(t, err)
		require.NotNil(t, stored.CurrentProjectID)
		require.Equal(t, f.project.ProjectID, *stored.CurrentProjectID)
	})

	t.Run("denied switch leaves prior pointer untouched", func(t *testing.T) {
		f := newSelectorFixture(t, ctx)

		require.NoError(t, f.selector.SwitchTo(ctx, f.user.UserID, f.session, f.project))

		foreignOrg := &models.Organization{
			OrgID:     uuid.Must(uuid.NewV7()),
			Name:      "other",
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		require.NoError(t, f.stores.Organizations.Create(ctx, foreignOrg))

		foreign := &models.Project{
			ProjectID: uuid.Must(uuid.NewV7()),
			OrgID:     foreignOrg.OrgID,
			Name:      "forbidden",
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		require.NoError(t, f.stores.Projects.Create(ctx, foreign))

		err := f.selector.SwitchTo(ctx, f.user.UserID, f.session, foreign)
		require.ErrorIs(t, err, access.ErrDenied)

		got, err := f.selector.Resolve(ctx, f.user.UserID, f.session)
		require.NoError(t, err)
		require.Equal(t, f.project.ProjectID, got.ProjectID)
	})
}

func TestSelector_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing selected resolves to nil", func(t *testing.T) {
		f := newSelectorFixture(t, ctx)

		got, err := f.selector.Resolve(ctx, f.user.UserID, f.session)
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("lost membership clears stale pointer", func(t *testing.T) {
		f := newSelectorFixture(t, ctx)

		require.NoError(t, f.selector.SwitchTo(ctx, f.user.UserID, f.session, f.project))
		require.NoError(t, f.stores.Memberships.Delete(ctx, f.user.UserID, f.org.OrgID))

		got, err := f.selector.Resolve(ctx, f.user.UserID, f.session)
		require.NoError(t, err)
		require.Nil(t, got)
		require.Nil(t, f.session.CurrentProjectID)

		// The cleared pointer is persisted: a second resolve is still nil
		// even after rejoining was never granted.
		stored, err := f.stores.Sessions.Get(ctx, f.session.SessionID)
		require.NoError(t, err)
		require.Nil(t, stored.CurrentProjectID)

		got, err = f.selector.Resolve(ctx, f.user.UserID, f.session)
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("deleted project clears stale pointer", func(t *testing.T) {
		f := newSelectorFixture(t, ctx)

		require.NoError(t, f.selector.SwitchTo(ctx, f.user.UserID, f.session, f.project))
		require.NoError(t, f.stores.Projects.Delete(ctx, f.project.ProjectID))

		got, err := f.selector.Resolve(ctx, f.user.UserID, f.session)
		require.NoError(t, err)
		require.Nil(t, got)
		require.Nil(t, f.session.CurrentProjectID)
	})

	t.Run("regained membership does not resurrect cleared pointer", func(t *testing.T) {
		f := newSelectorFixture(t, ctx)

		require.NoError(t, f.selector.SwitchTo(ctx, f.user.UserID, f.session, f.project))
		require.NoError(t, f.stores.Memberships.Delete(ctx, f.user.UserID, f.org.OrgID))

		got, err := f.selector.Resolve(ctx, f.user.UserID, f.session)
		require.NoError(t, err)
		require.Nil(t, got)

		require.NoError(t, f.stores.Memberships.Create(ctx, &models.Membership{
			MembershipID: uuid.Must(uuid.NewV7()),
			UserID:       f.user.UserID,
			OrgID:        f.org.OrgID,
			Role:         models.RoleMember,
			CreatedAt:    time.Now(),
		}))

		got, err = f.selector.Resolve(ctx, f.user.UserID, f.session)
		require.NoError(t, err)
		require.Nil(t, got)
	})
}
