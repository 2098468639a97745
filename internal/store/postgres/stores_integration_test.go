//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ltiernan/tracescope/internal/credentials"
	"github.com/ltiernan/tracescope/internal/models"
	"github.com/ltiernan/tracescope/internal/store"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (store.Stores, func()) {
	// Start postgres container
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := NewPool(ctx, &PoolConfig{ConnString: connString})
	require.NoError(t, err)

	err = RunMigrations(ctx, pool)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return NewStores(pool), cleanup
}

func createTestUser(t *testing.T, ctx context.Context, stores store.Stores, handle string) *models.User {
	t.Helper()

	user := &models.User{
		UserID:       uuid.Must(uuid.NewV7()),
		Handle:       handle,
		Email:        handle + "@example.com",
		PasswordHash: "$2a$10$not.a.real.hash.but.opaque.to.the.store",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, stores.Users.Create(ctx, user))

	return user
}

func createTestOrg(t *testing.T, ctx context.Context, stores store.Stores, name string) *models.Organization {
	t.Helper()

	org := &models.Organization{
		OrgID:     uuid.Must(uuid.NewV7()),
		Name:      name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, stores.Organizations.Create(ctx, org))

	return org
}

func TestIntegration_MembershipLifecycle(t *testing.T) {
	ctx := context.Background()
	stores, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	user := createTestUser(t, ctx, stores, "alice")
	org := createTestOrg(t, ctx, stores, "acme")

	t.Run("create and get membership", func(t *testing.T) {
		membership := &models.Membership{
			MembershipID: uuid.Must(uuid.NewV7()),
			UserID:       user.UserID,
			OrgID:        org.OrgID,
			Role:         models.RoleAdmin,
			CreatedAt:    time.Now(),
		}
		require.NoError(t, stores.Memberships.Create(ctx, membership))

		got, err := stores.Memberships.Get(ctx, user.UserID, org.OrgID)
		require.NoError(t, err)
		require.Equal(t, membership.MembershipID, got.MembershipID)
		require.Equal(t, models.RoleAdmin, got.Role)
	})

	t.Run("duplicate membership rejected", func(t *testing.T) {
		dup := &models.Membership{
			MembershipID: uuid.Must(uuid.NewV7()),
			UserID:       user.UserID,
			OrgID:        org.OrgID,
			Role:         models.RoleMember,
			CreatedAt:    time.Now(),
		}
		err := stores.Memberships.Create(ctx, dup)
		require.ErrorIs(t, err, store.ErrMembershipAlreadyExists)
	})

	t.Run("delete membership", func(t *testing.T) {
		require.NoError(t, stores.Memberships.Delete(ctx, user.UserID, org.OrgID))

		_, err := stores.Memberships.Get(ctx, user.UserID, org.OrgID)
		require.ErrorIs(t, err, store.ErrMembershipNotFound)

		err = stores.Memberships.Delete(ctx, user.UserID, org.OrgID)
		require.ErrorIs(t, err, store.ErrMembershipNotFound)
	})
}

func TestIntegration_ProjectScoping(t *testing.T) {
	ctx := context.Background()
	stores, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	org1 := createTestOrg(t, ctx, stores, "org-one")
	org2 := createTestOrg(t, ctx, stores, "org-two")

	p1 := &models.Project{
		ProjectID: uuid.Must(uuid.NewV7()),
		OrgID:     org1.OrgID,
		Name:      "observability",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, stores.Projects.Create(ctx, p1))

	p2 := &models.Project{
		ProjectID: uuid.Must(uuid.NewV7()),
		OrgID:     org2.OrgID,
		Name:      "billing",
		CreatedAt: time.Now().Add(time.Millisecond),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, stores.Projects.Create(ctx, p2))

	t.Run("list is scoped to owning org", func(t *testing.T) {
		projects, err := stores.Projects.ListByOrg(ctx, org1.OrgID)
		require.NoError(t, err)
		require.Len(t, projects, 1)
		require.Equal(t, p1.ProjectID, projects[0].ProjectID)
	})

	t.Run("rename preserves org", func(t *testing.T) {
		p1.Name = "observability-v2"
		require.NoError(t, stores.Projects.Update(ctx, p1))

		got, err := stores.Projects.Get(ctx, p1.ProjectID)
		require.NoError(t, err)
		require.Equal(t, "observability-v2", got.Name)
		require.Equal(t, org1.OrgID, got.OrgID)
	})

	t.Run("delete removes project", func(t *testing.T) {
		require.NoError(t, stores.Projects.Delete(ctx, p2.ProjectID))

		_, err := stores.Projects.Get(ctx, p2.ProjectID)
		require.ErrorIs(t, err, store.ErrProjectNotFound)
	})
}

func TestIntegration_APIKeyLifecycle(t *testing.T) {
	ctx := context.Background()
	stores, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	org := createTestOrg(t, ctx, stores, "acme")
	project := &models.Project{
		ProjectID: uuid.Must(uuid.NewV7()),
		OrgID:     org.OrgID,
		Name:      "tracer",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, stores.Projects.Create(ctx, project))

	digest := credentials.HashSecret("tsk_integration_test_secret_value")

	key := &models.APIKey{
		KeyID:     uuid.Must(uuid.NewV7()),
		ProjectID: project.ProjectID,
		Name:      "ci",
		HashedKey: digest,
		CreatedAt: time.Now(),
	}
	require.NoError(t, stores.APIKeys.Create(ctx, key))

	t.Run("lookup active key by digest", func(t *testing.T) {
		got, err := stores.APIKeys.GetActiveByHashedKey(ctx, digest)
		require.NoError(t, err)
		require.Equal(t, key.KeyID, got.KeyID)
		require.Nil(t, got.RevokedAt)
	})

	t.Run("revoke is a one-shot compare-and-set", func(t *testing.T) {
		first := time.Now()
		require.NoError(t, stores.APIKeys.Revoke(ctx, key.KeyID, first))

		err := stores.APIKeys.Revoke(ctx, key.KeyID, first.Add(time.Hour))
		require.ErrorIs(t, err, store.ErrAPIKeyAlreadyRevoked)

		got, err := stores.APIKeys.Get(ctx, key.KeyID)
		require.NoError(t, err)
		require.NotNil(t, got.RevokedAt)
		require.WithinDuration(t, first, *got.RevokedAt, time.Second)
	})

	t.Run("revoked key vanishes from digest lookup", func(t *testing.T) {
		_, err := stores.APIKeys.GetActiveByHashedKey(ctx, digest)
		require.ErrorIs(t, err, store.ErrAPIKeyNotFound)
	})

	t.Run("revoke missing key", func(t *testing.T) {
		err := stores.APIKeys.Revoke(ctx, uuid.Must(uuid.NewV7()), time.Now())
		require.ErrorIs(t, err, store.ErrAPIKeyNotFound)
	})

	t.Run("list includes revoked keys", func(t *testing.T) {
		keys, err := stores.APIKeys.ListByProject(ctx, project.ProjectID)
		require.NoError(t, err)
		require.Len(t, keys, 1)
		require.NotNil(t, keys[0].RevokedAt)
	})
}

func TestIntegration_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	stores, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	user := createTestUser(t, ctx, stores, "bob")
	org := createTestOrg(t, ctx, stores, "acme")
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
		UserAgent:  "integration-test",
		IPAddress:  "192.0.2.10",
	}
	require.NoError(t, stores.Sessions.Create(ctx, session))

	t.Run("round trip including inet column", func(t *testing.T) {
		got, err := stores.Sessions.Get(ctx, session.SessionID)
		require.NoError(t, err)
		require.Equal(t, user.UserID, got.UserID)
		require.Equal(t, "192.0.2.10", got.IPAddress)
		require.Nil(t, got.CurrentProjectID)
	})

	t.Run("empty ip address stored as null", func(t *testing.T) {
		noIP := &models.Session{
			SessionID:  uuid.Must(uuid.NewV7()),
			UserID:     user.UserID,
			CreatedAt:  time.Now(),
			ExpiresAt:  time.Now().Add(time.Hour),
			LastUsedAt: time.Now(),
		}
		require.NoError(t, stores.Sessions.Create(ctx, noIP))

		got, err := stores.Sessions.Get(ctx, noIP.SessionID)
		require.NoError(t, err)
		require.Empty(t, got.IPAddress)
	})

	t.Run("set and clear current project", func(t *testing.T) {
		require.NoError(t, stores.Sessions.SetCurrentProject(ctx, session.SessionID, &project.ProjectID))

		got, err := stores.Sessions.Get(ctx, session.SessionID)
		require.NoError(t, err)
		require.NotNil(t, got.CurrentProjectID)
		require.Equal(t, project.ProjectID, *got.CurrentProjectID)

		require.NoError(t, stores.Sessions.SetCurrentProject(ctx, session.SessionID, nil))

		got, err = stores.Sessions.Get(ctx, session.SessionID)
		require.NoError(t, err)
		require.Nil(t, got.CurrentProjectID)
	})

	t.Run("deleting project clears session pointer", func(t *testing.T) {
		require.NoError(t, stores.Sessions.SetCurrentProject(ctx, session.SessionID, &project.ProjectID))
		require.NoError(t, stores.Projects.Delete(ctx, project.ProjectID))

		got, err := stores.Sessions.Get(ctx, session.SessionID)
		require.NoError(t, err)
		require.Nil(t, got.CurrentProjectID)
	})

	t.Run("expired session reported as expired", func(t *testing.T) {
		expired := &models.Session{
			SessionID:  uuid.Must(uuid.NewV7()),
			UserID:     user.UserID,
			CreatedAt:  time.Now().Add(-2 * time.Hour),
			ExpiresAt:  time.Now().Add(-time.Hour),
			LastUsedAt: time.Now().Add(-2 * time.Hour),
		}
		require.NoError(t, stores.Sessions.Create(ctx, expired))

		_, err := stores.Sessions.Get(ctx, expired.SessionID)
		require.ErrorIs(t, err, store.ErrSessionExpired)

		removed, err := stores.Sessions.DeleteExpired(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, removed)
	})
}
