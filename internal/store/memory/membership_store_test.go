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

func newTestMembership(userID, orgID uuid.UUID) *models.Membership {
	return &models.Membership{
		MembershipID: uuid.Must(uuid.NewV7()),
		UserID:       userID,
		OrgID:        orgID,
		Role:         models.RoleMember,
		CreatedAt:    time.Now(),
	}
}

func TestMembershipStore_Create(t *testing.T) {
	t.Run("create new membership", func(t *testing.T) {
		st := NewMembershipStore()
		ctx := context.Background()

		m := newTestMembership(uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()))
		require.NoError(t, st.Create(ctx, m))

		got, err := st.Get(ctx, m.UserID, m.OrgID)
		require.NoError(t, err)
		require.Equal(t, m.MembershipID, got.MembershipID)
	})

	t.Run("duplicate pair rejected even with new id", func(t *testing.T) {
		st := NewMembershipStore()
		ctx := context.Background()

		userID := uuid.Must(uuid.NewV7())
		orgID := uuid.Must(uuid.NewV7())
		require.NoError(t, st.Create(ctx, newTestMembership(userID, orgID)))

		err := st.Create(ctx, newTestMembership(userID, orgID))
		require.Equal(t, store.ErrMembershipAlreadyExists, err)
	})

	t.Run("same user in two orgs", func(t *testing.T) {
		st := NewMembershipStore()
		ctx := context.Background()

		userID := uuid.Must(uuid.NewV7())
		require.NoError(t, st.Create(ctx, newTestMembership(userID, uuid.Must(uuid.NewV7()))))
		require.NoError(t, st.Create(ctx, newTestMembership(userID, uuid.Must(uuid.NewV7()))))

		memberships, err := st.ListByUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, memberships, 2)
	})
}

func TestMembershipStore_Delete(t *testing.T) {
	t.Run("delete existing membership", func(t *testing.T) {
		st := NewMembershipStore()
		ctx := context.Background()

		m := newTestMembership(uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()))
		require.NoError(t, st.Create(ctx, m))

		require.NoError(t, st.Delete(ctx, m.UserID, m.OrgID))

		_, err := st.Get(ctx, m.UserID, m.OrgID)
		require.Equal(t, store.ErrMembershipNotFound, err)
	})

	t.Run("delete missing membership", func(t *testing.T) {
		st := NewMembershipStore()
		ctx := context.Background()

		err := st.Delete(ctx, uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()))
		require.Equal(t, store.ErrMembershipNotFound, err)
	})
}

func TestMembershipStore_List(t *testing.T) {
	t.Run("list by user ordered by creation", func(t *testing.T) {
		st := NewMembershipStore()
		ctx := context.Background()

		userID := uuid.Must(uuid.NewV7())

		first := newTestMembership(userID, uuid.Must(uuid.NewV7()))
		first.CreatedAt = time.Now().Add(-time.Hour)
		require.NoError(t, st.Create(ctx, first))

		second := newTestMembership(userID, uuid.Must(uuid.NewV7()))
		require.NoError(t, st.Create(ctx, second))

		memberships, err := st.ListByUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, memberships, 2)
		require.Equal(t, first.MembershipID, memberships[0].MembershipID)
		require.Equal(t, second.MembershipID, memberships[1].MembershipID)
	})

	t.Run("list by org excludes other orgs", func(t *testing.T) {
		st := NewMembershipStore()
		ctx := context.Background()

		orgID := uuid.Must(uuid.NewV7())
		require.NoError(t, st.Create(ctx, newTestMembership(uuid.Must(uuid.NewV7()), orgID)))
		require.NoError(t, st.Create(ctx, newTestMembership(uuid.Must(uuid.NewV7()), orgID)))
		require.NoError(t, st.Create(ctx, newTestMembership(uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()))))

		memberships, err := st.ListByOrg(ctx, orgID)
		require.NoError(t, err)
		require.Len(t, memberships, 2)
	})

	t.Run("list returns copies", func(t *testing.T) {
		st := NewMembershipStore()
		ctx := context.Background()

		m := newTestMembership(uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()))
		require.NoError(t, st.Create(ctx, m))

		memberships, err := st.ListByUser(ctx, m.UserID)
		require.NoError(t, err)
		memberships[0].Role = models.RoleAdmin

		got, err := st.Get(ctx, m.UserID, m.OrgID)
		require.NoError(t, err)
		require.Equal(t, models.RoleMember, got.Role)
	})
}

func TestMembershipStore_ImplementsInterface(t *testing.T) {
	var _ store.MembershipStore = (*MembershipStore)(nil)
}
