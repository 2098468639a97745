package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ltiernan/tracescope/internal/store"
	"github.com/ltiernan/tracescope/internal/store/memory"
	"github.com/stretchr/testify/require"
)

func newTestSessions() (*Sessions, store.Stores) {
	stores := memory.NewStores()
	return NewSessions(stores.Users, stores.Sessions, time.Hour, false), stores
}

func TestSessions_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("register hashes the password", func(t *testing.T) {
		sessions, _ := newTestSessions()

		user, err := sessions.Register(ctx, "alice", "alice@example.com", "hunter2hunter2")
		require.NoError(t, err)
		require.Equal(t, "alice", user.Handle)
		require.NotEmpty(t, user.PasswordHash)
		require.NotContains(t, user.PasswordHash, "hunter2")
	})

	t.Run("duplicate handle rejected", func(t *testing.T) {
		sessions, _ := newTestSessions()

		_, err := sessions.Register(ctx, "alice", "", "hunter2hunter2")
		require.NoError(t, err)

		_, err = sessions.Register(ctx, "alice", "", "otherpass")
		require.ErrorIs(t, err, store.ErrUserAlreadyExists)
	})

	t.Run("empty handle or password rejected", func(t *testing.T) {
		sessions, _ := newTestSessions()

		_, err := sessions.Register(ctx, "", "", "hunter2hunter2")
		require.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = sessions.Register(ctx, "alice", "", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestSessions_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("login round trip", func(t *testing.T) {
		sessions, _ := newTestSessions()

		registered, err := sessions.Register(ctx, "alice", "", "hunter2hunter2")
		require.NoError(t, err)

		session, user, err := sessions.Login(ctx, "alice", "hunter2hunter2", "test-agent", "192.0.2.1")
		require.NoError(t, err)
		require.Equal(t, registered.UserID, user.UserID)
		require.Equal(t, registered.UserID, session.UserID)
		require.True(t, session.ExpiresAt.After(time.Now()))
	})

	t.Run("wrong password and unknown handle fail identically", func(t *testing.T) {
		sessions, _ := newTestSessions()

		_, err := sessions.Register(ctx, "alice", "", "hunter2hunter2")
		require.NoError(t, err)

		_, _, errWrong := sessions.Login(ctx, "alice", "wrongpass", "", "")
		require.ErrorIs(t, errWrong, ErrInvalidCredentials)

		_, _, errUnknown := sessions.Login(ctx, "nobody", "hunter2hunter2", "", "")
		require.ErrorIs(t, errUnknown, ErrInvalidCredentials)

		require.Equal(t, errWrong, errUnknown)
	})
}

func TestSessions_FromRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves cookie to session and user", func(t *testing.T) {
		sessions, _ := newTestSessions()

		_, err := sessions.Register(ctx, "alice", "", "hunter2hunter2")
		require.NoError(t, err)

		session, _, err := sessions.Login(ctx, "alice", "hunter2hunter2", "", "")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: session.SessionID.String()})

		got, user, err := sessions.FromRequest(req)
		require.NoError(t, err)
		require.Equal(t, session.SessionID, got.SessionID)
		require.Equal(t, "alice", user.Handle)
	})

	t.Run("missing cookie", func(t *testing.T) {
		sessions, _ := newTestSessions()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		_, _, err := sessions.FromRequest(req)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("garbage cookie value", func(t *testing.T) {
		sessions, _ := newTestSessions()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "not-a-uuid"})

		_, _, err := sessions.FromRequest(req)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("unknown session id", func(t *testing.T) {
		sessions, _ := newTestSessions()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: uuid.Must(uuid.NewV7()).String()})

		_, _, err := sessions.FromRequest(req)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("logged out session no longer resolves", func(t *testing.T) {
		sessions, _ := newTestSessions()

		_, err := sessions.Register(ctx, "alice", "", "hunter2hunter2")
		require.NoError(t, err)

		session, _, err := sessions.Login(ctx, "alice", "hunter2hunter2", "", "")
		require.NoError(t, err)

		require.NoError(t, sessions.Logout(ctx, session.SessionID))
		// Logout of a dead session stays successful.
		require.NoError(t, sessions.Logout(ctx, session.SessionID))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: session.SessionID.String()})

		_, _, err = sessions.FromRequest(req)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestSessions_Cookies(t *testing.T) {
	sessions, _ := newTestSessions()
	ctx := context.Background()

	_, err := sessions.Register(ctx, "alice", "", "hunter2hunter2")
	require.NoError(t, err)

	session, _, err := sessions.Login(ctx, "alice", "hunter2hunter2", "", "")
	require.NoError(t, err)

	t.Run("set cookie is http-only", func(t *testing.T) {
		rec := httptest.NewRecorder()
		sessions.SetCookie(rec, session)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, SessionCookieName, cookies[0].Name)
		require.Equal(t, session.SessionID.String(), cookies[0].Value)
		require.True(t, cookies[0].HttpOnly)
		require.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	})

	t.Run("clear cookie expires it", func(t *testing.T) {
		rec := httptest.NewRecorder()
		sessions.ClearCookie(rec)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, SessionCookieName, cookies[0].Name)
		require.Empty(t, cookies[0].Value)
		require.Negative(t, cookies[0].MaxAge)
	})
}
