package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ltiernan/tracescope/internal/models"
	"github.com/ltiernan/tracescope/internal/store"
	"github.com/ltiernan/tracescope/internal/telemetry"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// Sentinel errors for authentication
var (
	// ErrUnauthenticated is returned when no valid session accompanies a
	// request. Distinct from authorization failures: this one sends the
	// caller to login.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidCredentials is returned for a bad handle/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// SessionCookieName is the cookie that carries the opaque session ID. All
// session data lives server-side.
const SessionCookieName = "_session"

// Sessions implements first-party session authentication: registration,
// login, logout, and resolving the session cookie on each request.
type Sessions struct {
	users    store.UserStore
	sessions store.SessionStore

	ttl        time.Duration
	bcryptCost int
	secure     bool // mark cookies Secure; disabled for plain-HTTP dev
}

// NewSessions creates a session authenticator. ttl bounds session lifetime;
// secure controls the cookie Secure attribute.
func NewSessions(users store.UserStore, sessions store.SessionStore, ttl time.Duration, secure bool) *Sessions {
	return &Sessions{
		users:      users,
		sessions:   sessions,
		ttl:        ttl,
		bcryptCost: bcrypt.DefaultCost,
		secure:     secure,
	}
}

// Register creates a new user with a bcrypt-hashed password. The password is
// never stored or logged in plaintext.
func (s *Sessions) Register(ctx context.Context, handle, email, password string) (*models.User, error) {
	if handle == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	userID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user ID: %w", err)
	}

	user := &models.User{
		UserID:       userID,
		Handle:       handle,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", user.UserID.String()).
		Str("handle", user.Handle).
		Msg("Registered user")

	return user, nil
}

// Login verifies the handle/password pair and creates a server-side session.
// An unknown handle and a wrong password fail identically.
func (s *Sessions) Login(ctx context.Context, handle, password, userAgent, ipAddress string) (*models.Session, *models.User, error) {
	user, err := s.users.GetByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			telemetry.GetMetrics().LoginFailuresTotal.Add(ctx, 1)
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		telemetry.GetMetrics().LoginFailuresTotal.Add(ctx, 1)
		return nil, nil, ErrInvalidCredentials
	}

	sessionID, err := uuid.NewV7()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &models.Session{
		SessionID:  sessionID,
		UserID:     user.UserID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
		LastUsedAt: now,
		UserAgent:  userAgent,
		IPAddress:  ipAddress,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().
		Str("user_id", user.UserID.String()).
		Str("session_id", session.SessionID.String()).
		Msg("User logged in")
	telemetry.GetMetrics().LoginsTotal.Add(ctx, 1)

	return session, user, nil
}

// Logout deletes the session. A missing session is treated as success.
func (s *Sessions) Logout(ctx context.Context, sessionID uuid.UUID) error {
	err := s.sessions.Delete(ctx, sessionID)
	if err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// FromRequest resolves the session cookie to a live session and its user.
// Missing cookies, unknown IDs and expired sessions all return
// ErrUnauthenticated.
func (s *Sessions) FromRequest(r *http.Request) (*models.Session, *models.User, error) {
	ctx := r.Context()

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, nil, ErrUnauthenticated
	}

	sessionID, err := uuid.Parse(cookie.Value)
	if err != nil {
		return nil, nil, ErrUnauthenticated
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) || errors.Is(err, store.ErrSessionExpired) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	user, err := s.users.Get(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := s.sessions.UpdateLastUsed(ctx, session.SessionID); err != nil {
		log.Debug().Err(err).Str("session_id", session.SessionID.String()).Msg("Failed to bump session last_used_at")
	}

	return session, user, nil
}

// SetCookie writes the session cookie on a login response.
func (s *Sessions) SetCookie(w http.ResponseWriter, session *models.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.SessionID.String(),
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie on logout.
func (s *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
