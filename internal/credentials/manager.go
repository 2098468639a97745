package credentials

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ltiernan/tracescope/internal/access"
	"github.com/ltiernan/tracescope/internal/models"
	"github.com/ltiernan/tracescope/internal/store"
	"github.com/ltiernan/tracescope/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// Sentinel errors for credential operations
var (
	// ErrInvalidKey is returned by VerifyKey for anything that does not match
	// an active key: unknown secrets, revoked keys, orphaned keys. Callers
	// cannot tell the cases apart.
	ErrInvalidKey = errors.New("invalid api key")

	// ErrNameRequired is returned when issuing a key without a display name.
	ErrNameRequired = errors.New("key name is required")
)

// Manager owns the API key lifecycle: issuance, verification, revocation and
// listing. Every user-initiated operation is authorized through the access
// guard; VerifyKey is the one exception, since it is how external callers
// authenticate in the first place.
type Manager struct {
	guard       *access.Guard
	apiKeys     store.APIKeyStore
	projects    store.ProjectStore
	subscribers []Subscriber
}

// NewManager creates a credential lifecycle manager.
func NewManager(guard *access.Guard, apiKeys store.APIKeyStore, projects store.ProjectStore) *Manager {
	return &Manager{
		guard:    guard,
		apiKeys:  apiKeys,
		projects: projects,
	}
}

// Subscribe registers a subscriber for key lifecycle events. Not safe to call
// concurrently with key operations; wire subscribers up before serving.
func (m *Manager) Subscribe(sub Subscriber) {
	m.subscribers = append(m.subscribers, sub)
}

// IssueKey mints a new API key for the project and returns its metadata plus
// the plaintext secret. The plaintext is returned to the caller exactly once:
// it is never persisted, never logged, and cannot be recovered from the
// stored digest.
func (m *Manager) IssueKey(ctx context.Context, userID uuid.UUID, project *models.Project, name string) (*models.APIKey, string, error) {
	if err := m.guard.AuthorizeProjectMutation(ctx, userID, project); err != nil {
		return nil, "", err
	}

	if name == "" {
		return nil, "", ErrNameRequired
	}

	plaintext, err := generateSecret()
	if err != nil {
		return nil, "", err
	}

	keyID, err := uuid.NewV7()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate key ID: %w", err)
	}

	key := &models.APIKey{
		KeyID:     keyID,
		ProjectID: project.ProjectID,
		Name:      name,
		HashedKey: HashSecret(plaintext),
		CreatedAt: time.Now(),
	}

	if err := m.apiKeys.Create(ctx, key); err != nil {
		return nil, "", fmt.Errorf("failed to persist api key: %w", err)
	}

	log.Info().
		Str("key_id", key.KeyID.String()).
		Str("project_id", project.ProjectID.String()).
		Str("org_id", project.OrgID.String()).
		Msg("Issued API key")
	telemetry.GetMetrics().KeysIssuedTotal.Add(ctx, 1)

	m.publish(ctx, Event{
		Type:      EventKeyIssued,
		KeyID:     key.KeyID,
		ProjectID: project.ProjectID,
		OrgID:     project.OrgID,
		At:        key.CreatedAt,
	})

	return key, plaintext, nil
}

// VerifyKey authenticates a plaintext candidate and returns the owning
// project on success. Revoked keys and unknown secrets fail identically with
// ErrInvalidKey. The digest comparison is constant time, so the failure
// latency does not depend on where a mismatch occurs.
func (m *Manager) VerifyKey(ctx context.Context, plaintext string) (*models.Project, error) {
	started := time.Now()
	metrics := telemetry.GetMetrics()
	metrics.KeyVerifyTotal.Add(ctx, 1)
	defer func() {
		metrics.KeyVerifyDuration.Record(ctx, float64(time.Since(started).Milliseconds()))
	}()

	digest := HashSecret(plaintext)

	key, err := m.apiKeys.GetActiveByHashedKey(ctx, digest)
	if err != nil {
		if errors.Is(err, store.ErrAPIKeyNotFound) {
			metrics.KeyVerifyFailures.Add(ctx, 1)
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}

	// The store already matched on the digest; re-compare in constant time so
	// a store that matches on a prefix index can never produce a near-miss.
	if subtle.ConstantTimeCompare([]byte(key.HashedKey), []byte(digest)) != 1 {
		metrics.KeyVerifyFailures.Add(ctx, 1)
		return nil, ErrInvalidKey
	}

	project, err := m.projects.Get(ctx, key.ProjectID)
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			log.Debug().
				Str("key_id", key.KeyID.String()).
				Str("project_id", key.ProjectID.String()).
				Msg("API key verified but owning project is gone")
			metrics.KeyVerifyFailures.Add(ctx, 1)
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("failed to get owning project: %w", err)
	}

	return project, nil
}

// RevokeKey revokes the key, stamping revoked_at with the time of the first
// revocation. Revoking an already-revoked key is a no-op success so retries
// are harmless; the original timestamp is untouched and no second event is
// emitted. The row is never deleted.
func (m *Manager) RevokeKey(ctx context.Context, userID, keyID uuid.UUID) error {
	key, err := m.apiKeys.Get(ctx, keyID)
	if err != nil {
		if errors.Is(err, store.ErrAPIKeyNotFound) {
			log.Debug().
				Str("user_id", userID.String()).
				Str("key_id", keyID.String()).
				Msg("Revoke denied: no such key")
			return access.ErrDenied
		}
		return fmt.Errorf("failed to get api key: %w", err)
	}

	project, err := m.guard.AuthorizeKeyAccess(ctx, userID, key)
	if err != nil {
		return err
	}

	revokedAt := time.Now()
	if err := m.apiKeys.Revoke(ctx, key.KeyID, revokedAt); err != nil {
		if errors.Is(err, store.ErrAPIKeyAlreadyRevoked) {
			// Idempotent: a retry of a successful revoke is still a success.
			return nil
		}
		return fmt.Errorf("failed to revoke api key: %w", err)
	}

	log.Info().
		Str("key_id", key.KeyID.String()).
		Str("project_id", project.ProjectID.String()).
		Str("org_id", project.OrgID.String()).
		Msg("Revoked API key")
	telemetry.GetMetrics().KeysRevokedTotal.Add(ctx, 1)

	m.publish(ctx, Event{
		Type:      EventKeyRevoked,
		KeyID:     key.KeyID,
		ProjectID: project.ProjectID,
		OrgID:     project.OrgID,
		At:        revokedAt,
	})

	return nil
}

// ListKeys returns metadata for all of the project's keys, newest first,
// including revoked ones. Secrets are long gone by this point; only digests
// and timestamps exist.
func (m *Manager) ListKeys(ctx context.Context, userID uuid.UUID, project *models.Project) ([]*models.APIKey, error) {
	if err := m.guard.AuthorizeProjectAccess(ctx, userID, project); err != nil {
		return nil, err
	}

	keys, err := m.apiKeys.ListByProject(ctx, project.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	return keys, nil
}

// publish delivers an event to every subscriber, synchronously and in order.
func (m *Manager) publish(ctx context.Context, event Event) {
	for _, sub := range m.subscribers {
		sub.HandleKeyEvent(ctx, event)
	}
}
