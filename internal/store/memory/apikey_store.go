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

// APIKeyStore implements store.APIKeyStore using in-memory storage.
// This implementation is for testing and single-node development - data is
// lost on restart.
type APIKeyStore struct {
	mu sync.RWMutex

	keys     map[uuid.UUID]*models.APIKey // key_id -> APIKey
	byDigest map[string]uuid.UUID         // hashed_key -> key_id
}

// NewAPIKeyStore creates a new in-memory API key store.
func NewAPIKeyStore() *APIKeyStore {
	return &APIKeyStore{
		keys:     make(map[uuid.UUID]*models.APIKey),
		byDigest: make(map[string]uuid.UUID),
	}
}

// Create persists a new API key record.
func (s *APIKeyStore) Create(ctx context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[key.KeyID]; exists {
		return store.ErrAPIKeyAlreadyExists
	}

	// Clone to avoid external modifications
	clone := *key
	s.keys[key.KeyID] = &clone
	s.byDigest[key.HashedKey] = key.KeyID

	return nil
}

// Get retrieves an API key by ID, whether active or revoked.
func (s *APIKeyStore) Get(ctx context.Context, keyID uuid.UUID) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, exists := s.keys[keyID]
	if !exists {
		return nil, store.ErrAPIKeyNotFound
	}

	clone := *key
	return &clone, nil
}

// GetActiveByHashedKey retrieves the active key matching the given digest.
// A revoked key behaves exactly like a missing one.
func (s *APIKeyStore) GetActiveByHashedKey(ctx context.Context, hashedKey string) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keyID, exists := s.byDigest[hashedKey]
	if !exists {
		return nil, store.ErrAPIKeyNotFound
	}

	key := s.keys[keyID]
	if key.IsRevoked() {
		return nil, store.ErrAPIKeyNotFound
	}

	clone := *key
	return &clone, nil
}

// Revoke sets revoked_at if and only if it is currently unset. Holding the
// store lock across the check-and-set gives the same "was null" semantics as
// the SQL compare-and-set.
func (s *APIKeyStore) Revoke(ctx context.Context, keyID uuid.UUID, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, exists := s.keys[keyID]
	if !exists {
		return store.ErrAPIKeyNotFound
	}

	if key.RevokedAt != nil {
		return store.ErrAPIKeyAlreadyRevoked
	}

	at := revokedAt
	key.RevokedAt = &at

	return nil
}

// ListByProject returns all keys for a project, newest first, including
// revoked ones.
func (s *APIKeyStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.APIKey
	for _, key := range s.keys {
		if key.ProjectID == projectID {
			clone := *key
			result = append(result, &clone)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}
