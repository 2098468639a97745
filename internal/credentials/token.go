package credentials

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
)

const (
	// secretPrefix makes leaked keys easy to recognise in scanners without
	// revealing anything about the value.
	secretPrefix = "tsk_"

	// secretBytes is the entropy of a key secret. 32 bytes (256 bits) makes
	// brute-forcing the digest infeasible.
	secretBytes = 32
)

// generateSecret returns a fresh plaintext key secret. The value exists only
// on the issueKey call stack and in the single return to the caller; nothing
// else may retain it.
func generateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return secretPrefix + base58.Encode(buf), nil
}

// HashSecret computes the one-way digest stored in place of the secret:
// hex-encoded SHA-256 of the full plaintext token (prefix included).
// Deterministic, so re-hashing a returned plaintext reproduces the stored
// digest exactly.
func HashSecret(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
