// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Arcadia Planner Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes = 32        // 32 bytes of entropy, base64url encoded
	DefaultResetTTL = time.Hour // 1 hour expiry
)

// ResetToken represents a single-use password reset grant. Used is monotonic:
// once true it never goes back, and the token is permanently invalid.
type ResetToken struct {
	ID        ulid.ULID
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// NewResetToken creates a validated ResetToken instance.
func NewResetToken(userID int64, tokenHash string, expiresAt time.Time) (*ResetToken, error) {
	if userID <= 0 {
		return nil, oops.Code("RESET_INVALID_USER").Errorf("user ID must be positive")
	}
	if tokenHash == "" {
		return nil, oops.Code("RESET_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("RESET_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &ResetToken{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// IsExpired returns true if the reset token has expired.
func (r *ResetToken) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}

// GenerateResetToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is handed to the user; the hash is stored.
func GenerateResetToken() (token, hash string, err error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = base64.RawURLEncoding.EncodeToString(tokenBytes)
	hash = hashResetToken(token)

	return token, hash, nil
}

// hashResetToken computes the SHA-256 hash of a reset token.
func hashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ResetTokenRepository manages reset token persistence. Expired tokens are
// never swept; the Used and ExpiresAt checks reject them regardless of
// physical presence.
type ResetTokenRepository interface {
	// Create stores a new reset token. Prior tokens for the same user are
	// left untouched.
	Create(ctx context.Context, token *ResetToken) error

	// GetByTokenHash retrieves a reset token by its token hash.
	// Returns ErrNotFound if absent.
	GetByTokenHash(ctx context.Context, tokenHash string) (*ResetToken, error)

	// Consume marks the token used and replaces the owning user's password
	// hash as one atomic step, returning the user ID. Of two concurrent
	// Consume calls for the same token, exactly one succeeds; the loser
	// gets ErrTokenUsed (wrapped). Returns ErrNotFound if the token is
	// absent. Neither write happens unless both do.
	Consume(ctx context.Context, tokenHash, newPasswordHash string) (int64, error)
}
