// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Arcadia Planner Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// PasswordResetService handles the password reset flow: issuance, validation,
// and single-use consumption.
type PasswordResetService struct {
	users      UserRepository
	resets     ResetTokenRepository
	hasher     PasswordHasher
	logger     *slog.Logger
	defaultTTL time.Duration
}

// NewPasswordResetService creates a new PasswordResetService.
func NewPasswordResetService(users UserRepository, resets ResetTokenRepository, hasher PasswordHasher) (*PasswordResetService, error) {
	return NewPasswordResetServiceWithLogger(users, resets, hasher, slog.Default())
}

// NewPasswordResetServiceWithLogger creates a new PasswordResetService with
// an explicit logger.
func NewPasswordResetServiceWithLogger(users UserRepository, resets ResetTokenRepository, hasher PasswordHasher, logger *slog.Logger) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("users repository is required")
	}
	if resets == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("resets repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("logger is required")
	}
	return &PasswordResetService{
		users:      users,
		resets:     resets,
		hasher:     hasher,
		logger:     logger,
		defaultTTL: DefaultResetTTL,
	}, nil
}

// SetDefaultTTL overrides the reset token lifetime used when Request is
// called with a non-positive ttl. Non-positive values are ignored.
func (s *PasswordResetService) SetDefaultTTL(ttl time.Duration) {
	if ttl > 0 {
		s.defaultTTL = ttl
	}
}

// Request issues a new reset token for the named user, valid for ttl
// (the configured default, normally DefaultResetTTL, when ttl <= 0). Outstanding tokens for the same user stay
// valid. An unknown username fails with USER_NOT_FOUND; unlike login, this
// path does reveal account existence, matching the historical behavior of
// the reset endpoint.
func (s *PasswordResetService) Request(ctx context.Context, username string, ttl time.Duration) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code("USER_NOT_FOUND").
				With("username", username).
				Errorf("user not found")
		}
		return "", oops.Code("AUTH_STORAGE_FAILED").
			With("operation", "get user by username").
			Wrap(err)
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	reset, err := NewResetToken(user.ID, hash, time.Now().UTC().Add(ttl))
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "create reset token").
			Wrap(err)
	}

	if err := s.resets.Create(ctx, reset); err != nil {
		return "", oops.Code("AUTH_STORAGE_FAILED").
			With("operation", "store reset token").
			Wrap(err)
	}

	s.logger.Info("password reset requested", "user_id", user.ID)
	return token, nil
}

// ValidateToken checks a reset token and returns the owning user ID.
// Failure order: absent tokens fail with RESET_TOKEN_INVALID, consumed ones
// with RESET_TOKEN_USED, expired ones with RESET_TOKEN_EXPIRED (expiry is
// only checked once the token is known to be unused). No mutation happens
// on validation alone.
func (s *PasswordResetService) ValidateToken(ctx context.Context, token string) (int64, error) {
	reset, err := s.lookup(ctx, token)
	if err != nil {
		return 0, err
	}
	return reset.UserID, nil
}

// Consume redeems a reset token: it re-validates, strength-checks the new
// password, then marks the token used and updates the password hash as one
// storage transaction. A second Consume with the same token fails with
// RESET_TOKEN_USED and leaves the password untouched.
func (s *PasswordResetService) Consume(ctx context.Context, token, newPassword string) error {
	reset, err := s.lookup(ctx, token)
	if err != nil {
		return err
	}

	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_CONSUME_FAILED").
			With("operation", "hash new password").
			Wrap(err)
	}

	userID, err := s.resets.Consume(ctx, reset.TokenHash, newHash)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenUsed):
			// Lost the race against a concurrent consume.
			return oops.Code("RESET_TOKEN_USED").Errorf("reset token already used")
		case errors.Is(err, ErrNotFound):
			return oops.Code("RESET_TOKEN_INVALID").Errorf("reset token not found")
		default:
			return oops.Code("AUTH_STORAGE_FAILED").
				With("operation", "consume reset token").
				Wrap(err)
		}
	}

	s.logger.Info("password reset completed", "user_id", userID)
	return nil
}

// lookup fetches a reset token by plaintext and applies the validity rules.
func (s *PasswordResetService) lookup(ctx context.Context, token string) (*ResetToken, error) {
	if token == "" {
		return nil, oops.Code("RESET_TOKEN_INVALID").Errorf("reset token cannot be empty")
	}

	reset, err := s.resets.GetByTokenHash(ctx, hashResetToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("RESET_TOKEN_INVALID").Errorf("reset token not found")
		}
		return nil, oops.Code("AUTH_STORAGE_FAILED").
			With("operation", "get reset token by hash").
			Wrap(err)
	}

	if reset.Used {
		return nil, oops.Code("RESET_TOKEN_USED").Errorf("reset token already used")
	}
	if reset.IsExpired() {
		return nil, oops.Code("RESET_TOKEN_EXPIRED").Errorf("reset token has expired")
	}

	return reset, nil
}
