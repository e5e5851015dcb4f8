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

// Service provides registration, login, session validation, and logout.
type Service struct {
	users       UserRepository
	sessions    SessionRepository
	hasher      PasswordHasher
	logger      *slog.Logger
	sessionTTL  time.Duration
	rememberTTL time.Duration
}

// NewService creates a new Service. All dependencies are required.
func NewService(users UserRepository, sessions SessionRepository, hasher PasswordHasher) (*Service, error) {
	return NewServiceWithLogger(users, sessions, hasher, slog.Default())
}

// NewServiceWithLogger creates a new Service with an explicit logger.
func NewServiceWithLogger(users UserRepository, sessions SessionRepository, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("logger is required")
	}
	return &Service{
		users:       users,
		sessions:    sessions,
		hasher:      hasher,
		logger:      logger,
		sessionTTL:  SessionTokenTTL,
		rememberTTL: RememberMeTTL,
	}, nil
}

// SetSessionTTLs overrides the session expiry windows. Non-positive values
// leave the current setting unchanged.
func (s *Service) SetSessionTTLs(session, rememberMe time.Duration) {
	if session > 0 {
		s.sessionTTL = session
	}
	if rememberMe > 0 {
		s.rememberTTL = rememberMe
	}
}

// dummyPasswordHash is used when a user doesn't exist to prevent timing
// attacks. We still run password verification to make response time
// consistent. This is NOT a real credential - it's a fake hash that will
// never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Register creates a new user account and returns its assigned ID.
// The username must be 3-40 characters of letters, digits, and underscores;
// the password must meet the strength rules in ValidatePassword. A taken
// username fails with AUTH_DUPLICATE_USER and writes nothing.
func (s *Service) Register(ctx context.Context, username, password string) (int64, error) {
	if err := ValidateUsername(username); err != nil {
		return 0, err
	}
	if err := ValidatePassword(password); err != nil {
		return 0, err
	}

	// Cheap pre-check; the unique index is the real guard against races.
	_, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return 0, oops.Code("AUTH_DUPLICATE_USER").
			With("username", username).
			Errorf("username is already taken")
	case !errors.Is(err, ErrNotFound):
		return 0, oops.Code("AUTH_STORAGE_FAILED").
			With("operation", "get user by username").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return 0, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(username, hash)
	if err != nil {
		return 0, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Lost the race against a concurrent registration.
			return 0, oops.Code("AUTH_DUPLICATE_USER").
				With("username", username).
				Errorf("username is already taken")
		}
		return 0, oops.Code("AUTH_STORAGE_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", username)
	return user.ID, nil
}

// Login authenticates a user and issues a fresh session token, invalidating
// any prior session for the same user. The expiry window defaults to
// RememberMeTTL when rememberMe is set and SessionTokenTTL otherwise.
// Unknown username and wrong password both fail with AUTH_INVALID_CREDENTIALS;
// a dummy verification keeps the two failure paths indistinguishable by
// timing.
func (s *Service) Login(ctx context.Context, username, password string, rememberMe bool) (string, error) {
	user, lookupErr := s.users.GetByUsername(ctx, username)

	targetHash := dummyPasswordHash
	userExists := false

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return "", oops.Code("AUTH_STORAGE_FAILED").
				With("operation", "get user by username").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	// Always verify, real hash or not.
	valid := s.hasher.Verify(password, targetHash)
	if !userExists || !valid {
		return "", oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	ttl := s.sessionTTL
	if rememberMe {
		ttl = s.rememberTTL
	}

	session, err := NewSession(user.ID, tokenHash, time.Now().UTC().Add(ttl))
	if err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	// Replace is atomic per user, so two racing logins cannot leave two
	// live tokens behind.
	if err := s.sessions.Replace(ctx, session); err != nil {
		return "", oops.Code("AUTH_STORAGE_FAILED").
			With("operation", "replace session").
			Wrap(err)
	}

	s.logger.Info("user logged in", "user_id", user.ID, "remember_me", rememberMe)
	return token, nil
}

// Validate resolves a session token to its owning user ID. An unknown token
// fails with TOKEN_INVALID; an expired one is lazily deleted and fails with
// TOKEN_EXPIRED. The success path has no side effects.
func (s *Service) Validate(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, oops.Code("TOKEN_INVALID").Errorf("session token cannot be empty")
	}

	session, err := s.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, oops.Code("TOKEN_INVALID").Errorf("invalid session token")
		}
		return 0, oops.Code("AUTH_STORAGE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpired() {
		// Lazy cleanup; validation fails either way.
		if delErr := s.sessions.DeleteByTokenHash(ctx, session.TokenHash); delErr != nil {
			s.logger.Warn("failed to purge expired session",
				"user_id", session.UserID, "error", delErr)
		}
		return 0, oops.Code("TOKEN_EXPIRED").Errorf("session has expired")
	}

	return session.UserID, nil
}

// Logout revokes a session token. Logging out an unknown or already revoked
// token is a no-op, never an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteByTokenHash(ctx, HashSessionToken(token)); err != nil {
		return oops.Code("AUTH_STORAGE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}
