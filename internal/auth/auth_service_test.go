// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Arcadia Planner Contributors

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcadia-planner/arcadia/internal/auth"
	"github.com/arcadia-planner/arcadia/internal/auth/authtest"
	"github.com/arcadia-planner/arcadia/pkg/errutil"
)

// newTestService wires a Service to in-memory fakes.
func newTestService(t *testing.T) (*auth.Service, *authtest.UserRepo, *authtest.SessionRepo) {
	t.Helper()
	users := authtest.NewUserRepo()
	sessions := authtest.NewSessionRepo()
	svc, err := auth.NewService(users, sessions, auth.NewArgon2idHasher())
	require.NoError(t, err)
	return svc, users, sessions
}

func TestNewService(t *testing.T) {
	users := authtest.NewUserRepo()
	sessions := authtest.NewSessionRepo()
	hasher := auth.NewArgon2idHasher()

	t.Run("rejects nil users repository", func(t *testing.T) {
		_, err := auth.NewService(nil, sessions, hasher)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_DEPS")
	})

	t.Run("rejects nil sessions repository", func(t *testing.T) {
		_, err := auth.NewService(users, nil, hasher)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_DEPS")
	})

	t.Run("rejects nil hasher", func(t *testing.T) {
		_, err := auth.NewService(users, sessions, nil)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_DEPS")
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates user with hashed password", func(t *testing.T) {
		svc, users, _ := newTestService(t)

		userID, err := svc.Register(ctx, "alice", "s3cret-pass!")
		require.NoError(t, err)
		assert.Positive(t, userID)

		stored, err := users.GetByID(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "alice", stored.Username)
		assert.NotEqual(t, "s3cret-pass!", stored.PasswordHash)
		assert.NotContains(t, stored.PasswordHash, "s3cret-pass!")
	})

	t.Run("rejects invalid username", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.Register(ctx, "a b", "s3cret-pass!")
		errutil.AssertErrorCode(t, err, "AUTH_VALIDATION_FAILED")
	})

	t.Run("rejects weak password", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.Register(ctx, "alice", "lettersonly")
		errutil.AssertErrorCode(t, err, "AUTH_VALIDATION_FAILED")
	})

	t.Run("rejects duplicate username", func(t *testing.T) {
		svc, users, _ := newTestService(t)

		first, err := svc.Register(ctx, "alice", "s3cret-pass!")
		require.NoError(t, err)

		_, err = svc.Register(ctx, "alice", "0ther-pass!x")
		errutil.AssertErrorCode(t, err, "AUTH_DUPLICATE_USER")

		// Original account untouched.
		stored, err := users.GetByID(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, "alice", stored.Username)
	})

	t.Run("distinct usernames both register", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		id1, err := svc.Register(ctx, "alice", "s3cret-pass!")
		require.NoError(t, err)
		id2, err := svc.Register(ctx, "bob", "s3cret-pass!")
		require.NoError(t, err)
		assert.NotEqual(t, id1, id2)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("issues token for valid credentials", func(t *testing.T) {
		svc, _, sessions := newTestService(t)
		userID, err := svc.Register(ctx, "alice", "s3cret-pass!")
		require.NoError(t, err)

		token, err := svc.Login(ctx, "alice", "s3cret-pass!", false)
		require.NoError(t, err)
		assert.NotEmpty(t, token)

		stored, err := sessions.GetByTokenHash(ctx, auth.HashSessionToken(token))
		require.NoError(t, err)
		assert.Equal(t, userID, stored.UserID)
	})

	t.Run("wrong password fails with invalid credentials", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.Register(ctx, "alice", "s3cret-pass!")
		require.NoError(t, err)

		_, err = svc.Login(ctx, "alice", "wrong-pass1!", false)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	})

	t.Run("unknown user fails with the same code", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.Login(ctx, "nobody", "s3cret-pass!", false)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	})

	t.Run("second login replaces the first session", func(t *testing.T) {
		svc, _, sessions := newTestService(t)
		userID, err := svc.Register(ctx, "alice", "s3cret-pass!")
		require.NoError(t, err)

		token1, err := svc.Login(ctx, "alice", "s3cret-pass!", false)
		require.NoError(t, err)
		token2, err := svc.Login(ctx, "alice", "s3cret-pass!", false)
		require.NoError(t, err)

		assert.Equal(t, 1, sessions.Count())

		_, err = svc.Validate(ctx, token1)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")

		gotID, err := svc.Validate(ctx, token2)
		require.NoError(t, err)
		assert.Equal(t, userID, gotID)
	})

	t.Run("remember me extends the expiry window", func(t *testing.T) {
		svc, _, sessions := newTestService(t)
		_, err := svc.Register(ctx, "alice", "s3cret-pass!")
		require.NoError(t, err)

		token, err := svc.Login(ctx, "alice", "s3cret-pass!", true)
		require.NoError(t, err)

		stored, err := sessions.GetByTokenHash(ctx, auth.HashSessionToken(token))
		require.NoError(t, err)
		assert.WithinDuration(t,
			time.Now().UTC().Add(auth.RememberMeTTL), stored.ExpiresAt, time.Minute)
	})

	t.Run("configured TTL overrides the default", func(t *testing.T) {
		svc, _, sessions := newTestService(t)
		svc.SetSessionTTLs(5*time.Minute, 0)
		_, err := svc.Register(ctx, "alice", "s3cret-pass!")
		require.NoError(t, err)

		token, err := svc.Login(ctx, "alice", "s3cret-pass!", false)
		require.NoError(t, err)

		stored, err := sessions.GetByTokenHash(ctx, auth.HashSessionToken(token))
		require.NoError(t, err)
		assert.WithinDuration(t,
			time.Now().UTC().Add(5*time.Minute), stored.ExpiresAt, time.Minute)
	})
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("returns owning user ID", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		userID, err := svc.Register(ctx, "alice", "s3cret-pass!")
		require.NoError(t, err)
		token, err := svc.Login(ctx, "alice", "s3cret-pass!", false)
		require.NoError(t, err)

		gotID, err := svc.Validate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, userID, gotID)

		// Validation has no side effects; the token still works.
		gotID, err = svc.Validate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, userID, gotID)
	})

	t.Run("empty token fails", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.Validate(ctx, "")
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})

	t.Run("unknown token fails", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.Validate(ctx, "bogus-token")
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})

	t.Run("expired token fails and is purged", func(t *testing.T) {
		svc, _, sessions := newTestService(t)
		userID, err := svc.Register(ctx, "alice", "s3cret-pass!")
		require.NoError(t, err)

		token, hash, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		expired, err := auth.NewSession(userID, hash, time.Now().UTC().Add(-time.Second))
		require.NoError(t, err)
		require.NoError(t, sessions.Replace(ctx, expired))

		_, err = svc.Validate(ctx, token)
		errutil.AssertErrorCode(t, err, "TOKEN_EXPIRED")

		// Lazy cleanup removed the row, so a retry is merely invalid.
		_, err = svc.Validate(ctx, token)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes the session", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.Register(ctx, "alice", "s3cret-pass!")
		require.NoError(t, err)
		token, err := svc.Login(ctx, "alice", "s3cret-pass!", false)
		require.NoError(t, err)

		require.NoError(t, svc.Logout(ctx, token))

		_, err = svc.Validate(ctx, token)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})

	t.Run("logout is idempotent", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.Register(ctx, "alice", "s3cret-pass!")
		require.NoError(t, err)
		token, err := svc.Login(ctx, "alice", "s3cret-pass!", false)
		require.NoError(t, err)

		require.NoError(t, svc.Logout(ctx, token))
		require.NoError(t, svc.Logout(ctx, token))
	})

	t.Run("unknown token is a no-op", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		assert.NoError(t, svc.Logout(ctx, "never-issued"))
	})

	t.Run("empty token is a no-op", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		assert.NoError(t, svc.Logout(ctx, ""))
	})
}
