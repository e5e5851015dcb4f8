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

// resetFixture wires a PasswordResetService plus a Service sharing the same
// user store, so tests can exercise the full forgot-password round trip.
type resetFixture struct {
	auth   *auth.Service
	resets *auth.PasswordResetService
	users  *authtest.UserRepo
	repo   *authtest.ResetRepo
}

func newResetFixture(t *testing.T) *resetFixture {
	t.Helper()
	users := authtest.NewUserRepo()
	sessions := authtest.NewSessionRepo()
	repo := authtest.NewResetRepo(users)
	hasher := auth.NewArgon2idHasher()

	authSvc, err := auth.NewService(users, sessions, hasher)
	require.NoError(t, err)
	resetSvc, err := auth.NewPasswordResetService(users, repo, hasher)
	require.NoError(t, err)

	return &resetFixture{auth: authSvc, resets: resetSvc, users: users, repo: repo}
}

func TestRequestReset(t *testing.T) {
	ctx := context.Background()

	t.Run("issues token for known user", func(t *testing.T) {
		fx := newResetFixture(t)
		userID, err := fx.auth.Register(ctx, "alice", "s3cret-pass!")
		require.NoError(t, err)

		token, err := fx.resets.Request(ctx, "alice", 0)
		require.NoError(t, err)
		assert.NotEmpty(t, token)

		gotID, err := fx.resets.ValidateToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, userID, gotID)
	})

	t.Run("unknown user is reported", func(t *testing.T) {
		fx := newResetFixture(t)

		_, err := fx.resets.Request(ctx, "nobody", 0)
		errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
	})

	t.Run("outstanding tokens stay valid", func(t *testing.T) {
		fx := newResetFixture(t)
		_, err := fx.auth.Register(ctx, "alice", "s3cret-pass!")
		require.NoError(t, err)

		token1, err := fx.resets.Request(ctx, "alice", 0)
		require.NoError(t, err)
		token2, err := fx.resets.Request(ctx, "alice", 0)
		require.NoError(t, err)

		_, err = fx.resets.ValidateToken(ctx, token1)
		assert.NoError(t, err)
		_, err = fx.resets.ValidateToken(ctx, token2)
		assert.NoError(t, err)
	})
}

func TestValidateResetToken(t *testing.T) {
	ctx := context.Background()

	t.Run("empty token is invalid", func(t *testing.T) {
		fx := newResetFixture(t)

		_, err := fx.resets.ValidateToken(ctx, "")
		errutil.AssertErrorCode(t, err, "RESET_TOKEN_INVALID")
	})

	t.Run("unknown token is invalid", func(t *testing.T) {
		fx := newResetFixture(t)

		_, err := fx.resets.ValidateToken(ctx, "never-issued")
		errutil.AssertErrorCode(t, err, "RESET_TOKEN_INVALID")
	})

	t.Run("expired token is reported as expired", func(t *testing.T) {
		fx := newResetFixture(t)
		_, err := fx.auth.Register(ctx, "alice", "s3cret-pass!")
		require.NoError(t, err)

		token, err := fx.resets.Request(ctx, "alice", time.Nanosecond)
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)

		_, err = fx.resets.ValidateToken(ctx, token)
		errutil.AssertErrorCode(t, err, "RESET_TOKEN_EXPIRED")
	})

	t.Run("used wins over expired", func(t *testing.T) {
		fx := newResetFixture(t)
		userID, err := fx.auth.Register(ctx, "alice", "s3cret-pass!")
		require.NoError(t, err)

		// A consumed token that has also expired still reports used.
		token, hash, err := auth.GenerateResetToken()
		require.NoError(t, err)
		reset, err := auth.NewResetToken(userID, hash, time.Now().UTC().Add(-time.Minute))
		require.NoError(t, err)
		reset.Used = true
		require.NoError(t, fx.repo.Create(ctx, reset))

		_, err = fx.resets.ValidateToken(ctx, token)
		errutil.AssertErrorCode(t, err, "RESET_TOKEN_USED")
	})

	t.Run("validation alone does not consume", func(t *testing.T) {
		fx := newResetFixture(t)
		_, err := fx.auth.Register(ctx, "alice", "s3cret-pass!")
		require.NoError(t, err)
		token, err := fx.resets.Request(ctx, "alice", 0)
		require.NoError(t, err)

		for range 3 {
			_, err = fx.resets.ValidateToken(ctx, token)
			assert.NoError(t, err)
		}
	})
}

func TestConsumeReset(t *testing.T) {
	ctx := context.Background()

	t.Run("changes the password", func(t *testing.T) {
		fx := newResetFixture(t)
		_, err := fx.auth.Register(ctx, "alice", "0ld-pass-1!")
		require.NoError(t, err)
		token, err := fx.resets.Request(ctx, "alice", 0)
		require.NoError(t, err)

		require.NoError(t, fx.resets.Consume(ctx, token, "n3w-pass-1!"))

		_, err = fx.auth.Login(ctx, "alice", "0ld-pass-1!", false)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")

		_, err = fx.auth.Login(ctx, "alice", "n3w-pass-1!", false)
		assert.NoError(t, err)
	})

	t.Run("second consume fails and keeps the password", func(t *testing.T) {
		fx := newResetFixture(t)
		_, err := fx.auth.Register(ctx, "alice", "0ld-pass-1!")
		require.NoError(t, err)
		token, err := fx.resets.Request(ctx, "alice", 0)
		require.NoError(t, err)

		require.NoError(t, fx.resets.Consume(ctx, token, "n3w-pass-1!"))

		err = fx.resets.Consume(ctx, token, "an0ther-1!x")
		errutil.AssertErrorCode(t, err, "RESET_TOKEN_USED")

		// First reset still in effect.
		_, err = fx.auth.Login(ctx, "alice", "n3w-pass-1!", false)
		assert.NoError(t, err)
	})

	t.Run("weak replacement password is rejected before any write", func(t *testing.T) {
		fx := newResetFixture(t)
		_, err := fx.auth.Register(ctx, "alice", "0ld-pass-1!")
		require.NoError(t, err)
		token, err := fx.resets.Request(ctx, "alice", 0)
		require.NoError(t, err)

		err = fx.resets.Consume(ctx, token, "weak")
		errutil.AssertErrorCode(t, err, "AUTH_VALIDATION_FAILED")

		// Token not burned; a proper consume still works.
		require.NoError(t, fx.resets.Consume(ctx, token, "n3w-pass-1!"))
	})

	t.Run("expired token cannot be consumed", func(t *testing.T) {
		fx := newResetFixture(t)
		_, err := fx.auth.Register(ctx, "alice", "0ld-pass-1!")
		require.NoError(t, err)
		token, err := fx.resets.Request(ctx, "alice", time.Nanosecond)
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)

		err = fx.resets.Consume(ctx, token, "n3w-pass-1!")
		errutil.AssertErrorCode(t, err, "RESET_TOKEN_EXPIRED")

		_, err = fx.auth.Login(ctx, "alice", "0ld-pass-1!", false)
		assert.NoError(t, err)
	})

	t.Run("unknown token cannot be consumed", func(t *testing.T) {
		fx := newResetFixture(t)

		err := fx.resets.Consume(ctx, "never-issued", "n3w-pass-1!")
		errutil.AssertErrorCode(t, err, "RESET_TOKEN_INVALID")
	})
}

// TestResetRoundTrip walks the complete forgot-password flow: register, log
// in, request a reset, consume it, then log in with the new password.
func TestResetRoundTrip(t *testing.T) {
	ctx := context.Background()
	fx := newResetFixture(t)

	userID, err := fx.auth.Register(ctx, "traveler", "0riginal-1!")
	require.NoError(t, err)

	sessionToken, err := fx.auth.Login(ctx, "traveler", "0riginal-1!", false)
	require.NoError(t, err)

	resetToken, err := fx.resets.Request(ctx, "traveler", 30*time.Minute)
	require.NoError(t, err)

	gotID, err := fx.resets.ValidateToken(ctx, resetToken)
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)

	require.NoError(t, fx.resets.Consume(ctx, resetToken, "replacement-1!"))

	// Old password gone, new one live.
	_, err = fx.auth.Login(ctx, "traveler", "0riginal-1!", false)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	newSession, err := fx.auth.Login(ctx, "traveler", "replacement-1!", false)
	require.NoError(t, err)

	// The fresh login displaced the earlier session.
	_, err = fx.auth.Validate(ctx, sessionToken)
	errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	gotID, err = fx.auth.Validate(ctx, newSession)
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)
}
