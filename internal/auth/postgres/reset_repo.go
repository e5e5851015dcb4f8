// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Arcadia Planner Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/arcadia-planner/arcadia/internal/auth"
)

// ResetTokenRepository implements auth.ResetTokenRepository using PostgreSQL.
type ResetTokenRepository struct {
	pool poolIface
}

// NewResetTokenRepository creates a new ResetTokenRepository.
func NewResetTokenRepository(pool poolIface) *ResetTokenRepository {
	return &ResetTokenRepository{pool: pool}
}

// Create stores a new reset token. Prior tokens for the same user are left
// in place.
func (r *ResetTokenRepository) Create(ctx context.Context, token *auth.ResetToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		token.ID.String(),
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
		token.Used,
		token.CreatedAt,
	)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert reset token").
			With("user_id", token.UserID).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a reset token by its token hash.
func (r *ResetTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.ResetToken, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, used, created_at
		FROM password_reset_tokens
		WHERE token_hash = $1
	`, tokenHash)

	reset, err := scanReset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_BY_TOKEN_FAILED").
			With("operation", "get reset token by hash").
			Wrap(err)
	}
	return reset, nil
}

// Consume marks the token used and updates the owning user's password hash
// in one transaction. The used flag flips via a compare-and-set UPDATE, so
// of two concurrent consumers exactly one sees used=FALSE; the other gets
// auth.ErrTokenUsed. Neither table changes unless the commit succeeds.
func (r *ResetTokenRepository) Consume(ctx context.Context, tokenHash, newPasswordHash string) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, oops.Code("RESET_CONSUME_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var userID int64
	err = tx.QueryRow(ctx, `
		UPDATE password_reset_tokens SET used = TRUE
		WHERE token_hash = $1 AND used = FALSE
		RETURNING user_id
	`, tokenHash).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, r.classifyConsumeMiss(ctx, tx, tokenHash)
		}
		return 0, oops.Code("RESET_CONSUME_FAILED").
			With("operation", "mark token used").
			Wrap(err)
	}

	result, err := tx.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, userID, newPasswordHash, time.Now().UTC())
	if err != nil {
		return 0, oops.Code("RESET_CONSUME_FAILED").
			With("operation", "update password").
			With("user_id", userID).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return 0, oops.Code("RESET_CONSUME_FAILED").
			With("user_id", userID).
			Wrap(auth.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, oops.Code("RESET_CONSUME_FAILED").
			With("operation", "commit").
			Wrap(err)
	}
	return userID, nil
}

// classifyConsumeMiss distinguishes an already-used token from an absent one
// after the compare-and-set found nothing to update.
func (r *ResetTokenRepository) classifyConsumeMiss(ctx context.Context, tx pgx.Tx, tokenHash string) error {
	var used bool
	err := tx.QueryRow(ctx, `
		SELECT used FROM password_reset_tokens WHERE token_hash = $1
	`, tokenHash).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.Code("RESET_CONSUME_FAILED").
			With("operation", "inspect token state").
			Wrap(err)
	}
	if used {
		return oops.Code("RESET_ALREADY_USED").Wrap(auth.ErrTokenUsed)
	}
	// Unreachable unless the row changed between statements.
	return oops.Code("RESET_CONSUME_FAILED").Errorf("token state changed during consume")
}

// scanReset scans a single row into a ResetToken.
// Callers are responsible for handling pgx.ErrNoRows.
func scanReset(row pgx.Row) (*auth.ResetToken, error) {
	var (
		idStr     string
		userID    int64
		tokenHash string
		expiresAt time.Time
		used      bool
		createdAt time.Time
	)

	err := row.Scan(&idStr, &userID, &tokenHash, &expiresAt, &used, &createdAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("RESET_SCAN_FAILED").
			With("operation", "scan reset token").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ID").
			With("operation", "parse reset token id").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.ResetToken{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		Used:      used,
		CreatedAt: createdAt,
	}, nil
}

// Compile-time interface check.
var _ auth.ResetTokenRepository = (*ResetTokenRepository)(nil)
