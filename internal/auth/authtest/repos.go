// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Arcadia Planner Contributors

// Package authtest provides in-memory repository fakes for auth tests.
// The fakes uphold the same atomicity guarantees as the PostgreSQL
// implementations (one live session per user, single-use reset consumption),
// using a mutex instead of transactions.
package authtest

import (
	"context"
	"sync"

	"github.com/arcadia-planner/arcadia/internal/auth"
)

// UserRepo is an in-memory auth.UserRepository with store-assigned IDs.
type UserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*auth.User
}

// NewUserRepo creates an empty UserRepo.
func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[int64]*auth.User)}
}

// Create stores a new user and assigns its ID.
func (r *UserRepo) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return auth.ErrDuplicate
		}
	}
	r.nextID++
	user.ID = r.nextID
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepo) GetByID(_ context.Context, id int64) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetByUsername retrieves a user by username.
func (r *UserRepo) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

// UpdatePassword replaces the password hash for a user.
func (r *UserRepo) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

// SessionRepo is an in-memory auth.SessionRepository.
type SessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*auth.Session // keyed by token hash
}

// NewSessionRepo creates an empty SessionRepo.
func NewSessionRepo() *SessionRepo {
	return &SessionRepo{sessions: make(map[string]*auth.Session)}
}

// Replace deletes any prior sessions for the user and stores the new one.
func (r *SessionRepo) Replace(_ context.Context, session *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for hash, s := range r.sessions {
		if s.UserID == session.UserID {
			delete(r.sessions, hash)
		}
	}
	cp := *session
	r.sessions[session.TokenHash] = &cp
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepo) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[tokenHash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// DeleteByTokenHash removes a session; absent sessions are a no-op.
func (r *SessionRepo) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, tokenHash)
	return nil
}

// Count returns the number of stored sessions.
func (r *SessionRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// ResetRepo is an in-memory auth.ResetTokenRepository. Consume needs the
// user store to flip the password hash in the same critical section.
type ResetRepo struct {
	mu     sync.Mutex
	tokens map[string]*auth.ResetToken // keyed by token hash
	users  *UserRepo
}

// NewResetRepo creates an empty ResetRepo bound to a UserRepo.
func NewResetRepo(users *UserRepo) *ResetRepo {
	return &ResetRepo{tokens: make(map[string]*auth.ResetToken), users: users}
}

// Create stores a new reset token.
func (r *ResetRepo) Create(_ context.Context, token *auth.ResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *token
	r.tokens[token.TokenHash] = &cp
	return nil
}

// GetByTokenHash retrieves a reset token by its token hash.
func (r *ResetRepo) GetByTokenHash(_ context.Context, tokenHash string) (*auth.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenHash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// Consume marks the token used and updates the user's password atomically.
func (r *ResetRepo) Consume(ctx context.Context, tokenHash, newPasswordHash string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenHash]
	if !ok {
		return 0, auth.ErrNotFound
	}
	if t.Used {
		return 0, auth.ErrTokenUsed
	}
	if err := r.users.UpdatePassword(ctx, t.UserID, newPasswordHash); err != nil {
		return 0, err
	}
	t.Used = true
	return t.UserID, nil
}

// Compile-time interface checks.
var (
	_ auth.UserRepository       = (*UserRepo)(nil)
	_ auth.SessionRepository    = (*SessionRepo)(nil)
	_ auth.ResetTokenRepository = (*ResetRepo)(nil)
)
