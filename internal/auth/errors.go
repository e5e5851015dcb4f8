// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Arcadia Planner Contributors

package auth

import "errors"

// Sentinel errors returned by repository implementations. Services translate
// these into coded errors; callers outside the package branch on the oops
// code, not on these sentinels.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("already exists")

	// ErrTokenUsed is returned when consuming a reset token that was
	// already consumed.
	ErrTokenUsed = errors.New("token already used")
)
