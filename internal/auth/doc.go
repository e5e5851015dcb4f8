// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Arcadia Planner Contributors

// Package auth implements the Arcadia credential and session lifecycle:
// password hashing, registration, opaque bearer session tokens, and the
// single-use password reset flow.
//
// # Domain Types
//
// Domain types (User, Session, ResetToken) should be created using their
// respective constructors:
//   - NewUser - creates a User with validated username and password hash
//   - NewSession - creates a Session with validated owner and expiry
//   - NewResetToken - creates a ResetToken with validated owner and expiry
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from these
// constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - registration, login, session validation, logout
//   - PasswordResetService - reset issuance, validation, consumption
//
// Both services are stateless; all mutable state lives behind the three
// repository interfaces, which enforce the atomicity the services rely on
// (one live session per user, single-use reset tokens).
package auth
