// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Arcadia Planner Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/arcadia-planner/arcadia/internal/auth"
	"github.com/arcadia-planner/arcadia/internal/observability"
	"github.com/arcadia-planner/arcadia/pkg/errutil"
)

// Handler implements the auth REST endpoints.
type Handler struct {
	auth    *auth.Service
	resets  *auth.PasswordResetService
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewHandler creates a handler backed by the given services. metrics may be
// nil, in which case no metrics are recorded.
func NewHandler(authSvc *auth.Service, resetSvc *auth.PasswordResetService, metrics *observability.Metrics) *Handler {
	return &Handler{
		auth:    authSvc,
		resets:  resetSvc,
		metrics: metrics,
		logger:  slog.Default(),
	}
}

// Routes returns the HTTP mux for the auth API.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/validate", h.handleValidate)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
	mux.HandleFunc("POST /auth/request-password-reset", h.handleRequestReset)
	mux.HandleFunc("POST /auth/validate-password-reset", h.handleValidateReset)
	mux.HandleFunc("POST /auth/reset-password", h.handleResetPassword)
	mux.HandleFunc("GET /health", h.handleHealth)
	return mux
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type requestResetRequest struct {
	Username   string `json:"username"`
	TTLMinutes int    `json:"ttlMinutes"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	userID, err := h.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		h.record("register", "error")
		h.writeError(w, err)
		return
	}

	h.record("register", "ok")
	h.writeJSON(w, http.StatusCreated, map[string]any{"userId": userID})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password, req.RememberMe)
	if err != nil {
		h.record("login", "error")
		h.writeError(w, err)
		return
	}

	h.record("login", "ok")
	if h.metrics != nil {
		h.metrics.SessionsIssued.Inc()
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"token": token})
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !h.decode(w, r, &req) {
		return
	}

	userID, err := h.auth.Validate(r.Context(), req.Token)
	if err != nil {
		h.record("validate", "error")
		h.writeError(w, err)
		return
	}

	h.record("validate", "ok")
	h.writeJSON(w, http.StatusOK, map[string]any{"userId": userID})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.auth.Logout(r.Context(), req.Token); err != nil {
		h.record("logout", "error")
		h.writeError(w, err)
		return
	}

	h.record("logout", "ok")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	var req requestResetRequest
	if !h.decode(w, r, &req) {
		return
	}

	ttl := time.Duration(req.TTLMinutes) * time.Minute
	token, err := h.resets.Request(r.Context(), req.Username, ttl)
	if err != nil {
		h.record("request_reset", "error")
		h.writeError(w, err)
		return
	}

	h.record("request_reset", "ok")
	if h.metrics != nil {
		h.metrics.PasswordResetsTotal.WithLabelValues("requested").Inc()
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"resetToken": token})
}

func (h *Handler) handleValidateReset(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !h.decode(w, r, &req) {
		return
	}

	userID, err := h.resets.ValidateToken(r.Context(), req.Token)
	if err != nil {
		h.record("validate_reset", "error")
		h.writeError(w, err)
		return
	}

	h.record("validate_reset", "ok")
	h.writeJSON(w, http.StatusOK, map[string]any{"userId": userID})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.resets.Consume(r.Context(), req.Token, req.NewPassword); err != nil {
		h.record("reset_password", "error")
		h.writeError(w, err)
		return
	}

	h.record("reset_password", "ok")
	if h.metrics != nil {
		h.metrics.PasswordResetsTotal.WithLabelValues("consumed").Inc()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// decode parses the JSON request body into dst. On failure it writes a 400
// response and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed request body"})
		return false
	}
	return true
}

// statusForCode maps service error codes to HTTP status codes. Session
// credential failures are 401; everything the client supplied wrong is 400.
func statusForCode(code any) int {
	switch code {
	case "AUTH_VALIDATION_FAILED", "AUTH_DUPLICATE_USER", "USER_NOT_FOUND",
		"RESET_TOKEN_INVALID", "RESET_TOKEN_USED", "RESET_TOKEN_EXPIRED":
		return http.StatusBadRequest
	case "AUTH_INVALID_CREDENTIALS", "TOKEN_INVALID", "TOKEN_EXPIRED":
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusForCode(errutil.ErrorCode(err))
	if status == http.StatusInternalServerError {
		errutil.LogError(h.logger, "internal error handling request", err)
		h.writeJSON(w, status, map[string]any{"error": "internal error"})
		return
	}
	h.writeJSON(w, status, map[string]any{"error": err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) record(operation, outcome string) {
	if h.metrics == nil {
		return
	}
	h.metrics.AuthRequestsTotal.WithLabelValues(operation, outcome).Inc()
}
