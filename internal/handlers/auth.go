package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ibrbtv/backend/internal/auth"
	"github.com/ibrbtv/backend/internal/logging"
	"github.com/ibrbtv/backend/internal/models"
	"github.com/ibrbtv/backend/internal/repositories"
)

const passwordResetAccepted = "If an account exists for that email, password reset instructions have been sent."

// AuthHandler implements admin authentication endpoints.
type AuthHandler struct {
	Users    AdminUserStore
	Sessions SessionManager
	Resets   ResetTokenIssuer
	Notifier ResetNotifier
	NowFunc  func() time.Time
}

// Login handles POST /api/v1/auth/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Sessions == nil {
		logger.Error("authentication dependencies unavailable", slog.Bool("hasUsers", h.Users != nil), slog.Bool("hasSessions", h.Sessions != nil))
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authentication services unavailable"})
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid login payload", slog.Any("error", err))
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	email, err := auth.NormalizeEmail(req.Email)
	if err != nil {
		logger.Warn("login invalid email")
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": auth.LoginMessage(err), "field": "email"})
		return
	}
	if req.Password == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "email and password are required", "field": "password"})
		return
	}

	user, err := h.Users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		err = auth.RejectUnknownAccount(req.Password)
		logger.Warn("login unknown account")
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": auth.LoginMessage(err)})
		return
	case err != nil:
		logger.Error("login user lookup failed", slog.Any("error", err))
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": auth.LoginMessage(err)})
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		logger.Warn("login password mismatch", slog.String("userId", user.ID))
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": auth.LoginMessage(err)})
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("failed to issue session", slog.Any("error", err), slog.String("userId", user.ID))
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}

	setAccessCookie(w, r, tokens)
	respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: tokens})
}

// Refresh exchanges a refresh token for a new session.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Sessions == nil {
		logger.Error("session manager unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "session service unavailable"})
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid refresh payload", slog.Any("error", err))
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		logger.Warn("missing refresh token")
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "refresh token is required"})
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, auth.ErrRefreshTokenExpired) || errors.Is(err, auth.ErrSessionNotFound) {
			status = http.StatusUnauthorized
		}
		logger.Warn("refresh failed", slog.Any("error", err), slog.Int("status", status))
		respondJSON(ctx, w, status, map[string]string{"error": "unable to refresh session"})
		return
	}

	setAccessCookie(w, r, tokens)
	respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: tokens})
}

// Logout revokes the refresh token and clears the access cookie.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondJSON(r.Context(), w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}
	if h.Sessions != nil {
		h.Sessions.Revoke(r.Context(), strings.TrimSpace(req.RefreshToken))
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// RequestPasswordReset handles POST /api/v1/auth/password-reset requests.
// The response never reveals whether the account exists.
func (h AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req passwordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid password reset payload", slog.Any("error", err))
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	accepted := map[string]string{"status": passwordResetAccepted}

	email, err := auth.NormalizeEmail(req.Email)
	if err != nil || h.Users == nil || h.Resets == nil {
		respondJSON(ctx, w, http.StatusAccepted, accepted)
		return
	}

	user, err := h.Users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("password reset lookup failed", slog.Any("error", err))
		}
		respondJSON(ctx, w, http.StatusAccepted, accepted)
		return
	}

	token, expiresAt, err := h.Resets.Issue(user.Email)
	if err != nil {
		logger.Error("password reset token generation failed", slog.Any("error", err))
		respondJSON(ctx, w, http.StatusAccepted, accepted)
		return
	}

	notifier := h.Notifier
	if notifier == nil {
		notifier = auth.LogResetNotifier{}
	}
	if err := notifier.SendPasswordReset(ctx, user.Email, token, expiresAt); err != nil {
		logger.Error("password reset delivery failed", slog.Any("error", err), slog.String("userId", user.ID))
	}

	respondJSON(ctx, w, http.StatusAccepted, accepted)
}

// ConfirmPasswordReset handles POST /api/v1/auth/password-reset/confirm.
func (h AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Resets == nil {
		logger.Error("password reset dependencies unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authentication services unavailable"})
		return
	}

	var req confirmResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": err.Error(), "field": "password"})
			return
		}
		logger.Error("hash password failed", slog.Any("error", err))
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to secure password"})
		return
	}

	email, err := h.Resets.Consume(strings.TrimSpace(req.Token))
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": err.Error(), "field": "token"})
		return
	}

	user, err := h.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": auth.ErrResetTokenInvalid.Error(), "field": "token"})
			return
		}
		respondError(ctx, w, err, "unable to reset password")
		return
	}

	user.PasswordHash = hash
	user.UpdatedAt = h.now()
	if err := h.Users.Update(ctx, user); err != nil {
		respondError(ctx, w, err, "unable to reset password")
		return
	}

	logger.Info("admin password reset", slog.String("userId", user.ID))
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "password updated"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

type confirmResetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type authResponse struct {
	Tokens models.SessionTokens `json:"tokens"`
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func setAccessCookie(w http.ResponseWriter, r *http.Request, tokens models.SessionTokens) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessCookieName,
		Value:    tokens.AccessToken,
		Path:     "/",
		Expires:  tokens.AccessExpiresAt,
		HttpOnly: true,
		Secure:   secureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func secureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
