package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/mortgage-trainer/pkg/http/errors"
)

const oauthStateCookie = "oauth_state"

// HTTPHandlers provides REST endpoints for authentication.
type HTTPHandlers struct {
	authSvc  *Service
	oauthSvc *OAuthService
	logger   zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for auth endpoints.
func NewHTTPHandlers(authSvc *Service, oauthSvc *OAuthService, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		authSvc:  authSvc,
		oauthSvc: oauthSvc,
		logger:   logger,
	}
}

type sessionResponse struct {
	User *User `json:"user"`
	*TokenPair
}

// Register handles POST /api/auth/register
func (h *HTTPHandlers) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondMethodNotAllowed(w)
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	user, tokens, err := h.authSvc.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			httperrors.RespondConflict(w, httperrors.ErrCodeEmailTaken, "An account with this email already exists")
		case errors.Is(err, ErrInvalidEmail):
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, err.Error(), "email")
		case errors.Is(err, ErrNameRequired):
			httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, err.Error(), "name")
		case errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooLong):
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, err.Error(), "password")
		default:
			h.logger.Error().Err(err).Msg("registration failed")
			httperrors.RespondBadRequest(w, httperrors.ErrCodeRegistrationFailed, "Registration failed")
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, sessionResponse{User: user, TokenPair: tokens})
}

// Login handles POST /api/auth/login
func (h *HTTPHandlers) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondMethodNotAllowed(w)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	user, tokens, err := h.authSvc.Login(r.Context(), req)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			h.logger.Error().Err(err).Msg("login failed")
		}
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeLoginFailed, "Invalid email or password")
		return
	}

	h.respondJSON(w, http.StatusOK, sessionResponse{User: user, TokenPair: tokens})
}

// RefreshToken handles POST /api/auth/refresh
func (h *HTTPHandlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondMethodNotAllowed(w)
		return
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if req.RefreshToken == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "Refresh token required", "refresh_token")
		return
	}

	tokens, err := h.authSvc.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeRefreshFailed, "Invalid or expired refresh token")
		return
	}

	h.respondJSON(w, http.StatusOK, tokens)
}

// ForgotPassword handles POST /api/auth/forgot-password
func (h *HTTPHandlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondMethodNotAllowed(w)
		return
	}

	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if req.Email == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "Email required", "email")
		return
	}

	if err := h.authSvc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		if errors.Is(err, ErrResetUnavailable) {
			httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeFeatureNotAvailable, "Password reset is not available")
			return
		}
		// Failures stay invisible to the caller so addresses cannot be probed.
		h.logger.Warn().Err(err).Msg("password reset request failed")
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "If an account exists with this email, a password reset link has been sent",
	})
}

// ResetPassword handles POST /api/auth/reset-password
func (h *HTTPHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondMethodNotAllowed(w)
		return
	}

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "Token and new password required", "")
		return
	}

	if err := h.authSvc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, ErrResetUnavailable):
			httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeFeatureNotAvailable, "Password reset is not available")
		case errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooLong):
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, err.Error(), "new_password")
		case errors.Is(err, ErrInvalidResetToken):
			httperrors.RespondBadRequest(w, httperrors.ErrCodeResetFailed, err.Error())
		default:
			h.logger.Error().Err(err).Msg("password reset failed")
			httperrors.RespondInternalError(w, "Password reset failed")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Password reset successfully",
	})
}

// OAuthStart handles GET /api/oauth/{provider}/start
func (h *HTTPHandlers) OAuthStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}
	if h.oauthSvc == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeOAuthNotConfigured, "OAuth is not configured")
		return
	}

	provider := r.PathValue("provider")
	if provider == "" {
		provider = OAuthProviderGoogle
	}

	state := uuid.New().String()
	authURL, err := h.oauthSvc.StartOAuthFlow(provider, state)
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeOAuthStartFailed, err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"auth_url": authURL,
		"state":    state,
	})
}

// OAuthCallback handles GET /api/oauth/{provider}/callback
func (h *HTTPHandlers) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}
	if h.oauthSvc == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeOAuthNotConfigured, "OAuth is not configured")
		return
	}

	provider := r.PathValue("provider")
	if provider == "" {
		provider = OAuthProviderGoogle
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeOAuthMissingCode, "Authorization code required")
		return
	}

	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || cookie.Value != state {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeOAuthInvalidState, "Invalid or missing state parameter")
		return
	}

	info, err := h.oauthSvc.HandleOAuthCallback(r.Context(), provider, code)
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeOAuthCallbackFailed, err.Error())
		return
	}

	user, tokens, err := h.authSvc.LoginOAuth(r.Context(), provider, info)
	if err != nil {
		h.logger.Error().Err(err).Str("provider", provider).Msg("OAuth sign-in failed")
		httperrors.RespondInternalError(w, "Could not sign in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	h.respondJSON(w, http.StatusOK, sessionResponse{User: user, TokenPair: tokens})
}

// Me handles GET and DELETE /api/me (requires auth middleware)
func (h *HTTPHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeUnauthorized, "Invalid or missing token")
		return
	}

	switch r.Method {
	case http.MethodGet:
		user, err := h.authSvc.GetUser(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				httperrors.RespondNotFound(w, httperrors.ErrCodeUserNotFound, "Account no longer exists")
				return
			}
			h.logger.Error().Err(err).Msg("load profile failed")
			httperrors.RespondInternalError(w, "Could not load profile")
			return
		}
		h.respondJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		if err := h.authSvc.DeleteAccount(r.Context(), claims.UserID); err != nil {
			if errors.Is(err, ErrUserNotFound) {
				httperrors.RespondNotFound(w, httperrors.ErrCodeUserNotFound, "Account no longer exists")
				return
			}
			h.logger.Error().Err(err).Msg("delete account failed")
			httperrors.RespondInternalError(w, "Could not delete account")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httperrors.RespondMethodNotAllowed(w)
	}
}

// UpdatePreferences handles PUT /api/me/preferences (requires auth middleware)
func (h *HTTPHandlers) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		httperrors.RespondMethodNotAllowed(w)
		return
	}

	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeUnauthorized, "Invalid or missing token")
		return
	}

	var req PreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if req.MarketingOptIn == nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "marketingOptIn required", "marketingOptIn")
		return
	}

	if err := h.authSvc.SetMarketingOptIn(r.Context(), claims.UserID, *req.MarketingOptIn); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeUserNotFound, "Account no longer exists")
			return
		}
		h.logger.Error().Err(err).Msg("update preferences failed")
		httperrors.RespondInternalError(w, "Could not update preferences")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"marketingOptIn": *req.MarketingOptIn,
	})
}

// ListUsers handles GET /api/admin/users?limit&offset (requires RequireAdmin)
func (h *HTTPHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}

	limit := parseBounded(r.URL.Query().Get("limit"), 50, 1, 500)
	offset := parseBounded(r.URL.Query().Get("offset"), 0, 0, 1<<30)

	users, err := h.authSvc.ListUsers(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("list users failed")
		httperrors.RespondInternalError(w, "Could not list users")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"users":  users,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func parseBounded(raw string, def, lo, hi int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
