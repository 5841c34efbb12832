package entitlement

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/mortgage-trainer/internal/auth"
	httperrors "github.com/gokatarajesh/mortgage-trainer/pkg/http/errors"
)

// HTTPHandler exposes entitlement checks and the profile token list.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHTTPHandler constructs entitlement endpoints.
func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "entitlement_http").Logger(),
	}
}

// CheckAccess returns a handler for GET /api/check-{product}-access.
func (h *HTTPHandler) CheckAccess(product Product) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httperrors.RespondMethodNotAllowed(w)
			return
		}

		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
			return
		}

		hasAccess, err := h.svc.CheckAccess(r.Context(), claims.UserID, product)
		if err != nil {
			h.logger.Error().Err(err).Str("product", string(product)).Msg("access check failed")
			httperrors.RespondInternalError(w, "Could not verify access")
			return
		}

		writeJSON(w, map[string]interface{}{
			"hasAccess": hasAccess,
			"product":   product,
		})
	}
}

type tokenView struct {
	AccessToken
	Active bool `json:"active"`
}

// ListTokens handles GET /api/profile/tokens
func (h *HTTPHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}

	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	tokens, err := h.svc.ListTokens(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error().Err(err).Msg("list tokens failed")
		httperrors.RespondInternalError(w, "Could not load access tokens")
		return
	}

	now := h.svc.now()
	views := make([]tokenView, len(tokens))
	for i, t := range tokens {
		views[i] = tokenView{AccessToken: t, Active: t.Active(now)}
	}

	writeJSON(w, map[string]interface{}{
		"tokens":      views,
		"retrievedAt": now.UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
