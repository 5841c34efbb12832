package payment

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/mortgage-trainer/internal/auth"
	"github.com/gokatarajesh/mortgage-trainer/internal/entitlement"
	httperrors "github.com/gokatarajesh/mortgage-trainer/pkg/http/errors"
)

const maxWebhookBody = 64 << 10

// HTTPHandler exposes checkout, verification and the gateway webhook.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHTTPHandler constructs payment endpoints.
func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "payment_http").Logger(),
	}
}

type createIntentRequest struct {
	Product string `json:"product"`
}

type verifyRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
}

// CreateIntent handles POST /api/create-payment-intent
func (h *HTTPHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondMethodNotAllowed(w)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	product, err := entitlement.ParseProduct(req.Product)
	if err != nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeUnknownProduct, "product must be exam, scenario or bundle", "product")
		return
	}

	result, err := h.svc.CreateIntent(r.Context(), claims.UserID, product)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Verify handles POST /api/verify-payment
func (h *HTTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondMethodNotAllowed(w)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	result, err := h.svc.Verify(r.Context(), claims.UserID, req.PaymentIntentID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Webhook handles POST /api/stripe/webhook
func (h *HTTPHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondMethodNotAllowed(w)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Could not read payload")
		return
	}

	if err := h.svc.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidSignature, "Invalid signature")
			return
		}
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPaymentsUnavailable):
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodePaymentsNotAvailable, "Payments are not available")
	case errors.Is(err, ErrMissingIntent):
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "paymentIntentId required", "paymentIntentId")
	case errors.Is(err, entitlement.ErrUnknownProduct):
		httperrors.RespondValidationError(w, httperrors.ErrCodeUnknownProduct, "Product is not on sale", "product")
	case errors.Is(err, ErrNotCompleted):
		httperrors.RespondBadRequest(w, httperrors.ErrCodePaymentNotCompleted, "Payment has not completed")
	case errors.Is(err, ErrMismatch), errors.Is(err, ErrWrongUser):
		httperrors.RespondBadRequest(w, httperrors.ErrCodePaymentMismatch, "Payment could not be verified")
	case errors.Is(err, entitlement.ErrPaymentAlreadyClaimed):
		httperrors.RespondConflict(w, httperrors.ErrCodePaymentClaimed, "Payment has already been used")
	case errors.Is(err, ErrUnknownIntent):
		httperrors.RespondNotFound(w, httperrors.ErrCodePaymentNotFound, "Payment not found")
	case errors.Is(err, ErrIssueFailed):
		h.logger.Error().Err(err).Msg("entitlement issue failed")
		httperrors.RespondInternalError(w, "Internal server error")
	default:
		h.logger.Error().Err(err).Msg("payment request failed")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodePaymentFailed, "Payment provider request failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
