package mail

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/mortgage-trainer/pkg/http/errors"
)

// CampaignHandler serves the admin campaign endpoint.
type CampaignHandler struct {
	svc    *CampaignService
	logger zerolog.Logger
}

// NewCampaignHandler constructs the campaign endpoint.
func NewCampaignHandler(svc *CampaignService, logger zerolog.Logger) *CampaignHandler {
	return &CampaignHandler{
		svc:    svc,
		logger: logger.With().Str("component", "campaign_http").Logger(),
	}
}

// Send handles POST /api/admin/campaigns
func (h *CampaignHandler) Send(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondMethodNotAllowed(w)
		return
	}

	var c Campaign
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	result, err := h.svc.Send(r.Context(), c)
	if err != nil {
		if errors.Is(err, ErrEmptyCampaign) {
			httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "subject and text or html are required", "subject")
			return
		}
		h.logger.Error().Err(err).Msg("campaign send failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeCampaignFailed, "Campaign could not be sent")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
