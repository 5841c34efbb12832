package question

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/mortgage-trainer/internal/auth"
	"github.com/gokatarajesh/mortgage-trainer/internal/entitlement"
	"github.com/gokatarajesh/mortgage-trainer/internal/metrics"
	httperrors "github.com/gokatarajesh/mortgage-trainer/pkg/http/errors"
)

// AccessChecker answers whether a user holds an entitlement for a product.
type AccessChecker interface {
	CheckAccess(ctx context.Context, userID uuid.UUID, product entitlement.Product) (bool, error)
}

// gatedModes maps paid modes to the product that unlocks them.
var gatedModes = map[Mode]entitlement.Product{
	ModeExam:     entitlement.ProductExam,
	ModeScenario: entitlement.ProductScenario,
}

// HTTPHandler serves quiz sessions and topic exam configuration.
type HTTPHandler struct {
	selector *Selector
	topics   *TopicCatalog
	access   AccessChecker
	logger   zerolog.Logger
}

// NewHTTPHandler constructs the question endpoints. A nil access checker leaves paid modes open.
func NewHTTPHandler(selector *Selector, topics *TopicCatalog, access AccessChecker, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		selector: selector,
		topics:   topics,
		access:   access,
		logger:   logger.With().Str("component", "question_http").Logger(),
	}
}

type sessionResponse struct {
	Mode               Mode       `json:"mode"`
	Topic              *TopicExam `json:"topic,omitempty"`
	Questions          []Question `json:"questions"`
	Count              int        `json:"count"`
	PassMark           int        `json:"passMark"`
	PracticeRetryLimit int        `json:"practiceRetryLimit,omitempty"`
}

// HandleQuestions serves GET /api/questions?mode=exam|scenario|practice&count=N
func (h *HTTPHandler) HandleQuestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	mode, err := ParseMode(query.Get("mode"))
	if err != nil || mode == ModeTopic {
		httperrors.RespondValidationError(w, httperrors.ErrCodeUnknownMode, "mode must be one of exam, scenario, practice", "mode")
		return
	}

	count := 0
	if raw := query.Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "count must be an integer", "count")
			return
		}
		count = parsed
	}

	if !h.authorize(w, r, mode) {
		return
	}

	questions, err := h.selector.Select(Request{Mode: mode, Count: count})
	if err != nil {
		h.logger.Error().Err(err).Str("mode", string(mode)).Msg("select questions failed")
		httperrors.RespondInternalError(w, "Could not build quiz session")
		return
	}

	resp := sessionResponse{
		Mode:      mode,
		Questions: questions,
		Count:     len(questions),
		PassMark:  PassMark(len(questions)),
	}
	if mode == ModePractice {
		resp.PracticeRetryLimit = PracticeRetryLimit
	}

	metrics.QuestionSessions.WithLabelValues(string(mode)).Inc()
	writeJSON(w, http.StatusOK, resp)
}

// HandleTopicExams serves GET /api/topic-exams
func (h *HTTPHandler) HandleTopicExams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"topicExams": h.topics.All(),
	})
}

// HandleTopicExam serves GET /api/topic-exams/{slug}
func (h *HTTPHandler) HandleTopicExam(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}

	slug := r.PathValue("slug")
	exam, ok := h.topics.Lookup(slug)
	if !ok {
		httperrors.RespondNotFound(w, httperrors.ErrCodeTopicNotFound, "Unknown topic exam")
		return
	}

	questions, err := h.selector.Select(Request{Mode: ModeTopic, Topic: slug})
	if err != nil {
		if errors.Is(err, ErrUnknownTopic) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeTopicNotFound, "Unknown topic exam")
			return
		}
		h.logger.Error().Err(err).Str("slug", slug).Msg("select topic questions failed")
		httperrors.RespondInternalError(w, "Could not build quiz session")
		return
	}

	metrics.QuestionSessions.WithLabelValues(string(ModeTopic)).Inc()
	writeJSON(w, http.StatusOK, sessionResponse{
		Mode:      ModeTopic,
		Topic:     &exam,
		Questions: questions,
		Count:     len(questions),
		PassMark:  PassMark(len(questions)),
	})
}

type gradeRequest struct {
	Questions []Question        `json:"questions"`
	Answers   map[string]string `json:"answers"`
}

// HandleGrade serves POST /api/quiz/grade. The client sends back the session it was
// served together with its answers; nothing is stored.
func (h *HTTPHandler) HandleGrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondMethodNotAllowed(w)
		return
	}

	var req gradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if len(req.Questions) == 0 {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "questions required", "questions")
		return
	}
	for _, q := range req.Questions {
		if LetterIndex(q.Answer) < 0 {
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "every question needs an answer letter A-D", "questions")
			return
		}
	}

	writeJSON(w, http.StatusOK, Grade(req.Questions, req.Answers))
}

// authorize enforces the entitlement gate on paid modes and writes the error response when denied.
func (h *HTTPHandler) authorize(w http.ResponseWriter, r *http.Request, mode Mode) bool {
	product, gated := gatedModes[mode]
	if !gated || h.access == nil {
		return true
	}

	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Sign in to start this mode")
		return false
	}

	allowed, err := h.access.CheckAccess(r.Context(), claims.UserID, product)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", claims.UserID.String()).Msg("access check failed")
		httperrors.RespondInternalError(w, "Could not verify access")
		return false
	}
	if !allowed {
		httperrors.RespondErrorWithDetails(w, http.StatusForbidden, httperrors.ErrCodeAccessRequired,
			"Purchase access to start this mode", map[string]interface{}{"product": product})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
