package leaderboard

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/mortgage-trainer/internal/question"
	httperrors "github.com/gokatarajesh/mortgage-trainer/pkg/http/errors"
	ws "github.com/gokatarajesh/mortgage-trainer/pkg/http/ws"
)

const (
	maxNameLength = 40
	maxTotal      = 200
)

// HTTPHandler exposes REST and WebSocket endpoints for leaderboards.
type HTTPHandler struct {
	ledger   *Ledger
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHTTPHandler constructs a leaderboard HTTP handler. An empty allowedOrigins list
// accepts WebSocket upgrades from any origin.
func NewHTTPHandler(ledger *Ledger, hub *ws.Hub, allowedOrigins []string, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		ledger: ledger,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

type submitRequest struct {
	Name  string `json:"name"`
	Score *int   `json:"score"`
	Total *int   `json:"total"`
	Mode  string `json:"mode"`
}

type submitResponse struct {
	HighScore
	Percent  float64 `json:"percent"`
	Passed   bool    `json:"passed"`
	Champion bool    `json:"champion"`
}

// HandleHighScores routes GET and POST /api/high-scores.
func (h *HTTPHandler) HandleHighScores(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleWeekly(w, r)
	case http.MethodPost:
		h.handleSubmit(w, r)
	default:
		httperrors.RespondMethodNotAllowed(w)
	}
}

func (h *HTTPHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	mode, err := ParseMode(req.Mode)
	if err != nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeUnknownMode, "mode must be exam or scenario", "mode")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "name required", "name")
		return
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "name must be at most 40 characters", "name")
		return
	}
	if req.Score == nil || req.Total == nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "score and total required", "score")
		return
	}
	score, total := *req.Score, *req.Total
	if total <= 0 || total > maxTotal {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "total out of range", "total")
		return
	}
	if score < 0 || score > total {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "score must be between 0 and total", "score")
		return
	}

	hs, err := h.ledger.Record(r.Context(), name, score, total, mode)
	if err != nil {
		h.logger.Error().Err(err).Msg("record high score failed")
		httperrors.RespondInternalError(w, "Could not save score")
		return
	}

	champion := false
	if champ, err := h.ledger.AllTimeHigh(r.Context(), mode); err == nil && champ != nil {
		champion = champ.ID == hs.ID
	}

	writeJSON(w, http.StatusCreated, submitResponse{
		HighScore: hs,
		Percent:   hs.Percent(),
		Passed:    question.Passed(score, total),
		Champion:  champion,
	})
}

// handleWeekly responds with the weekly board.
// Route: GET /api/high-scores?mode=exam&limit=10
func (h *HTTPHandler) handleWeekly(w http.ResponseWriter, r *http.Request) {
	mode, ok := h.modeParam(w, r)
	if !ok {
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= MaxLimit {
			limit = parsed
		}
	}

	top, err := h.ledger.WeeklyTop(r.Context(), mode, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("mode", string(mode)).Msg("weekly leaderboard fetch failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeLeaderboardFetchFailed, "Could not load leaderboard")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mode":        mode,
		"highScores":  top,
		"retrievedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleAllTimeHigh responds with the champion for a mode, or null.
// Route: GET /api/all-time-high-score?mode=exam
func (h *HTTPHandler) HandleAllTimeHigh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}
	mode, ok := h.modeParam(w, r)
	if !ok {
		return
	}

	champ, err := h.ledger.AllTimeHigh(r.Context(), mode)
	if err != nil {
		h.logger.Error().Err(err).Str("mode", string(mode)).Msg("champion fetch failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeLeaderboardFetchFailed, "Could not load leaderboard")
		return
	}

	writeJSON(w, http.StatusOK, champ)
}

// HandleWS upgrades GET /ws/leaderboard and streams live updates. The current
// board for every mode is sent as soon as the socket opens.
func (h *HTTPHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeFeatureNotAvailable, "Live leaderboard is not available")
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := ws.NewConnection(raw, h.logger)
	id := h.hub.Register(conn)
	defer h.hub.Unregister(id)

	go conn.WritePump()

	for _, mode := range Modes() {
		update, err := h.ledger.Snapshot(r.Context(), mode)
		if err != nil {
			h.logger.Warn().Err(err).Str("mode", string(mode)).Msg("snapshot failed")
			continue
		}
		if msg, err := ws.NewMessage(ws.TypeLeaderboardSnapshot, toWSPayload(update)); err == nil {
			_ = conn.Send(msg)
		}
	}

	conn.ReadPump(func(msg ws.Message) error {
		switch msg.Type {
		case ws.TypePing:
			pong, _ := ws.NewMessage(ws.TypePong, nil)
			pong.RequestID = msg.RequestID
			return conn.Send(pong)
		default:
			errMsg, _ := ws.NewMessage(ws.TypeError, ws.ErrorPayload{
				Code:    "unsupported_message",
				Message: "the leaderboard feed only accepts ping",
			})
			return conn.Send(errMsg)
		}
	})
}

func (h *HTTPHandler) modeParam(w http.ResponseWriter, r *http.Request) (Mode, bool) {
	raw := r.URL.Query().Get("mode")
	if raw == "" {
		return ModeExam, true
	}
	mode, err := ParseMode(raw)
	if err != nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeUnknownMode, "mode must be exam or scenario", "mode")
		return "", false
	}
	return mode, true
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.TrimSpace(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
