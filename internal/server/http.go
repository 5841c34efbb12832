package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/mortgage-trainer/internal/auth"
	"github.com/gokatarajesh/mortgage-trainer/internal/config"
	"github.com/gokatarajesh/mortgage-trainer/internal/entitlement"
	"github.com/gokatarajesh/mortgage-trainer/internal/leaderboard"
	"github.com/gokatarajesh/mortgage-trainer/internal/logging"
	"github.com/gokatarajesh/mortgage-trainer/internal/mail"
	"github.com/gokatarajesh/mortgage-trainer/internal/payment"
	"github.com/gokatarajesh/mortgage-trainer/internal/question"
	"github.com/gokatarajesh/mortgage-trainer/internal/security"
	httperrors "github.com/gokatarajesh/mortgage-trainer/pkg/http/errors"
)

// Check probes one upstream dependency for /api/ping.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Handlers bundles the feature handlers mounted on the API mux.
type Handlers struct {
	Validator   auth.TokenValidator
	Auth        *auth.HTTPHandlers
	Questions   *question.HTTPHandler
	Entitlement *entitlement.HTTPHandler
	Payment     *payment.HTTPHandler
	Leaderboard *leaderboard.HTTPHandler
	Campaigns   *mail.CampaignHandler
	Checks      []Check
}

// NewHTTPServer wires every route of the API service.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, h Handlers) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, logger, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the API handler with its middleware chain.
func NewRouter(cfg *config.App, logger zerolog.Logger, h Handlers) http.Handler {
	mux := http.NewServeMux()

	authLimit := security.NewRateLimiter(cfg.RateLimit.AuthRequests, cfg.RateLimit.AuthWindow).Middleware("auth", logger)
	scoreLimit := security.NewRateLimiter(cfg.RateLimit.ScoreRequests, cfg.RateLimit.ScoreWindow).Middleware("high_scores", logger)

	user := func(fn http.HandlerFunc) http.Handler { return auth.RequireAuth(fn) }
	admin := func(fn http.HandlerFunc) http.Handler { return auth.RequireAdmin(fn) }

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/ping", pingHandler(h.Checks))

	if h.Auth != nil {
		mux.Handle("/api/auth/register", authLimit(http.HandlerFunc(h.Auth.Register)))
		mux.Handle("/api/auth/login", authLimit(http.HandlerFunc(h.Auth.Login)))
		mux.HandleFunc("/api/auth/refresh", h.Auth.RefreshToken)
		mux.Handle("/api/auth/forgot-password", authLimit(http.HandlerFunc(h.Auth.ForgotPassword)))
		mux.Handle("/api/auth/reset-password", authLimit(http.HandlerFunc(h.Auth.ResetPassword)))
		mux.HandleFunc("/api/oauth/{provider}/start", h.Auth.OAuthStart)
		mux.HandleFunc("/api/oauth/{provider}/callback", h.Auth.OAuthCallback)
		mux.Handle("/api/me", user(h.Auth.Me))
		mux.Handle("/api/me/preferences", user(h.Auth.UpdatePreferences))
		mux.Handle("/api/admin/users", admin(h.Auth.ListUsers))
	}

	if h.Questions != nil {
		mux.HandleFunc("/api/questions", h.Questions.HandleQuestions)
		mux.HandleFunc("/api/topic-exams", h.Questions.HandleTopicExams)
		mux.HandleFunc("/api/topic-exams/{slug}", h.Questions.HandleTopicExam)
		mux.HandleFunc("/api/quiz/grade", h.Questions.HandleGrade)
	}

	if h.Entitlement != nil {
		mux.Handle("/api/check-exam-access", user(h.Entitlement.CheckAccess(entitlement.ProductExam)))
		mux.Handle("/api/check-scenario-access", user(h.Entitlement.CheckAccess(entitlement.ProductScenario)))
		mux.Handle("/api/profile/tokens", user(h.Entitlement.ListTokens))
	}

	if h.Payment != nil {
		mux.Handle("/api/create-payment-intent", user(h.Payment.CreateIntent))
		mux.Handle("/api/verify-payment", user(h.Payment.Verify))
		mux.HandleFunc("/api/stripe/webhook", h.Payment.Webhook)
	}

	if h.Leaderboard != nil {
		mux.Handle("/api/high-scores", onMethod(http.MethodPost, scoreLimit, http.HandlerFunc(h.Leaderboard.HandleHighScores)))
		mux.HandleFunc("/api/all-time-high-score", h.Leaderboard.HandleAllTimeHigh)
		mux.HandleFunc("/ws/leaderboard", h.Leaderboard.HandleWS)
	}

	if h.Campaigns != nil {
		mux.Handle("/api/admin/campaigns", admin(h.Campaigns.Send))
	}

	var handler http.Handler = mux
	if h.Validator != nil {
		handler = auth.AuthMiddleware(h.Validator, logger)(handler)
	}
	handler = CORS(cfg.CORS)(handler)
	handler = logging.Middleware(logger)(handler)
	return handler
}

// onMethod applies mw only to requests using method.
func onMethod(method string, mw func(http.Handler) http.Handler, next http.Handler) http.Handler {
	wrapped := mw(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == method {
			wrapped.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func pingHandler(checks []Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httperrors.RespondMethodNotAllowed(w)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		logger := logging.FromContext(r.Context())
		for _, c := range checks {
			if err := c.Ping(ctx); err != nil {
				logger.Error().Err(err).Str("dependency", c.Name).Msg("dependency ping failed")
				httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeUpstreamError, c.Name+" unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]bool{"pong": true})
	}
}
