package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/mortgage-trainer/internal/auth"
	"github.com/gokatarajesh/mortgage-trainer/internal/auth/jwt"
	"github.com/gokatarajesh/mortgage-trainer/internal/config"
	"github.com/gokatarajesh/mortgage-trainer/internal/entitlement"
	"github.com/gokatarajesh/mortgage-trainer/internal/events"
	"github.com/gokatarajesh/mortgage-trainer/internal/leaderboard"
	"github.com/gokatarajesh/mortgage-trainer/internal/logging"
	"github.com/gokatarajesh/mortgage-trainer/internal/mail"
	"github.com/gokatarajesh/mortgage-trainer/internal/payment"
	"github.com/gokatarajesh/mortgage-trainer/internal/question"
	"github.com/gokatarajesh/mortgage-trainer/internal/server"
	ws "github.com/gokatarajesh/mortgage-trainer/pkg/http/ws"
)

// Application aggregates shared infrastructure (stores, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	stores *Stores
	redis  *redis.Client
	events *events.Publisher
	hub    *ws.Hub
	http   *http.Server

	lbBroadcaster *leaderboard.Broadcaster
	bgCancels     []context.CancelFunc
}

// Services are the domain services shared by the API and the admin CLI.
type Services struct {
	Auth        *auth.Service
	Entitlement *entitlement.Service
	Mail        *mail.Service
	Campaigns   *mail.CampaignService
}

// NewServices wires the account, entitlement and mail services over stores.
// rdb and publisher may be nil.
func NewServices(ctx context.Context, cfg *config.App, stores *Stores, rdb *redis.Client, publisher *events.Publisher, logger zerolog.Logger) (*Services, error) {
	transport, err := newMailTransport(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	mailSvc := mail.NewService(transport, mail.Options{AppName: cfg.Mail.AppName, BaseURL: cfg.PublicBaseURL}, logger)

	entSvc := entitlement.NewService(stores.Tokens, logger)

	opts := auth.ServiceOptions{
		TokenConfig: jwt.TokenConfig{
			AccessSecret:  []byte(cfg.Security.JWTSecret),
			RefreshSecret: []byte(cfg.Security.RefreshSecret()),
			AccessTTL:     cfg.Security.AccessTokenTTL,
			RefreshTTL:    cfg.Security.RefreshTokenTTL,
			Issuer:        cfg.Name,
		},
		Redis:    rdb,
		Mailer:   mailSvc,
		Purgers:  []auth.AccountPurger{entSvc},
		ResetTTL: cfg.Security.ResetTokenTTL,
	}
	if publisher != nil {
		opts.Events = publisher
	}

	return &Services{
		Auth:        auth.NewService(stores.Users, opts, logger),
		Entitlement: entSvc,
		Mail:        mailSvc,
		Campaigns:   mail.NewCampaignService(stores.Users, transport, cfg.Campaign.Concurrency, logger),
	}, nil
}

// New bootstraps logger, stores, Redis and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Str("store", cfg.StoreDriver).Msg("starting application bootstrap")

	stores, err := OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
	} else {
		logger.Warn().Msg("REDIS_ADDR not set; password reset, weekly cache and cross-instance live updates disabled")
	}

	publisher, err := events.NewPublisher(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange, logger)
	if err != nil {
		stores.Close()
		return nil, err
	}

	svcs, err := NewServices(ctx, cfg, stores, redisClient, publisher, logger)
	if err != nil {
		stores.Close()
		return nil, err
	}

	var oauthSvc *auth.OAuthService
	if cfg.OAuth.GoogleClientID != "" && cfg.OAuth.GoogleClientSecret != "" {
		redirectURL := cfg.OAuth.GoogleRedirectURL
		if redirectURL == "" {
			redirectURL = fmt.Sprintf("%s/api/oauth/google/callback", cfg.PublicBaseURL)
		}
		oauthSvc = auth.NewOAuthService(cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret, redirectURL, logger)
		logger.Info().Msg("OAuth service initialized")
	} else {
		logger.Warn().Msg("OAuth not configured (missing GOOGLE_OAUTH_CLIENT_ID or GOOGLE_OAUTH_CLIENT_SECRET)")
	}

	bank, err := question.DefaultBank()
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	topics, err := question.DefaultTopics(bank)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("load topic exams: %w", err)
	}

	var gateway payment.Gateway
	if cfg.Stripe.SecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.Stripe.SecretKey)
	} else {
		logger.Warn().Msg("STRIPE_SECRET_KEY not set; payments disabled")
	}
	paymentSvc := payment.NewService(gateway,
		payment.NewCatalog(cfg.Pricing.Currency, cfg.Pricing.ExamPence, cfg.Pricing.ScenarioPence, cfg.Pricing.BundlePence),
		svcs.Entitlement,
		payment.ServiceOptions{
			WebhookSecret: cfg.Stripe.WebhookSecret,
			Users:         svcs.Auth,
			Mailer:        svcs.Mail,
			Events:        publisher,
		}, logger)

	hub := ws.NewHub(logger)
	ledgerOpts := leaderboard.LedgerOptions{
		Window:    cfg.Leaderboard.WeeklyWindow,
		UpdateTop: cfg.Leaderboard.UpdateTop,
	}
	var lbBroadcaster *leaderboard.Broadcaster
	if redisClient != nil {
		ledgerOpts.Cache = leaderboard.NewCache(redisClient, cfg.Name+":leaderboard", cfg.Leaderboard.CacheTTL)
		ledgerOpts.Publisher = leaderboard.NewRedisPublisher(redisClient, cfg.Leaderboard.Channel)
		lbBroadcaster = leaderboard.NewBroadcaster(redisClient, hub, cfg.Leaderboard.Channel, logger)
	} else {
		ledgerOpts.Publisher = leaderboard.NewHubPublisher(hub)
	}
	ledger := leaderboard.NewLedger(stores.Scores, logger, ledgerOpts)

	checks := make([]server.Check, 0, 2)
	if stores.Pool != nil {
		checks = append(checks, server.Check{Name: "postgres", Ping: stores.Pool.Ping})
	}
	if redisClient != nil {
		checks = append(checks, server.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	apiServer := server.NewHTTPServer(cfg, logger, server.Handlers{
		Validator:   svcs.Auth,
		Auth:        auth.NewHTTPHandlers(svcs.Auth, oauthSvc, logger),
		Questions:   question.NewHTTPHandler(question.NewSelector(bank, topics, nil), topics, svcs.Entitlement, logger),
		Entitlement: entitlement.NewHTTPHandler(svcs.Entitlement, logger),
		Payment:     payment.NewHTTPHandler(paymentSvc, logger),
		Leaderboard: leaderboard.NewHTTPHandler(ledger, hub, cfg.Leaderboard.AllowedOrigins, logger),
		Campaigns:   mail.NewCampaignHandler(svcs.Campaigns, logger),
		Checks:      checks,
	})

	return &Application{
		cfg:           cfg,
		logger:        logger,
		stores:        stores,
		redis:         redisClient,
		events:        publisher,
		hub:           hub,
		http:          apiServer,
		lbBroadcaster: lbBroadcaster,
		bgCancels:     make([]context.CancelFunc, 0, 1),
	}, nil
}

func newMailTransport(ctx context.Context, cfg *config.App, logger zerolog.Logger) (mail.Transport, error) {
	switch {
	case cfg.SES.FromEmail != "":
		t, err := mail.NewSESTransport(ctx, cfg.SES.Region, cfg.SES.FromEmail, cfg.Mail.FromName)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("region", cfg.SES.Region).Msg("mail via SES")
		return t, nil
	case cfg.SMTP.Host != "":
		logger.Info().Str("host", cfg.SMTP.Host).Msg("mail via SMTP")
		return mail.NewSMTPTransport(mail.SMTPConfig{
			Host:      cfg.SMTP.Host,
			Port:      cfg.SMTP.Port,
			Username:  cfg.SMTP.Username,
			Password:  cfg.SMTP.Password,
			FromEmail: cfg.SMTP.FromEmail,
			FromName:  cfg.Mail.FromName,
		}), nil
	default:
		logger.Warn().Msg("no mail transport configured; emails are logged only")
		return mail.NewLogTransport(logger), nil
	}
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}
	a.hub.CloseAll()

	for _, cancel := range a.bgCancels {
		cancel()
	}

	if err := a.events.Close(); err != nil {
		a.logger.Error().Err(err).Msg("event publisher shutdown error")
	}
	a.stores.Close()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}

	a.logger.Info().Msg("shutdown complete")
	return runErr
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	if a.lbBroadcaster != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.lbBroadcaster.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn().Err(err).Msg("leaderboard broadcaster stopped")
			}
		}()
	}
}
