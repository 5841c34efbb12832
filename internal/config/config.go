package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"mortgage-trainer"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	PublicBaseURL           string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:3000"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`
	StoreDriver             string        `env:"STORE_DRIVER" envDefault:"postgres"`

	Postgres    Postgres
	Redis       Redis
	Security    Security
	Stripe      Stripe
	Pricing     Pricing
	Mail        Mail
	SES         SES
	SMTP        SMTP
	RabbitMQ    RabbitMQ
	OAuth       OAuth
	Leaderboard Leaderboard
	RateLimit   RateLimit
	Campaign    Campaign
	CORS        CORS
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER"`
	Password string `env:"PG_PASSWORD"`
	Database string `env:"PG_DATABASE"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int    `env:"PG_MAX_CONNS" envDefault:"10"`
}

// DSN builds a libpq keyword/value connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// ConnString is DSN plus pgxpool settings.
func (p Postgres) ConnString() string {
	return fmt.Sprintf("%s pool_max_conns=%d", p.DSN(), p.MaxConns)
}

// Redis is optional. Without an address password reset, the weekly cache and
// cross-instance live updates are disabled.
type Redis struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing and auth.
type Security struct {
	JWTSecret        string        `env:"JWT_SECRET,notEmpty"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET"`
	AccessTokenTTL   time.Duration `env:"JWT_ACCESS_TTL" envDefault:"1h"`
	RefreshTokenTTL  time.Duration `env:"JWT_REFRESH_TTL" envDefault:"168h"`
	ResetTokenTTL    time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"1h"`
}

// RefreshSecret falls back to a value derived from the access secret.
func (s Security) RefreshSecret() string {
	if s.JWTRefreshSecret != "" {
		return s.JWTRefreshSecret
	}
	return s.JWTSecret + "_refresh"
}

// Stripe holds payment gateway credentials. An empty secret key disables payments.
type Stripe struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

// Pricing is the product catalog, in minor units.
type Pricing struct {
	Currency      string `env:"PRICE_CURRENCY" envDefault:"gbp"`
	ExamPence     int64  `env:"PRICE_EXAM_PENCE" envDefault:"1499"`
	ScenarioPence int64  `env:"PRICE_SCENARIO_PENCE" envDefault:"1499"`
	BundlePence   int64  `env:"PRICE_BUNDLE_PENCE" envDefault:"2499"`
}

// Mail holds settings shared by every transport.
type Mail struct {
	AppName  string `env:"MAIL_APP_NAME" envDefault:"Mortgage Trainer"`
	FromName string `env:"MAIL_FROM_NAME" envDefault:"Mortgage Trainer"`
}

// SES configures Amazon SES delivery.
type SES struct {
	Region    string `env:"AWS_REGION" envDefault:"eu-west-2"`
	FromEmail string `env:"SES_FROM_EMAIL"`
}

// SMTP holds email server configuration.
type SMTP struct {
	Host      string `env:"SMTP_HOST"`
	Port      int    `env:"SMTP_PORT" envDefault:"587"`
	Username  string `env:"SMTP_USERNAME"`
	Password  string `env:"SMTP_PASSWORD"`
	FromEmail string `env:"SMTP_FROM_EMAIL"`
}

// RabbitMQ configures domain event publishing. An empty URI disables it.
type RabbitMQ struct {
	URI      string `env:"RABBITMQ_URI"`
	Exchange string `env:"RABBITMQ_EXCHANGE" envDefault:"mortgage_trainer.events"`
}

// OAuth holds OAuth provider configuration.
type OAuth struct {
	GoogleClientID     string `env:"GOOGLE_OAUTH_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_OAUTH_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_OAUTH_REDIRECT_URL"`
}

// Leaderboard governs the weekly board and live feed.
type Leaderboard struct {
	WeeklyWindow   time.Duration `env:"LEADERBOARD_WEEKLY_WINDOW" envDefault:"168h"`
	UpdateTop      int           `env:"LEADERBOARD_UPDATE_TOP" envDefault:"10"`
	CacheTTL       time.Duration `env:"LEADERBOARD_CACHE_TTL" envDefault:"30s"`
	Channel        string        `env:"LEADERBOARD_CHANNEL" envDefault:"lb:updates"`
	AllowedOrigins []string      `env:"LEADERBOARD_WS_ALLOWED_ORIGINS" envSeparator:","`
}

// RateLimit caps abusable public endpoints per client IP.
type RateLimit struct {
	AuthRequests  int           `env:"RATE_LIMIT_AUTH_REQUESTS" envDefault:"10"`
	AuthWindow    time.Duration `env:"RATE_LIMIT_AUTH_WINDOW" envDefault:"1m"`
	ScoreRequests int           `env:"RATE_LIMIT_SCORE_REQUESTS" envDefault:"30"`
	ScoreWindow   time.Duration `env:"RATE_LIMIT_SCORE_WINDOW" envDefault:"1m"`
}

// Campaign tunes marketing sends.
type Campaign struct {
	Concurrency int `env:"CAMPAIGN_CONCURRENCY" envDefault:"5"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization,Stripe-Signature"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// IsProduction reports whether the app runs in production.
func (a *App) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (a *App) validate() error {
	a.StoreDriver = strings.ToLower(strings.TrimSpace(a.StoreDriver))
	switch a.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverPostgres:
		var missing []string
		if a.Postgres.User == "" {
			missing = append(missing, "PG_USER")
		}
		if a.Postgres.Password == "" {
			missing = append(missing, "PG_PASSWORD")
		}
		if a.Postgres.Database == "" {
			missing = append(missing, "PG_DATABASE")
		}
		if len(missing) > 0 {
			return fmt.Errorf("postgres store requires %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", a.StoreDriver)
	}

	if a.Stripe.SecretKey != "" && a.Stripe.WebhookSecret == "" && a.IsProduction() {
		return errors.New("STRIPE_WEBHOOK_SECRET is required in production when payments are enabled")
	}
	for name, amount := range map[string]int64{
		"PRICE_EXAM_PENCE":     a.Pricing.ExamPence,
		"PRICE_SCENARIO_PENCE": a.Pricing.ScenarioPence,
		"PRICE_BUNDLE_PENCE":   a.Pricing.BundlePence,
	} {
		if amount <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
