package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/mortgage-trainer/internal/auth/jwt"
	"github.com/gokatarajesh/mortgage-trainer/internal/events"
)

const (
	defaultResetTTL = time.Hour
	maxNameLength   = 80
)

// AccountPurger removes data a user owns when the account is deleted.
type AccountPurger interface {
	PurgeUser(ctx context.Context, userID uuid.UUID) error
}

// EventPublisher emits account lifecycle events.
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, evt events.AccountRegistered) error
	PublishAccountDeleted(ctx context.Context, evt events.AccountDeleted) error
}

// Service handles authentication and user management.
type Service struct {
	users    UserStore
	tokenMgr *jwt.Manager
	redis    *redis.Client
	mailer   Mailer
	events   EventPublisher
	purgers  []AccountPurger
	resetTTL time.Duration
	logger   zerolog.Logger
}

// ServiceOptions configures the auth service.
type ServiceOptions struct {
	TokenConfig jwt.TokenConfig
	Redis       *redis.Client
	Mailer      Mailer
	Events      EventPublisher
	Purgers     []AccountPurger
	ResetTTL    time.Duration
}

// NewService creates an authentication service.
func NewService(users UserStore, opts ServiceOptions, logger zerolog.Logger) *Service {
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = defaultResetTTL
	}
	return &Service{
		users:    users,
		tokenMgr: jwt.NewManager(opts.TokenConfig),
		redis:    opts.Redis,
		mailer:   opts.Mailer,
		events:   opts.Events,
		purgers:  opts.Purgers,
		resetTTL: opts.ResetTTL,
		logger:   logger.With().Str("component", "auth").Logger(),
	}
}

// Register creates a new account and signs the user in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, *TokenPair, error) {
	email := NormalizeEmail(req.Email)
	if err := validateEmail(email); err != nil {
		return nil, nil, err
	}
	name, err := cleanName(req.Name)
	if err != nil {
		return nil, nil, err
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.users.Create(ctx, User{
		ID:             uuid.New(),
		Email:          email,
		Name:           name,
		PasswordHash:   &passwordHash,
		MarketingOptIn: req.MarketingOptIn,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	tokens, err := s.generateTokenPair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.afterRegistration(ctx, user)
	s.logger.Info().Str("user_id", user.ID.String()).Msg("user registered")
	return &user, tokens, nil
}

// Login authenticates a user with email/password.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}

	if user.PasswordHash == nil || VerifyPassword(*user.PasswordHash, req.Password) != nil {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.generateTokenPair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("user logged in")
	return &user, tokens, nil
}

// RefreshToken generates a new token pair from a refresh token.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokenMgr.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	// The account may have been deleted or demoted since the token was issued.
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	return s.generateTokenPair(user)
}

// ValidateToken validates an access token and returns user claims.
func (s *Service) ValidateToken(tokenString string) (*jwt.Claims, error) {
	return s.tokenMgr.ValidateAccessToken(tokenString)
}

// GetUser loads an account by id.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers pages through accounts for administrators.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	return s.users.List(ctx, limit, offset)
}

// SetMarketingOptIn records campaign consent.
func (s *Service) SetMarketingOptIn(ctx context.Context, id uuid.UUID, optIn bool) error {
	if err := s.users.SetMarketingOptIn(ctx, id, optIn); err != nil {
		return fmt.Errorf("update marketing preference: %w", err)
	}
	return nil
}

// PromoteAdmin grants the admin flag to the account with email.
func (s *Service) PromoteAdmin(ctx context.Context, email string) (*User, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if err := s.users.SetAdmin(ctx, user.ID, true); err != nil {
		return nil, fmt.Errorf("set admin: %w", err)
	}
	user.IsAdmin = true
	s.logger.Info().Str("user_id", user.ID.String()).Msg("user promoted to admin")
	return &user, nil
}

// DeleteAccount removes the account and everything registered purgers own for it.
func (s *Service) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	for _, p := range s.purgers {
		if err := p.PurgeUser(ctx, id); err != nil {
			return fmt.Errorf("purge user data: %w", err)
		}
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	if s.events != nil {
		if err := s.events.PublishAccountDeleted(ctx, events.AccountDeleted{UserID: id.String()}); err != nil {
			s.logger.Warn().Err(err).Msg("publish account deleted event failed")
		}
	}
	s.logger.Info().Str("user_id", id.String()).Msg("account deleted")
	return nil
}

// RequestPasswordReset generates a reset token and sends reset email.
// Unknown addresses succeed silently so callers cannot probe for accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if s.redis == nil || s.mailer == nil {
		return ErrResetUnavailable
	}

	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)

	payload, err := json.Marshal(PasswordResetToken{UserID: user.ID.String(), Email: user.Email})
	if err != nil {
		return fmt.Errorf("encode reset token: %w", err)
	}
	if err := s.redis.Set(ctx, resetKey(token), payload, s.resetTTL).Err(); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Name, token); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("password reset requested")
	return nil
}

// ResetPassword consumes a reset token and updates the password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if s.redis == nil {
		return ErrResetUnavailable
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	raw, err := s.redis.GetDel(ctx, resetKey(token)).Result()
	if err == redis.Nil {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("get reset token: %w", err)
	}

	var data PasswordResetToken
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return fmt.Errorf("decode token data: %w", err)
	}
	userID, err := uuid.Parse(data.UserID)
	if err != nil {
		return ErrInvalidResetToken
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.Info().Str("user_id", userID.String()).Msg("password reset completed")
	return nil
}

// LoginOAuth signs in the account matching the provider's email, creating it on first use.
func (s *Service) LoginOAuth(ctx context.Context, provider string, info *OAuthUserInfo) (*User, *TokenPair, error) {
	email := NormalizeEmail(info.Email)
	if email == "" {
		return nil, nil, fmt.Errorf("OAuth provider did not return email")
	}

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, ErrUserNotFound):
		name := strings.TrimSpace(info.Name)
		if name == "" {
			name = email
		}
		if len(name) > maxNameLength {
			name = name[:maxNameLength]
		}
		user, err = s.users.Create(ctx, User{
			ID:        uuid.New(),
			Email:     email,
			Name:      name,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create OAuth user: %w", err)
		}
		s.afterRegistration(ctx, user)
		s.logger.Info().Str("user_id", user.ID.String()).Str("provider", provider).Msg("OAuth user created")
	default:
		return nil, nil, fmt.Errorf("get user: %w", err)
	}

	tokens, err := s.generateTokenPair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}
	return &user, tokens, nil
}

func (s *Service) afterRegistration(ctx context.Context, user User) {
	if s.mailer != nil {
		if err := s.mailer.SendWelcome(ctx, user.Email, user.Name); err != nil {
			s.logger.Warn().Err(err).Str("user_id", user.ID.String()).Msg("welcome email failed")
		}
	}
	if s.events != nil {
		evt := events.AccountRegistered{
			UserID:         user.ID.String(),
			Email:          user.Email,
			Name:           user.Name,
			MarketingOptIn: user.MarketingOptIn,
		}
		if err := s.events.PublishAccountRegistered(ctx, evt); err != nil {
			s.logger.Warn().Err(err).Msg("publish account registered event failed")
		}
	}
}

func (s *Service) generateTokenPair(user User) (*TokenPair, error) {
	sub := jwt.Subject{
		ID:      user.ID,
		Email:   user.Email,
		Name:    user.Name,
		IsAdmin: user.IsAdmin,
	}

	accessToken, err := s.tokenMgr.GenerateAccessToken(sub)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.tokenMgr.GenerateRefreshToken(sub)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokenMgr.AccessTTL().Seconds()),
	}, nil
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameRequired
	}
	if len(name) > maxNameLength {
		return "", fmt.Errorf("name must be at most %d characters", maxNameLength)
	}
	return name, nil
}
