package entitlement

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/mortgage-trainer/internal/metrics"
)

// Service issues and checks access tokens.
type Service struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the wall clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an entitlement service backed by store.
func NewService(store Store, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logger.With().Str("component", "entitlement").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueToken mints the token for a verified payment. Repeated calls with the same
// payment intent return the token issued first; the bool reports whether it was new.
func (s *Service) IssueToken(ctx context.Context, paymentIntentID string, product Product, userID uuid.UUID) (AccessToken, bool, error) {
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return AccessToken{}, false, ErrMissingPaymentIntent
	}
	if userID == uuid.Nil {
		return AccessToken{}, false, ErrMissingUser
	}
	if _, err := ParseProduct(string(product)); err != nil {
		return AccessToken{}, false, err
	}

	value, err := GenerateToken()
	if err != nil {
		return AccessToken{}, false, err
	}

	now := s.now().UTC()
	candidate := AccessToken{
		Token:           value,
		PaymentIntentID: paymentIntentID,
		Product:         product,
		UserID:          userID,
		CreatedAt:       now,
	}
	if product == ProductBundle {
		expires := now.Add(BundleValidity)
		candidate.ExpiresAt = &expires
	}

	stored, created, err := s.store.Create(ctx, candidate)
	if err != nil {
		return AccessToken{}, false, fmt.Errorf("store access token: %w", err)
	}
	if !created && (stored.UserID != userID || stored.Product != product) {
		s.logger.Warn().
			Str("payment_intent", paymentIntentID).
			Str("user_id", userID.String()).
			Msg("payment intent already claimed by a different entitlement")
		return AccessToken{}, false, ErrPaymentAlreadyClaimed
	}

	if created {
		metrics.TokensIssued.WithLabelValues(string(product)).Inc()
		s.logger.Info().
			Str("payment_intent", paymentIntentID).
			Str("product", string(product)).
			Str("user_id", userID.String()).
			Msg("access token issued")
	}
	return stored, created, nil
}

// CheckAccess reports whether the user holds an active token for product or an active bundle.
func (s *Service) CheckAccess(ctx context.Context, userID uuid.UUID, product Product) (bool, error) {
	tokens, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list access tokens: %w", err)
	}
	now := s.now()
	for _, t := range tokens {
		if t.Product.Grants(product) && t.Active(now) {
			return true, nil
		}
	}
	return false, nil
}

// ListTokens returns every token the user holds, newest first.
func (s *Service) ListTokens(ctx context.Context, userID uuid.UUID) ([]AccessToken, error) {
	tokens, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list access tokens: %w", err)
	}
	return tokens, nil
}

// PurgeUser removes every token owned by the user.
func (s *Service) PurgeUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("delete access tokens: %w", err)
	}
	return nil
}

// GenerateToken returns 32 random bytes, URL-safe base64 encoded.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}
