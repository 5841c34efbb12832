package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"
	"golang.org/x/sync/singleflight"

	"github.com/gokatarajesh/mortgage-trainer/internal/auth"
	"github.com/gokatarajesh/mortgage-trainer/internal/entitlement"
	"github.com/gokatarajesh/mortgage-trainer/internal/events"
	"github.com/gokatarajesh/mortgage-trainer/internal/mail"
	"github.com/gokatarajesh/mortgage-trainer/internal/metrics"
)

const (
	eventPaymentSucceeded = "payment_intent.succeeded"
	verifyTimeout         = 30 * time.Second
)

// Issuer mints access tokens for verified payments.
type Issuer interface {
	IssueToken(ctx context.Context, paymentIntentID string, product entitlement.Product, userID uuid.UUID) (entitlement.AccessToken, bool, error)
}

// UserLookup resolves the buyer for receipts.
type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*auth.User, error)
}

// ReceiptMailer sends purchase receipts.
type ReceiptMailer interface {
	SendReceipt(ctx context.Context, to, name string, receipt mail.Receipt) error
}

// EventPublisher emits entitlement events.
type EventPublisher interface {
	PublishEntitlementIssued(ctx context.Context, evt events.EntitlementIssued) error
}

// ServiceOptions wires optional collaborators.
type ServiceOptions struct {
	WebhookSecret string
	Users         UserLookup
	Mailer        ReceiptMailer
	Events        EventPublisher
}

// Service turns gateway payments into entitlements.
type Service struct {
	gateway       Gateway
	catalog       Catalog
	issuer        Issuer
	webhookSecret string
	users         UserLookup
	mailer        ReceiptMailer
	events        EventPublisher
	group         singleflight.Group
	logger        zerolog.Logger
}

// NewService creates a payment service. A nil gateway disables payments.
func NewService(gateway Gateway, catalog Catalog, issuer Issuer, opts ServiceOptions, logger zerolog.Logger) *Service {
	return &Service{
		gateway:       gateway,
		catalog:       catalog,
		issuer:        issuer,
		webhookSecret: opts.WebhookSecret,
		users:         opts.Users,
		mailer:        opts.Mailer,
		events:        opts.Events,
		logger:        logger.With().Str("component", "payment").Logger(),
	}
}

// Enabled reports whether a gateway is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.gateway != nil
}

// CreateIntent starts checkout for product on behalf of userID.
func (s *Service) CreateIntent(ctx context.Context, userID uuid.UUID, product entitlement.Product) (CreateIntentResult, error) {
	if !s.Enabled() {
		return CreateIntentResult{}, ErrPaymentsUnavailable
	}
	price, err := s.catalog.Lookup(product)
	if err != nil {
		return CreateIntentResult{}, err
	}

	intent, err := s.gateway.CreateIntent(ctx, price, map[string]string{
		MetadataProduct: string(product),
		MetadataUserID:  userID.String(),
	})
	if err != nil {
		return CreateIntentResult{}, err
	}

	s.logger.Info().
		Str("payment_intent", intent.ID).
		Str("product", string(product)).
		Str("user_id", userID.String()).
		Msg("payment intent created")

	return CreateIntentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Product:         product,
		Amount:          price.Amount,
		Currency:        price.Currency,
	}, nil
}

// Verify checks a completed payment with the gateway and issues its entitlement.
// The product is taken from the gateway's record, never from the caller.
func (s *Service) Verify(ctx context.Context, userID uuid.UUID, paymentIntentID string) (VerifyResult, error) {
	if !s.Enabled() {
		return VerifyResult{}, ErrPaymentsUnavailable
	}
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return VerifyResult{}, ErrMissingIntent
	}

	// Coalesced callers share one lookup, so it must outlive whichever caller
	// started it. Each caller still stops waiting when its own request ends.
	ch := s.group.DoChan(userID.String()+":"+paymentIntentID, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), verifyTimeout)
		defer cancel()
		return s.verify(shared, userID, paymentIntentID)
	})

	select {
	case <-ctx.Done():
		metrics.PaymentVerifications.WithLabelValues("abandoned").Inc()
		return VerifyResult{}, ctx.Err()
	case res := <-ch:
		metrics.PaymentVerifications.WithLabelValues(outcome(res.Err)).Inc()
		if res.Err != nil {
			return VerifyResult{}, res.Err
		}
		return res.Val.(VerifyResult), nil
	}
}

func (s *Service) verify(ctx context.Context, userID uuid.UUID, paymentIntentID string) (VerifyResult, error) {
	intent, err := s.gateway.GetIntent(ctx, paymentIntentID)
	if err != nil {
		return VerifyResult{}, err
	}

	product, owner, err := s.checkIntent(intent)
	if err != nil {
		s.logger.Warn().Err(err).Str("payment_intent", intent.ID).Msg("payment verification rejected")
		return VerifyResult{}, err
	}
	if owner != userID {
		s.logger.Warn().
			Str("payment_intent", intent.ID).
			Str("user_id", userID.String()).
			Msg("payment verified by a different user")
		return VerifyResult{}, ErrWrongUser
	}

	token, err := s.issue(ctx, intent, product, owner)
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{
		AccessToken: token.Token,
		Product:     token.Product,
		ExpiresAt:   token.ExpiresAt,
	}, nil
}

// HandleWebhook verifies a gateway callback and issues the entitlement for
// succeeded payments. Other event types are acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.webhookSecret == "" {
		return ErrPaymentsUnavailable
	}
	event, err := parseWebhook(payload, signature, s.webhookSecret)
	if err != nil {
		return err
	}
	if event.Type != eventPaymentSucceeded {
		s.logger.Debug().Str("event_type", string(event.Type)).Msg("ignoring webhook event")
		return nil
	}
	if event.Data == nil {
		return fmt.Errorf("%w: event has no data", ErrMismatch)
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return fmt.Errorf("decode payment intent: %w", err)
	}
	intent := fromStripe(&pi)

	product, owner, err := s.checkIntent(intent)
	if err != nil {
		s.logger.Warn().Err(err).Str("payment_intent", intent.ID).Msg("webhook payment rejected")
		return err
	}
	_, err = s.issue(ctx, intent, product, owner)
	return err
}

// checkIntent re-derives the product and buyer from the gateway record and
// compares amount and currency against the catalog.
func (s *Service) checkIntent(intent Intent) (entitlement.Product, uuid.UUID, error) {
	if intent.Status != StatusSucceeded {
		return "", uuid.Nil, fmt.Errorf("%w: status %s", ErrNotCompleted, intent.Status)
	}

	product, err := entitlement.ParseProduct(intent.Metadata[MetadataProduct])
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("%w: %v", ErrMismatch, err)
	}
	price, err := s.catalog.Lookup(product)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("%w: %v", ErrMismatch, err)
	}
	if intent.Amount != price.Amount || !strings.EqualFold(intent.Currency, price.Currency) {
		return "", uuid.Nil, fmt.Errorf("%w: got %d %s, want %d %s",
			ErrMismatch, intent.Amount, intent.Currency, price.Amount, price.Currency)
	}

	owner, err := uuid.Parse(intent.Metadata[MetadataUserID])
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("%w: missing user id", ErrMismatch)
	}
	return product, owner, nil
}

func (s *Service) issue(ctx context.Context, intent Intent, product entitlement.Product, owner uuid.UUID) (entitlement.AccessToken, error) {
	token, created, err := s.issuer.IssueToken(ctx, intent.ID, product, owner)
	if err != nil {
		if errors.Is(err, entitlement.ErrPaymentAlreadyClaimed) {
			return entitlement.AccessToken{}, fmt.Errorf("issue access token: %w", err)
		}
		return entitlement.AccessToken{}, fmt.Errorf("%w: %w", ErrIssueFailed, err)
	}
	if created {
		s.afterIssue(ctx, token, intent)
	}
	return token, nil
}

func (s *Service) afterIssue(ctx context.Context, token entitlement.AccessToken, intent Intent) {
	if s.events != nil {
		if err := s.events.PublishEntitlementIssued(ctx, events.EntitlementIssued{
			UserID:          token.UserID.String(),
			Product:         string(token.Product),
			PaymentIntentID: intent.ID,
			AmountMinor:     intent.Amount,
			Currency:        intent.Currency,
			ExpiresAt:       token.ExpiresAt,
		}); err != nil {
			s.logger.Warn().Err(err).Str("payment_intent", intent.ID).Msg("failed to publish entitlement.issued")
		}
	}

	if s.mailer == nil || s.users == nil {
		return
	}
	user, err := s.users.GetUser(ctx, token.UserID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", token.UserID.String()).Msg("receipt skipped, buyer lookup failed")
		return
	}
	if err := s.mailer.SendReceipt(ctx, user.Email, user.Name, mail.Receipt{
		Product:         string(token.Product),
		AmountMinor:     intent.Amount,
		Currency:        intent.Currency,
		PaymentIntentID: intent.ID,
		ExpiresAt:       token.ExpiresAt,
	}); err != nil {
		s.logger.Warn().Err(err).Str("payment_intent", intent.ID).Msg("failed to send receipt")
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "succeeded"
	case errors.Is(err, ErrNotCompleted):
		return "not_completed"
	case errors.Is(err, ErrMismatch), errors.Is(err, ErrWrongUser):
		return "rejected"
	case errors.Is(err, entitlement.ErrPaymentAlreadyClaimed):
		return "claimed"
	case errors.Is(err, ErrUnknownIntent):
		return "unknown"
	default:
		return "error"
	}
}
