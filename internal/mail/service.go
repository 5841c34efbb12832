package mail

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/mortgage-trainer/internal/metrics"
)

// Mail kinds, used as the metrics label.
const (
	KindWelcome  = "welcome"
	KindReset    = "password_reset"
	KindReceipt  = "receipt"
	KindCampaign = "campaign"
)

// Receipt describes a completed purchase.
type Receipt struct {
	Product         string
	AmountMinor     int64
	Currency        string
	PaymentIntentID string
	ExpiresAt       *time.Time
}

var templates = template.Must(template.New("mail").Funcs(template.FuncMap{
	"money": formatMoney,
	"date":  func(t time.Time) string { return t.UTC().Format("2 January 2006") },
}).Parse(`
{{define "welcome"}}Hi {{.Name}},

Welcome to {{.App}}. Practice mode is free, and exam and scenario sessions unlock once you buy access.

Start practising: {{.BaseURL}}

The {{.App}} team
{{end}}

{{define "reset"}}Hi {{.Name}},

We received a request to reset your {{.App}} password.

Reset it here: {{.Link}}

This link expires in 1 hour. If you did not ask for a reset you can ignore this email.
{{end}}

{{define "receipt"}}Hi {{.Name}},

Thanks for your purchase.

Product: {{.Receipt.Product}}
Amount:  {{money .Receipt.AmountMinor .Receipt.Currency}}
Reference: {{.Receipt.PaymentIntentID}}
{{if .Receipt.ExpiresAt}}Access ends on {{date .Receipt.ExpiresAt}}.{{else}}Access does not expire.{{end}}

The {{.App}} team
{{end}}
`))

// Options configures the mail service.
type Options struct {
	AppName string
	BaseURL string
}

// Service renders and sends transactional mail.
type Service struct {
	transport Transport
	appName   string
	baseURL   string
	logger    zerolog.Logger
}

// NewService creates a mail service on transport.
func NewService(transport Transport, opts Options, logger zerolog.Logger) *Service {
	if opts.AppName == "" {
		opts.AppName = "Mortgage Trainer"
	}
	return &Service{
		transport: transport,
		appName:   opts.AppName,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		logger:    logger.With().Str("component", "mail").Str("transport", transport.Name()).Logger(),
	}
}

// SendWelcome mails a newly registered user.
func (s *Service) SendWelcome(ctx context.Context, to, name string) error {
	body, err := render("welcome", map[string]interface{}{
		"Name": name, "App": s.appName, "BaseURL": s.baseURL,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, KindWelcome, Message{To: to, Subject: "Welcome to " + s.appName, Text: body})
}

// SendPasswordReset mails a single-use reset link.
func (s *Service) SendPasswordReset(ctx context.Context, to, name, resetToken string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, url.QueryEscape(resetToken))
	body, err := render("reset", map[string]interface{}{
		"Name": name, "App": s.appName, "Link": link,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, KindReset, Message{To: to, Subject: "Reset your " + s.appName + " password", Text: body})
}

// SendReceipt mails a purchase receipt.
func (s *Service) SendReceipt(ctx context.Context, to, name string, receipt Receipt) error {
	body, err := render("receipt", map[string]interface{}{
		"Name": name, "App": s.appName, "Receipt": receipt,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, KindReceipt, Message{To: to, Subject: "Your " + s.appName + " receipt", Text: body})
}

func (s *Service) send(ctx context.Context, kind string, msg Message) error {
	if err := s.transport.Send(ctx, msg); err != nil {
		metrics.EmailsSent.WithLabelValues(kind, "error").Inc()
		s.logger.Error().Err(err).Str("kind", kind).Str("to", msg.To).Msg("failed to send email")
		return err
	}
	metrics.EmailsSent.WithLabelValues(kind, "ok").Inc()
	s.logger.Info().Str("kind", kind).Str("to", msg.To).Msg("email sent")
	return nil
}

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", name, err)
	}
	return strings.TrimSpace(buf.String()) + "\n", nil
}

func formatMoney(minor int64, currency string) string {
	symbol := strings.ToUpper(currency) + " "
	if strings.EqualFold(currency, "gbp") {
		symbol = "£"
	}
	return fmt.Sprintf("%s%d.%02d", symbol, minor/100, minor%100)
}
