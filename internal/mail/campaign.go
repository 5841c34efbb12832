package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/mortgage-trainer/internal/auth"
	"github.com/gokatarajesh/mortgage-trainer/internal/metrics"
)

const defaultCampaignConcurrency = 5

var ErrEmptyCampaign = errors.New("campaign subject and body are required")

// RecipientSource lists users who agreed to marketing mail.
type RecipientSource interface {
	ListMarketingRecipients(ctx context.Context) ([]auth.User, error)
}

// Campaign is one marketing send.
type Campaign struct {
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
}

// CampaignResult reports delivery counts.
type CampaignResult struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}

// CampaignService fans a campaign out to opted-in users.
type CampaignService struct {
	recipients  RecipientSource
	transport   Transport
	concurrency int
	logger      zerolog.Logger
}

// NewCampaignService creates a campaign sender with bounded concurrency.
func NewCampaignService(recipients RecipientSource, transport Transport, concurrency int, logger zerolog.Logger) *CampaignService {
	if concurrency <= 0 {
		concurrency = defaultCampaignConcurrency
	}
	return &CampaignService{
		recipients:  recipients,
		transport:   transport,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "campaign").Logger(),
	}
}

// Send mails c to every opted-in user. Individual delivery failures are counted,
// not returned; only a failed recipient lookup or cancellation aborts the send.
func (s *CampaignService) Send(ctx context.Context, c Campaign) (CampaignResult, error) {
	c.Subject = strings.TrimSpace(c.Subject)
	if c.Subject == "" || (strings.TrimSpace(c.Text) == "" && strings.TrimSpace(c.HTML) == "") {
		return CampaignResult{}, ErrEmptyCampaign
	}

	users, err := s.recipients.ListMarketingRecipients(ctx)
	if err != nil {
		return CampaignResult{}, fmt.Errorf("list campaign recipients: %w", err)
	}

	var sent, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, u := range users {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			msg := Message{To: u.Email, Subject: c.Subject, Text: c.Text, HTML: c.HTML}
			if err := s.transport.Send(gctx, msg); err != nil {
				failed.Add(1)
				metrics.EmailsSent.WithLabelValues(KindCampaign, "error").Inc()
				s.logger.Warn().Err(err).Str("user_id", u.ID.String()).Msg("campaign delivery failed")
				return nil
			}
			sent.Add(1)
			metrics.EmailsSent.WithLabelValues(KindCampaign, "ok").Inc()
			return nil
		})
	}

	result := CampaignResult{Recipients: len(users)}
	err = g.Wait()
	result.Sent = int(sent.Load())
	result.Failed = int(failed.Load())
	if err != nil {
		return result, fmt.Errorf("send campaign: %w", err)
	}

	s.logger.Info().
		Str("subject", c.Subject).
		Int("recipients", result.Recipients).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Msg("campaign sent")
	return result, nil
}
