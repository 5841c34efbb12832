package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mortgage_trainer"

var (
	// QuestionSessions counts quiz sessions served by mode.
	QuestionSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "question_sessions_total",
		Help:      "Quiz sessions served, by mode.",
	}, []string{"mode"})

	// TokensIssued counts newly minted access tokens by product.
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "access_tokens_issued_total",
		Help:      "Access tokens minted, by product.",
	}, []string{"product"})

	// PaymentVerifications counts verification attempts by outcome.
	PaymentVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_verifications_total",
		Help:      "Payment verification attempts, by outcome.",
	}, []string{"outcome"})

	// HighScoresRecorded counts leaderboard submissions by mode.
	HighScoresRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "high_scores_recorded_total",
		Help:      "High scores recorded, by mode.",
	}, []string{"mode"})

	// EmailsSent counts outbound mail by kind and result.
	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_sent_total",
		Help:      "Outbound emails, by kind and result.",
	}, []string{"kind", "result"})

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_requests_total",
		Help:      "Requests rejected by the rate limiter, by route group.",
	}, []string{"group"})
)
