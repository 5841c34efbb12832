package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeForbidden              = "forbidden"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"
	ErrCodeAdminRequired          = "admin_required"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"
	ErrCodeUnknownMode      = "unknown_mode"
	ErrCodeUnknownProduct   = "unknown_product"

	// Resource errors
	ErrCodeNotFound      = "not_found"
	ErrCodeAlreadyExists = "already_exists"
	ErrCodeConflict      = "conflict"
	ErrCodeTopicNotFound = "topic_not_found"

	// Account errors
	ErrCodeRegistrationFailed = "registration_failed"
	ErrCodeEmailTaken         = "email_taken"
	ErrCodeLoginFailed        = "login_failed"
	ErrCodeRefreshFailed      = "refresh_failed"
	ErrCodeResetFailed        = "reset_failed"
	ErrCodeUserNotFound       = "user_not_found"

	// Entitlement and payment errors
	ErrCodeAccessRequired       = "access_required"
	ErrCodePaymentNotCompleted  = "payment_not_completed"
	ErrCodePaymentMismatch      = "payment_mismatch"
	ErrCodePaymentClaimed       = "payment_already_claimed"
	ErrCodePaymentFailed        = "payment_failed"
	ErrCodePaymentNotFound      = "payment_not_found"
	ErrCodeInvalidSignature     = "invalid_signature"
	ErrCodePaymentsNotAvailable = "payments_not_available"

	// Leaderboard errors
	ErrCodeLeaderboardFetchFailed = "leaderboard_fetch_failed"
	ErrCodeScoreRejected          = "score_rejected"

	// Campaign errors
	ErrCodeCampaignFailed = "campaign_failed"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"
	ErrCodeRateLimited        = "rate_limited"

	// Feature availability
	ErrCodeFeatureNotAvailable = "feature_not_available"

	// OAuth errors
	ErrCodeOAuthNotConfigured  = "oauth_not_configured"
	ErrCodeOAuthStartFailed    = "oauth_start_failed"
	ErrCodeOAuthCallbackFailed = "oauth_callback_failed"
	ErrCodeOAuthMissingCode    = "missing_code"
	ErrCodeOAuthInvalidState   = "invalid_state"
	ErrCodeUserCreationFailed  = "user_creation_failed"
)
