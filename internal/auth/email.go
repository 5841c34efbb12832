package auth

import (
	"context"
)

// Mailer delivers account emails.
type Mailer interface {
	SendWelcome(ctx context.Context, to, name string) error
	SendPasswordReset(ctx context.Context, to, name, resetToken string) error
}

// PasswordResetToken is the payload stored in Redis for a pending reset.
type PasswordResetToken struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func resetKey(token string) string {
	return "password_reset:" + token
}
