package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gokatarajesh/mortgage-trainer/internal/entitlement"
)

const tokenColumns = `token, payment_intent_id, product, user_id, expires_at, created_at`

// TokenRepository is the Postgres entitlement.Store.
type TokenRepository struct {
	db DBTX
}

var _ entitlement.Store = (*TokenRepository)(nil)

// NewTokenRepository wraps a pool for access tokens.
func NewTokenRepository(db DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create relies on the payment_intent_id unique constraint. A conflicting insert
// returns the row already stored for that intent.
func (r *TokenRepository) Create(ctx context.Context, token entitlement.AccessToken) (entitlement.AccessToken, bool, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO access_tokens (token, payment_intent_id, product, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (payment_intent_id) DO NOTHING
		RETURNING `+tokenColumns,
		token.Token, token.PaymentIntentID, string(token.Product), token.UserID, token.ExpiresAt, token.CreatedAt)

	created, err := scanToken(row)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return entitlement.AccessToken{}, false, fmt.Errorf("insert access token: %w", err)
	}

	existing, err := scanToken(r.db.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM access_tokens WHERE payment_intent_id = $1`, token.PaymentIntentID))
	if err != nil {
		return entitlement.AccessToken{}, false, fmt.Errorf("select access token: %w", err)
	}
	return existing, false, nil
}

func (r *TokenRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]entitlement.AccessToken, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+tokenColumns+` FROM access_tokens WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list access tokens: %w", err)
	}
	tokens, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entitlement.AccessToken, error) {
		return scanToken(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan access tokens: %w", err)
	}
	return tokens, nil
}

func (r *TokenRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM access_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete access tokens: %w", err)
	}
	return nil
}

func scanToken(row pgx.Row) (entitlement.AccessToken, error) {
	var (
		t       entitlement.AccessToken
		product string
	)
	if err := row.Scan(&t.Token, &t.PaymentIntentID, &product, &t.UserID, &t.ExpiresAt, &t.CreatedAt); err != nil {
		return entitlement.AccessToken{}, err
	}
	t.Product = entitlement.Product(product)
	return t, nil
}
