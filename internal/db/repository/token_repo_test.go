package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/mortgage-trainer/internal/entitlement"
)

func tokenRow(t entitlement.AccessToken) stubRow {
	return stubRow{values: []any{t.Token, t.PaymentIntentID, string(t.Product), t.UserID, t.ExpiresAt, t.CreatedAt}}
}

func TestTokenRepository_CreateNew(t *testing.T) {
	db := new(mockDB)
	repo := NewTokenRepository(db)

	token := entitlement.AccessToken{
		Token: "tok_1", PaymentIntentID: "pi_1", Product: entitlement.ProductExam,
		UserID: uuid.New(), CreatedAt: time.Now().UTC(),
	}
	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).Return(tokenRow(token)).Once()

	got, created, err := repo.Create(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, token, got)
	db.AssertExpectations(t)
}

func TestTokenRepository_CreateConflictReturnsExisting(t *testing.T) {
	db := new(mockDB)
	repo := NewTokenRepository(db)

	expires := time.Now().Add(entitlement.BundleValidity).UTC()
	existing := entitlement.AccessToken{
		Token: "tok_first", PaymentIntentID: "pi_1", Product: entitlement.ProductBundle,
		UserID: uuid.New(), ExpiresAt: &expires, CreatedAt: time.Now().UTC(),
	}
	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).Return(stubRow{err: pgx.ErrNoRows}).Once()
	db.On("QueryRow", mock.Anything, mock.Anything, []any{"pi_1"}).Return(tokenRow(existing)).Once()

	got, created, err := repo.Create(context.Background(), entitlement.AccessToken{
		Token: "tok_second", PaymentIntentID: "pi_1", Product: entitlement.ProductBundle, UserID: existing.UserID,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "tok_first", got.Token)
	db.AssertExpectations(t)
}

func TestTokenRepository_CreateWrapsErrors(t *testing.T) {
	db := new(mockDB)
	repo := NewTokenRepository(db)

	fk := &pgconn.PgError{Code: "23503"}
	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).Return(stubRow{err: fk})

	_, _, err := repo.Create(context.Background(), entitlement.AccessToken{Token: "t", PaymentIntentID: "pi"})
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "23503", pgErr.Code)
}

func TestTokenRepository_DeleteByUser(t *testing.T) {
	db := new(mockDB)
	repo := NewTokenRepository(db)
	userID := uuid.New()

	db.On("Exec", mock.Anything, mock.Anything, []any{userID}).Return(pgconn.NewCommandTag("DELETE 2"), nil).Once()
	require.NoError(t, repo.DeleteByUser(context.Background(), userID))

	db.On("Exec", mock.Anything, mock.Anything, mock.Anything).Return(pgconn.CommandTag{}, errors.New("down")).Once()
	assert.Error(t, repo.DeleteByUser(context.Background(), userID))
	db.AssertExpectations(t)
}
