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

	"github.com/gokatarajesh/mortgage-trainer/internal/auth"
)

type mockDB struct {
	mock.Mock
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	called := m.Called(ctx, sql, args)
	return called.Get(0).(pgconn.CommandTag), called.Error(1)
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	called := m.Called(ctx, sql, args)
	rows, _ := called.Get(0).(pgx.Rows)
	return rows, called.Error(1)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return m.Called(ctx, sql, args).Get(0).(pgx.Row)
}

// stubRow scans values positionally or fails with err.
type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *uuid.UUID:
			*p = r.values[i].(uuid.UUID)
		case *string:
			*p = r.values[i].(string)
		case **string:
			*p, _ = r.values[i].(*string)
		case *bool:
			*p = r.values[i].(bool)
		case *time.Time:
			*p = r.values[i].(time.Time)
		case **time.Time:
			*p, _ = r.values[i].(*time.Time)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505", ConstraintName: "users_email_lower_idx"}
}

func TestUserRepository_Create(t *testing.T) {
	db := new(mockDB)
	repo := NewUserRepository(db)

	id := uuid.New()
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	hash := "hashed"
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(stubRow{values: []any{id, "ada@example.com", "Ada", &hash, false, true, created}}).Once()

	got, err := repo.Create(context.Background(), auth.User{ID: id, Email: " Ada@Example.com ", Name: "Ada", PasswordHash: &hash})
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.True(t, got.MarketingOptIn)

	args := db.Calls[0].Arguments.Get(2).([]any)
	assert.Equal(t, "ada@example.com", args[1], "email is normalised before insert")
	db.AssertExpectations(t)
}

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	db := new(mockDB)
	repo := NewUserRepository(db)

	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).Return(stubRow{err: uniqueViolation()})

	_, err := repo.Create(context.Background(), auth.User{Email: "ada@example.com", Name: "Ada"})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestUserRepository_GetNotFound(t *testing.T) {
	db := new(mockDB)
	repo := NewUserRepository(db)

	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).Return(stubRow{err: pgx.ErrNoRows})

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	_, err = repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestUserRepository_GetWrapsDriverErrors(t *testing.T) {
	db := new(mockDB)
	repo := NewUserRepository(db)

	boom := errors.New("connection reset")
	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).Return(stubRow{err: boom})

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, auth.ErrUserNotFound)
}

func TestUserRepository_UpdatesReportMissingRows(t *testing.T) {
	db := new(mockDB)
	repo := NewUserRepository(db)
	ctx := context.Background()
	id := uuid.New()

	db.On("Exec", mock.Anything, mock.Anything, mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil).Once()
	assert.ErrorIs(t, repo.SetAdmin(ctx, id, true), auth.ErrUserNotFound)

	db.On("Exec", mock.Anything, mock.Anything, mock.Anything).Return(pgconn.NewCommandTag("UPDATE 1"), nil).Once()
	assert.NoError(t, repo.SetMarketingOptIn(ctx, id, true))

	db.On("Exec", mock.Anything, mock.Anything, mock.Anything).Return(pgconn.NewCommandTag("DELETE 1"), nil).Once()
	assert.NoError(t, repo.Delete(ctx, id))

	db.AssertExpectations(t)
}
