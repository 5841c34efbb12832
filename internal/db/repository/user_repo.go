package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gokatarajesh/mortgage-trainer/internal/auth"
	"github.com/gokatarajesh/mortgage-trainer/internal/db/postgres"
)

const userColumns = `id, email, name, password_hash, is_admin, marketing_opt_in, created_at`

// UserRepository is the Postgres auth.UserStore.
type UserRepository struct {
	db DBTX
}

var _ auth.UserStore = (*UserRepository)(nil)

// NewUserRepository wraps a pool for account operations.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user auth.User) (auth.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Email = auth.NormalizeEmail(user.Email)

	row := r.db.QueryRow(ctx, `
		INSERT INTO users (id, email, name, password_hash, is_admin, marketing_opt_in, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		user.ID, user.Email, user.Name, user.PasswordHash, user.IsAdmin, user.MarketingOptIn, user.CreatedAt)

	created, err := scanUser(row)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return auth.User{}, auth.ErrEmailTaken
		}
		return auth.User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (auth.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (auth.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = $1`, auth.NormalizeEmail(email))
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (auth.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.User{}, auth.ErrUserNotFound
		}
		return auth.User{}, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
}

func (r *UserRepository) SetAdmin(ctx context.Context, id uuid.UUID, admin bool) error {
	return r.exec(ctx, `UPDATE users SET is_admin = $2 WHERE id = $1`, id, admin)
}

func (r *UserRepository) SetMarketingOptIn(ctx context.Context, id uuid.UUID, optIn bool) error {
	return r.exec(ctx, `UPDATE users SET marketing_opt_in = $2 WHERE id = $1`, id, optIn)
}

// Delete removes the account. Access tokens go with it through ON DELETE CASCADE.
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = $1`, id)
}

func (r *UserRepository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]auth.User, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id LIMIT $1 OFFSET $2`, limit, offset)
}

func (r *UserRepository) ListMarketingRecipients(ctx context.Context) ([]auth.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE marketing_opt_in ORDER BY email`)
}

func (r *UserRepository) list(ctx context.Context, query string, args ...any) ([]auth.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (auth.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsAdmin, &u.MarketingOptIn, &u.CreatedAt)
	return u, err
}
