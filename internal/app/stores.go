package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/mortgage-trainer/internal/auth"
	"github.com/gokatarajesh/mortgage-trainer/internal/config"
	"github.com/gokatarajesh/mortgage-trainer/internal/db/postgres"
	"github.com/gokatarajesh/mortgage-trainer/internal/db/repository"
	"github.com/gokatarajesh/mortgage-trainer/internal/entitlement"
	"github.com/gokatarajesh/mortgage-trainer/internal/leaderboard"
)

// Stores are the persistence backends selected by STORE_DRIVER.
type Stores struct {
	Users  auth.UserStore
	Tokens entitlement.Store
	Scores leaderboard.Store

	// Pool is nil for the memory driver.
	Pool *pgxpool.Pool
}

// OpenStores connects the configured backend.
func OpenStores(ctx context.Context, cfg *config.App, logger zerolog.Logger) (*Stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn().Msg("using in-memory stores, data is lost on restart")
		return &Stores{
			Users:  auth.NewMemoryUserStore(),
			Tokens: entitlement.NewMemoryStore(),
			Scores: leaderboard.NewMemoryStore(),
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres.ConnString())
	if err != nil {
		return nil, fmt.Errorf("open stores: %w", err)
	}
	logger.Info().
		Str("host", cfg.Postgres.Host).
		Int("port", cfg.Postgres.Port).
		Str("database", cfg.Postgres.Database).
		Msg("connected to postgres")

	return &Stores{
		Users:  repository.NewUserRepository(pool),
		Tokens: repository.NewTokenRepository(pool),
		Scores: repository.NewHighScoreRepository(pool, postgres.NewTransactor(pool)),
		Pool:   pool,
	}, nil
}

// Close releases the pool, if any.
func (s *Stores) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}
