package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gokatarajesh/mortgage-trainer/internal/leaderboard"
)

const highScoreColumns = `id, name, score, total, mode, created_at`

// HighScoreRepository is the Postgres leaderboard.Store.
type HighScoreRepository struct {
	db DBTX
	tx TxRunner
}

var _ leaderboard.Store = (*HighScoreRepository)(nil)

// NewHighScoreRepository wraps a pool and a transactor over the same database.
func NewHighScoreRepository(db DBTX, tx TxRunner) *HighScoreRepository {
	return &HighScoreRepository{db: db, tx: tx}
}

// Insert stores hs and conditionally takes over the champion row for its mode
// in one transaction. The upsert compares ratios by cross-multiplication, and
// only a strictly better score replaces the holder.
func (r *HighScoreRepository) Insert(ctx context.Context, hs leaderboard.HighScore) (bool, error) {
	score, total := hs.Score, hs.Total
	if total <= 0 {
		score, total = 0, 1
	}

	var promoted bool
	err := r.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO high_scores (id, name, score, total, mode, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			hs.ID, hs.Name, hs.Score, hs.Total, string(hs.Mode), hs.CreatedAt); err != nil {
			return fmt.Errorf("insert high score: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO high_score_champions (mode, high_score_id, score, total)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (mode) DO UPDATE
			SET high_score_id = EXCLUDED.high_score_id,
			    score = EXCLUDED.score,
			    total = EXCLUDED.total
			WHERE EXCLUDED.score::BIGINT * high_score_champions.total > high_score_champions.score::BIGINT * EXCLUDED.total`,
			string(hs.Mode), hs.ID, score, total)
		if err != nil {
			return fmt.Errorf("upsert champion: %w", err)
		}
		promoted = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return promoted, nil
}

func (r *HighScoreRepository) Since(ctx context.Context, mode leaderboard.Mode, since time.Time) ([]leaderboard.HighScore, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+highScoreColumns+` FROM high_scores WHERE mode = $1 AND created_at >= $2 ORDER BY created_at`,
		string(mode), since)
	if err != nil {
		return nil, fmt.Errorf("list high scores: %w", err)
	}
	scores, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (leaderboard.HighScore, error) {
		return scanHighScore(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan high scores: %w", err)
	}
	return scores, nil
}

func (r *HighScoreRepository) Champion(ctx context.Context, mode leaderboard.Mode) (*leaderboard.HighScore, error) {
	rows, err := r.db.Query(ctx, `
		SELECT h.id, h.name, h.score, h.total, h.mode, h.created_at
		FROM high_score_champions c
		JOIN high_scores h ON h.id = c.high_score_id
		WHERE c.mode = $1`, string(mode))
	if err != nil {
		return nil, fmt.Errorf("select champion: %w", err)
	}
	champ, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (leaderboard.HighScore, error) {
		return scanHighScore(row)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan champion: %w", err)
	}
	return &champ, nil
}

func scanHighScore(row pgx.Row) (leaderboard.HighScore, error) {
	var (
		hs   leaderboard.HighScore
		mode string
	)
	if err := row.Scan(&hs.ID, &hs.Name, &hs.Score, &hs.Total, &mode, &hs.CreatedAt); err != nil {
		return leaderboard.HighScore{}, err
	}
	hs.Mode = leaderboard.Mode(mode)
	return hs, nil
}
