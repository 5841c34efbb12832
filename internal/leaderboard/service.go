package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/mortgage-trainer/internal/metrics"
)

const (
	defaultWeeklyWindow = 7 * 24 * time.Hour
	defaultUpdateTop    = 10
	// MaxLimit caps how many weekly entries a caller may request.
	MaxLimit = 100
)

// WeeklyCache holds the ranked weekly board per mode. Get reports the generation
// the board belongs to; Set stores under that generation so a board ranked
// before an Invalidate is never served after it.
type WeeklyCache interface {
	Get(ctx context.Context, mode Mode) ([]HighScore, int64, bool, error)
	Set(ctx context.Context, mode Mode, gen int64, ranked []HighScore) error
	Invalidate(ctx context.Context, mode Mode) error
}

// UpdatePublisher fans leaderboard changes out to live subscribers.
type UpdatePublisher interface {
	Publish(ctx context.Context, update Update) error
}

// LedgerOptions configures optional collaborators.
type LedgerOptions struct {
	Cache     WeeklyCache
	Publisher UpdatePublisher
	Window    time.Duration
	UpdateTop int
	Clock     func() time.Time
}

// Ledger records quiz results and derives the weekly and all-time boards.
type Ledger struct {
	store     Store
	cache     WeeklyCache
	publisher UpdatePublisher
	window    time.Duration
	updateTop int
	now       func() time.Time
	logger    zerolog.Logger
}

// NewLedger constructs a score ledger.
func NewLedger(store Store, logger zerolog.Logger, opts LedgerOptions) *Ledger {
	window := opts.Window
	if window <= 0 {
		window = defaultWeeklyWindow
	}
	updateTop := opts.UpdateTop
	if updateTop <= 0 || updateTop > MaxLimit {
		updateTop = defaultUpdateTop
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Ledger{
		store:     store,
		cache:     opts.Cache,
		publisher: opts.Publisher,
		window:    window,
		updateTop: updateTop,
		now:       clock,
		logger:    logger.With().Str("component", "leaderboard").Logger(),
	}
}

// Record appends a result with a server-assigned id and timestamp. Mode validation
// is left to the caller.
func (l *Ledger) Record(ctx context.Context, name string, score, total int, mode Mode) (HighScore, error) {
	hs := HighScore{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Score:     score,
		Total:     total,
		Mode:      mode,
		CreatedAt: l.now().UTC(),
	}

	promoted, err := l.store.Insert(ctx, hs)
	if err != nil {
		return HighScore{}, fmt.Errorf("record high score: %w", err)
	}

	if l.cache != nil {
		if err := l.cache.Invalidate(ctx, mode); err != nil {
			l.logger.Warn().Err(err).Str("mode", string(mode)).Msg("weekly cache invalidation failed")
		}
	}

	metrics.HighScoresRecorded.WithLabelValues(string(mode)).Inc()
	l.logger.Info().
		Str("id", hs.ID.String()).
		Str("mode", string(mode)).
		Int("score", score).
		Int("total", total).
		Bool("champion", promoted).
		Msg("high score recorded")

	l.publish(ctx, mode, hs.ID)
	return hs, nil
}

// WeeklyTop returns scores from the trailing window, excluding the all-time champion,
// ordered by percentage then most recent first.
func (l *Ledger) WeeklyTop(ctx context.Context, mode Mode, limit int) ([]HighScore, error) {
	if limit <= 0 {
		limit = defaultUpdateTop
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	cutoff := l.now().Add(-l.window)

	ranked, gen, ok := l.cachedWeekly(ctx, mode)
	if !ok {
		var err error
		ranked, err = l.rankWeekly(ctx, mode, cutoff)
		if err != nil {
			return nil, err
		}
		if gen >= 0 {
			if err := l.cache.Set(ctx, mode, gen, ranked); err != nil {
				l.logger.Warn().Err(err).Str("mode", string(mode)).Msg("weekly cache write failed")
			}
		}
	}

	out := make([]HighScore, 0, min(limit, len(ranked)))
	for _, hs := range ranked {
		if len(out) == limit {
			break
		}
		// Cached boards may outlive the window slightly.
		if hs.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, hs)
	}
	return out, nil
}

// AllTimeHigh returns the champion for mode, or nil when nothing has been recorded.
func (l *Ledger) AllTimeHigh(ctx context.Context, mode Mode) (*HighScore, error) {
	champ, err := l.store.Champion(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("load champion: %w", err)
	}
	return champ, nil
}

// Snapshot builds the update payload for mode.
func (l *Ledger) Snapshot(ctx context.Context, mode Mode) (Update, error) {
	top, err := l.WeeklyTop(ctx, mode, l.updateTop)
	if err != nil {
		return Update{}, err
	}
	champ, err := l.AllTimeHigh(ctx, mode)
	if err != nil {
		return Update{}, err
	}
	return Update{Mode: mode, Top: top, Champion: champ}, nil
}

func (l *Ledger) rankWeekly(ctx context.Context, mode Mode, cutoff time.Time) ([]HighScore, error) {
	rows, err := l.store.Since(ctx, mode, cutoff)
	if err != nil {
		return nil, fmt.Errorf("load weekly scores: %w", err)
	}
	champ, err := l.store.Champion(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("load champion: %w", err)
	}

	ranked := make([]HighScore, 0, len(rows))
	for _, hs := range rows {
		if champ != nil && hs.ID == champ.ID {
			continue
		}
		ranked = append(ranked, hs)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if c := comparePercent(ranked[i], ranked[j]); c != 0 {
			return c > 0
		}
		return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
	})
	if len(ranked) > MaxLimit {
		ranked = ranked[:MaxLimit]
	}
	return ranked, nil
}

// cachedWeekly returns gen -1 when the cache is absent or unreadable; the
// freshly ranked board is then not written back.
func (l *Ledger) cachedWeekly(ctx context.Context, mode Mode) ([]HighScore, int64, bool) {
	if l.cache == nil {
		return nil, -1, false
	}
	ranked, gen, ok, err := l.cache.Get(ctx, mode)
	if err != nil {
		l.logger.Warn().Err(err).Str("mode", string(mode)).Msg("weekly cache read failed")
		return nil, -1, false
	}
	return ranked, gen, ok
}

func (l *Ledger) publish(ctx context.Context, mode Mode, recorded uuid.UUID) {
	if l.publisher == nil {
		return
	}
	update, err := l.Snapshot(ctx, mode)
	if err != nil {
		l.logger.Warn().Err(err).Str("mode", string(mode)).Msg("failed to collect leaderboard update")
		return
	}
	update.RecordedID = recorded
	if err := l.publisher.Publish(ctx, update); err != nil {
		l.logger.Warn().Err(err).Msg("failed to publish leaderboard update")
	}
}
