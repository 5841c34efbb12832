package leaderboard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mode is a leaderboard-eligible quiz mode.
type Mode string

// Leaderboard modes.
const (
	ModeExam     Mode = "exam"
	ModeScenario Mode = "scenario"
)

// Modes lists every leaderboard mode.
func Modes() []Mode {
	return []Mode{ModeExam, ModeScenario}
}

var ErrUnknownMode = errors.New("mode must be exam or scenario")

// ParseMode validates a raw leaderboard mode.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeExam, ModeScenario:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, raw)
	}
}

// HighScore is one recorded quiz result. It is never mutated after insert.
type HighScore struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	Total     int       `json:"total"`
	Mode      Mode      `json:"mode"`
	CreatedAt time.Time `json:"timestamp"`
}

// ratio returns score/total as an exact fraction. A non-positive total counts as 0%.
func (h HighScore) ratio() (num, den int64) {
	if h.Total <= 0 {
		return 0, 1
	}
	return int64(h.Score), int64(h.Total)
}

// Percent returns the score as a percentage for display.
func (h HighScore) Percent() float64 {
	num, den := h.ratio()
	return float64(num) * 100 / float64(den)
}

// comparePercent returns -1, 0 or 1 as a's percentage is below, equal to or above b's.
func comparePercent(a, b HighScore) int {
	an, ad := a.ratio()
	bn, bd := b.ratio()
	left, right := an*bd, bn*ad
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	default:
		return 0
	}
}

// Beats reports whether h strictly outranks champion. Ties keep the existing champion.
func (h HighScore) Beats(champion *HighScore) bool {
	return champion == nil || comparePercent(h, *champion) > 0
}

// Update is published after every recorded score.
type Update struct {
	Mode       Mode        `json:"mode"`
	Top        []HighScore `json:"top"`
	Champion   *HighScore  `json:"champion"`
	RecordedID uuid.UUID   `json:"recorded_id"`
}
