package leaderboard

import (
	"math"
	"time"

	"github.com/google/uuid"

	ws "github.com/gokatarajesh/mortgage-trainer/pkg/http/ws"
)

func toWSEntry(rank int, hs HighScore) ws.LeaderboardEntry {
	return ws.LeaderboardEntry{
		Rank:       rank,
		ID:         hs.ID.String(),
		Name:       hs.Name,
		Score:      hs.Score,
		Total:      hs.Total,
		Percent:    math.Round(hs.Percent()*10) / 10,
		RecordedAt: hs.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toWSPayload(update Update) ws.LeaderboardUpdatePayload {
	payload := ws.LeaderboardUpdatePayload{
		Mode: string(update.Mode),
		Top:  make([]ws.LeaderboardEntry, len(update.Top)),
	}
	for i, hs := range update.Top {
		payload.Top[i] = toWSEntry(i+1, hs)
	}
	if update.Champion != nil {
		champ := toWSEntry(0, *update.Champion)
		payload.Champion = &champ
	}
	if update.RecordedID != uuid.Nil {
		payload.RecordedID = update.RecordedID.String()
	}
	return payload
}
