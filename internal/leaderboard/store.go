package leaderboard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists high scores and the per-mode champion.
type Store interface {
	// Insert appends hs and, in the same atomic step, makes it the champion of its
	// mode when it beats the current one. It reports whether hs became champion.
	Insert(ctx context.Context, hs HighScore) (bool, error)
	// Since returns every score for mode recorded at or after since.
	Since(ctx context.Context, mode Mode, since time.Time) ([]HighScore, error)
	// Champion returns the all-time high for mode, or nil.
	Champion(ctx context.Context, mode Mode) (*HighScore, error)
}

// MemoryStore keeps scores in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	scores    []HighScore
	champions map[Mode]uuid.UUID
	byID      map[uuid.UUID]int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		champions: make(map[Mode]uuid.UUID),
		byID:      make(map[uuid.UUID]int),
	}
}

func (m *MemoryStore) Insert(_ context.Context, hs HighScore) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byID[hs.ID] = len(m.scores)
	m.scores = append(m.scores, hs)

	if !hs.Beats(m.championLocked(hs.Mode)) {
		return false, nil
	}
	m.champions[hs.Mode] = hs.ID
	return true, nil
}

func (m *MemoryStore) Since(_ context.Context, mode Mode, since time.Time) ([]HighScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]HighScore, 0)
	for _, hs := range m.scores {
		if hs.Mode == mode && !hs.CreatedAt.Before(since) {
			out = append(out, hs)
		}
	}
	return out, nil
}

func (m *MemoryStore) Champion(_ context.Context, mode Mode) (*HighScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.championLocked(mode), nil
}

func (m *MemoryStore) championLocked(mode Mode) *HighScore {
	id, ok := m.champions[mode]
	if !ok {
		return nil
	}
	hs := m.scores[m.byID[id]]
	return &hs
}
