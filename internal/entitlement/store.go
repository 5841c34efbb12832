package entitlement

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Store persists access tokens. Implementations must enforce one token per payment intent.
type Store interface {
	// Create inserts token unless its payment intent already has one. It returns
	// the stored row and whether it was newly created.
	Create(ctx context.Context, token AccessToken) (AccessToken, bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]AccessToken, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

// MemoryStore keeps tokens in process memory.
type MemoryStore struct {
	mu              sync.RWMutex
	byPaymentIntent map[string]AccessToken
}

// NewMemoryStore creates an empty in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byPaymentIntent: make(map[string]AccessToken)}
}

func (m *MemoryStore) Create(_ context.Context, token AccessToken) (AccessToken, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byPaymentIntent[token.PaymentIntentID]; ok {
		return existing, false, nil
	}
	m.byPaymentIntent[token.PaymentIntentID] = token
	return token, true, nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID uuid.UUID) ([]AccessToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]AccessToken, 0)
	for _, t := range m.byPaymentIntent {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) DeleteByUser(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for pi, t := range m.byPaymentIntent {
		if t.UserID == userID {
			delete(m.byPaymentIntent, pi)
		}
	}
	return nil
}
