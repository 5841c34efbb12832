package auth

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// UserStore persists accounts. Emails are stored normalized and are unique.
type UserStore interface {
	Create(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetAdmin(ctx context.Context, id uuid.UUID, admin bool) error
	SetMarketingOptIn(ctx context.Context, id uuid.UUID, optIn bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]User, error)
	ListMarketingRecipients(ctx context.Context) ([]User, error)
}

// MemoryUserStore keeps accounts in process memory.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]User
	byEmail map[string]uuid.UUID
}

// NewMemoryUserStore creates an empty store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[uuid.UUID]User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (m *MemoryUserStore) Create(_ context.Context, user User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user.Email = NormalizeEmail(user.Email)
	if _, taken := m.byEmail[user.Email]; taken {
		return User{}, ErrEmailTaken
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	m.byID[user.ID] = user
	m.byEmail[user.Email] = user.ID
	return user, nil
}

func (m *MemoryUserStore) GetByID(_ context.Context, id uuid.UUID) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *MemoryUserStore) GetByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return m.byID[id], nil
}

func (m *MemoryUserStore) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	return m.update(id, func(u *User) { u.PasswordHash = &passwordHash })
}

func (m *MemoryUserStore) SetAdmin(_ context.Context, id uuid.UUID, admin bool) error {
	return m.update(id, func(u *User) { u.IsAdmin = admin })
}

func (m *MemoryUserStore) SetMarketingOptIn(_ context.Context, id uuid.UUID, optIn bool) error {
	return m.update(id, func(u *User) { u.MarketingOptIn = optIn })
}

func (m *MemoryUserStore) update(id uuid.UUID, fn func(*User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	fn(&u)
	m.byID[id] = u
	return nil
}

func (m *MemoryUserStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(m.byID, id)
	delete(m.byEmail, u.Email)
	return nil
}

func (m *MemoryUserStore) List(_ context.Context, limit, offset int) ([]User, error) {
	m.mu.RLock()
	all := make([]User, 0, len(m.byID))
	for _, u := range m.byID {
		all = append(all, u)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if offset >= len(all) {
		return []User{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryUserStore) ListMarketingRecipients(_ context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]User, 0)
	for _, u := range m.byID {
		if u.MarketingOptIn {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}
