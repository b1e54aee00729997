package auth

import (
	"context"
	"sync"
	"time"
)

var _ IdentityStore = (*MemoryStore)(nil)

// MemoryStore is an in-process IdentityStore used in tests and local runs
// without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*Identity
	byEmail map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[int64]*Identity),
		byEmail: make(map[string]int64),
	}
}

func (m *MemoryStore) FindByID(_ context.Context, id int64) (Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ident, ok := m.byID[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return *ident, nil
}

func (m *MemoryStore) FindByEmail(_ context.Context, email string) (Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return *m.byID[id], nil
}

func (m *MemoryStore) Create(_ context.Context, ident *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byEmail[ident.Email]; dup {
		return ErrAlreadyExists
	}
	m.nextID++
	ident.ID = m.nextID
	stored := *ident
	m.byID[stored.ID] = &stored
	m.byEmail[stored.Email] = stored.ID
	return nil
}

func (m *MemoryStore) UpdatePassword(_ context.Context, id int64, hash string) error {
	return m.mutate(id, func(i *Identity) { i.PasswordHash = hash })
}

func (m *MemoryStore) SetActive(_ context.Context, id int64, active bool) error {
	return m.mutate(id, func(i *Identity) { i.Active = active })
}

func (m *MemoryStore) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	return m.mutate(id, func(i *Identity) { i.LastLogin = &at })
}

func (m *MemoryStore) UpdateProfile(_ context.Context, id int64, upd ProfileUpdate) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ident, ok := m.byID[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	if upd.Email != nil && *upd.Email != ident.Email {
		if _, taken := m.byEmail[*upd.Email]; taken {
			return Identity{}, ErrAlreadyExists
		}
		delete(m.byEmail, ident.Email)
		ident.Email = *upd.Email
		m.byEmail[ident.Email] = id
	}
	if upd.FullName != nil {
		ident.FullName = *upd.FullName
	}
	if upd.NotifyEmail != nil {
		ident.NotifyEmail = *upd.NotifyEmail
	}
	if upd.NotifyPush != nil {
		ident.NotifyPush = *upd.NotifyPush
	}
	ident.UpdatedAt = time.Now().UTC()
	return *ident, nil
}

func (m *MemoryStore) mutate(id int64, fn func(*Identity)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ident, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	fn(ident)
	return nil
}
