package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory DurableStore for tests and local
// development. It applies the same semantics as the SQL store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Insert(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) ListActive(_ context.Context, accountID string, now time.Time) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Session
	for _, s := range m.sessions {
		if s.AccountID == accountID && s.Active(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActiveAt.After(out[j].LastActiveAt)
	})
	return out, nil
}

func (m *MemoryStore) ListCreatedSince(_ context.Context, accountID string, since time.Time) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Session
	for _, s := range m.sessions {
		if s.AccountID == accountID && !s.CreatedAt.Before(since) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.LastActiveAt = at
	}
	return nil
}

func (m *MemoryStore) Revoke(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.RevokedAt != nil {
		return ErrNotFound
	}
	t := at
	s.RevokedAt = &t
	return nil
}

func (m *MemoryStore) RevokeAll(_ context.Context, accountID, exceptID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	revoked := 0
	for _, s := range m.sessions {
		if s.AccountID == accountID && s.ID != exceptID && s.Active(at) {
			t := at
			s.RevokedAt = &t
			revoked++
		}
	}
	return revoked, nil
}
