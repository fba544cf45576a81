package authcore

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryAccounts is an in-memory AccountProvider for tests and local
// development. Production deployments point the builder at the account
// service instead.
type MemoryAccounts struct {
	mu      sync.RWMutex
	byID    map[string]*Account
	byEmail map[string]string
}

func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{
		byID:    make(map[string]*Account),
		byEmail: make(map[string]string),
	}
}

// Put inserts or replaces an account.
func (m *MemoryAccounts) Put(acct *Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *acct
	m.byID[cp.ID] = &cp
	m.byEmail[strings.ToLower(cp.Email)] = cp.ID
}

func (m *MemoryAccounts) GetByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *MemoryAccounts) GetByID(_ context.Context, id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acct, ok := m.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *acct
	return &cp, nil
}

func (m *MemoryAccounts) UpdatePasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	acct.PasswordHash = hash
	acct.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryAccounts) UpdateStatus(_ context.Context, id string, status AccountStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	acct.Status = status
	acct.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryAccounts) MarkEmailVerified(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	acct.EmailVerified = true
	acct.UpdatedAt = time.Now().UTC()
	return nil
}
