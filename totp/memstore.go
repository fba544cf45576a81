package totp

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory CredentialStore for tests.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]*Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]*Credential)}
}

func (m *MemoryStore) Get(_ context.Context, accountID string) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cred, ok := m.creds[accountID]
	if !ok {
		return nil, ErrNotConfigured
	}
	cp := *cred
	cp.BackupHashes = append([][32]byte(nil), cred.BackupHashes...)
	return &cp, nil
}

func (m *MemoryStore) Upsert(_ context.Context, cred *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cred
	cp.BackupHashes = append([][32]byte(nil), cred.BackupHashes...)
	m.creds[cred.AccountID] = &cp
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, accountID)
	return nil
}
