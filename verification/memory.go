package verification

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"sync"
	"time"
)

type memoryToken struct {
	accountID string
	purpose   Purpose
	expiresAt time.Time
	used      bool
}

// MemoryStore is an in-memory issuer/consumer with the same single-use
// semantics as the SQL store. For tests and local development.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]*memoryToken
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]*memoryToken), now: time.Now}
}

func (m *MemoryStore) Issue(_ context.Context, accountID string, purpose Purpose, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("verification: ttl must be positive")
	}
	buf := make([]byte, rawTokenBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[hashToken(raw)] = &memoryToken{
		accountID: accountID,
		purpose:   purpose,
		expiresAt: m.now().Add(ttl),
	}
	return raw, nil
}

func (m *MemoryStore) Consume(_ context.Context, raw string, purpose Purpose) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, ok := m.tokens[hashToken(raw)]
	if !ok || tok.used || tok.purpose != purpose || !m.now().Before(tok.expiresAt) {
		return "", ErrInvalidToken
	}
	tok.used = true
	return tok.accountID, nil
}
