package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessSecret:  []byte("access-secret-0123456789abcdef-0123456789abcdef"),
		RefreshSecret: []byte("refresh-secret-0123456789abcdef-0123456789abcdef"),
		AccessTTL:     15 * time.Minute,
		Temp2FATTL:    5 * time.Minute,
		Issuer:        "authcore-test",
		Audience:      "harborgate",
	})
	require.NoError(t, err)
	return m
}

func TestNewManagerRejectsSharedSecret(t *testing.T) {
	shared := []byte("shared-secret-0123456789abcdef-0123456789abcdef")
	_, err := NewManager(Config{
		AccessSecret:  shared,
		RefreshSecret: shared,
		AccessTTL:     time.Minute,
	})
	require.Error(t, err)
}

func TestIssuePairRoundTrip(t *testing.T) {
	m := testManager(t)

	pair, err := m.IssuePair("acct-1", "dev-1", "sess-1", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, pair.RefreshJTI)

	access, err := m.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "acct-1", access.AccountID)
	require.Equal(t, "dev-1", access.DeviceID)
	require.Equal(t, "sess-1", access.SessionID)
	require.Equal(t, KindAccess, access.Kind)

	refresh, err := m.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, pair.RefreshJTI, refresh.ID)
	require.Equal(t, KindRefresh, refresh.Kind)
	require.NotEqual(t, access.ID, refresh.ID)
}

func TestVerifyRejectsCrossKind(t *testing.T) {
	m := testManager(t)

	pair, err := m.IssuePair("acct-1", "dev-1", "sess-1", time.Hour)
	require.NoError(t, err)

	_, err = m.VerifyRefresh(pair.AccessToken)
	require.ErrorIs(t, err, ErrWrongKind)

	_, err = m.VerifyAccess(pair.RefreshToken)
	require.ErrorIs(t, err, ErrWrongKind)
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := testManager(t)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }

	pair, err := m.IssuePair("acct-1", "dev-1", "sess-1", 30*time.Minute)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.VerifyAccess(pair.AccessToken)
	require.ErrorIs(t, err, ErrExpired)
	_, err = m.VerifyRefresh(pair.RefreshToken)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := testManager(t)

	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := m.VerifyAccess(tok)
		require.ErrorIs(t, err, ErrMalformed, "token %q", tok)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	m := testManager(t)

	pair, err := m.IssuePair("acct-1", "dev-1", "sess-1", time.Hour)
	require.NoError(t, err)

	tampered := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
	_, err = m.VerifyAccess(tampered)
	require.Error(t, err)
}

func TestTemp2FATokenIsNotAnAccessToken(t *testing.T) {
	m := testManager(t)

	tok, ttl, err := m.IssueTemp2FA("acct-1")
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, ttl)

	claims, err := m.VerifyTemp2FA(tok)
	require.NoError(t, err)
	require.Equal(t, "acct-1", claims.AccountID)
	require.True(t, claims.Temp2FA)

	_, err = m.VerifyAccess(tok)
	require.ErrorIs(t, err, ErrWrongKind)
	_, err = m.VerifyRefresh(tok)
	require.ErrorIs(t, err, ErrWrongKind)
}

func TestVerifyEnforcesIssuer(t *testing.T) {
	m := testManager(t)
	other, err := NewManager(Config{
		AccessSecret:  []byte("access-secret-0123456789abcdef-0123456789abcdef"),
		RefreshSecret: []byte("refresh-secret-0123456789abcdef-0123456789abcdef"),
		AccessTTL:     15 * time.Minute,
		Issuer:        "someone-else",
	})
	require.NoError(t, err)

	pair, err := other.IssuePair("acct-1", "dev-1", "sess-1", time.Hour)
	require.NoError(t, err)

	_, err = m.VerifyAccess(pair.AccessToken)
	require.ErrorIs(t, err, ErrMalformed)
}
