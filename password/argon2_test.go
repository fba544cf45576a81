package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	require.NoError(t, err)
	return h
}

func TestHashVerifyRoundTrip(t *testing.T) {
	h := testHasher(t)

	encoded, err := h.Hash("correct-horse-battery")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	ok, err := h.Verify("correct-horse-battery", encoded)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.Verify("wrong-horse-battery", encoded)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashRejectsShortPassword(t *testing.T) {
	h := testHasher(t)
	_, err := h.Hash("short")
	require.Error(t, err)
}

func TestHashIsSalted(t *testing.T) {
	h := testHasher(t)

	a, err := h.Hash("correct-horse-battery")
	require.NoError(t, err)
	b, err := h.Hash("correct-horse-battery")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestVerifyRejectsMalformedEncodings(t *testing.T) {
	h := testHasher(t)

	for _, encoded := range []string{
		"",
		"not-a-phc-string",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
	} {
		_, err := h.Verify("whatever-password", encoded)
		require.Error(t, err, "encoding %q", encoded)
	}
}

func TestNeedsRehash(t *testing.T) {
	weak := testHasher(t)
	encoded, err := weak.Hash("correct-horse-battery")
	require.NoError(t, err)

	same, err := weak.NeedsRehash(encoded)
	require.NoError(t, err)
	require.False(t, same)

	strong, err := NewHasher(Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	})
	require.NoError(t, err)

	upgrade, err := strong.NeedsRehash(encoded)
	require.NoError(t, err)
	require.True(t, upgrade)
}
