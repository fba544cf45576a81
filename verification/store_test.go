package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueConsumeRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	raw, err := store.Issue(ctx, "acct-1", PurposeEmailVerify, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	accountID, err := store.Consume(ctx, raw, PurposeEmailVerify)
	require.NoError(t, err)
	require.Equal(t, "acct-1", accountID)
}

func TestConsumeIsSingleUse(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	raw, err := store.Issue(ctx, "acct-1", PurposePasswordReset, time.Hour)
	require.NoError(t, err)

	_, err = store.Consume(ctx, raw, PurposePasswordReset)
	require.NoError(t, err)

	_, err = store.Consume(ctx, raw, PurposePasswordReset)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestConsumeEnforcesPurpose(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	raw, err := store.Issue(ctx, "acct-1", PurposeEmailVerify, time.Hour)
	require.NoError(t, err)

	_, err = store.Consume(ctx, raw, PurposePasswordReset)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestConsumeRejectsExpiredToken(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	raw, err := store.Issue(ctx, "acct-1", PurposeEmailVerify, time.Minute)
	require.NoError(t, err)

	store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = store.Consume(ctx, raw, PurposeEmailVerify)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestConsumeRejectsUnknownToken(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Consume(context.Background(), "never-issued", PurposeEmailVerify)
	require.ErrorIs(t, err, ErrInvalidToken)
}
