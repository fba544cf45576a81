package totp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

// Mid-step instant (unix time ≡ 15 mod 30) so second offsets translate
// to whole TOTP steps deterministically.
var testNow = time.Unix(1735689615, 0).UTC()

func testEngine(t *testing.T) (*Engine, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	engine := NewEngine(store, Config{Issuer: "authcore-test"})
	engine.now = func() time.Time { return testNow }
	return engine, store
}

func enabledEngine(t *testing.T) (*Engine, *Provision) {
	t.Helper()
	engine, _ := testEngine(t)

	prov, err := engine.Setup(context.Background(), "acct-1", "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, engine.Enable(context.Background(), "acct-1", codeAt(t, prov.Secret, testNow)))
	return engine, prov
}

func flipDigit(code string) string {
	if code[0] == '0' {
		return "1" + code[1:]
	}
	return "0" + code[1:]
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func TestSetupProvisionsPendingCredential(t *testing.T) {
	engine, store := testEngine(t)

	prov, err := engine.Setup(context.Background(), "acct-1", "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, prov.Secret)
	require.True(t, strings.HasPrefix(prov.URI, "otpauth://totp/"))
	require.Len(t, prov.BackupCodes, 10)
	for _, code := range prov.BackupCodes {
		require.Len(t, code, 8)
	}

	cred, err := store.Get(context.Background(), "acct-1")
	require.NoError(t, err)
	require.False(t, cred.Enabled)

	enabled, remaining, err := engine.Status(context.Background(), "acct-1")
	require.NoError(t, err)
	require.False(t, enabled)
	require.Equal(t, 10, remaining)
}

func TestEnableRequiresValidCode(t *testing.T) {
	engine, _ := testEngine(t)
	ctx := context.Background()

	prov, err := engine.Setup(ctx, "acct-1", "alice@example.com")
	require.NoError(t, err)

	valid := codeAt(t, prov.Secret, testNow)
	invalid := flipDigit(valid)
	require.ErrorIs(t, engine.Enable(ctx, "acct-1", invalid), ErrInvalidCode)
	require.NoError(t, engine.Enable(ctx, "acct-1", codeAt(t, prov.Secret, testNow)))
	require.ErrorIs(t, engine.Enable(ctx, "acct-1", codeAt(t, prov.Secret, testNow)), ErrAlreadyEnabled)
}

func TestSetupRejectedWhenAlreadyEnabled(t *testing.T) {
	engine, _ := enabledEngine(t)
	_, err := engine.Setup(context.Background(), "acct-1", "alice@example.com")
	require.ErrorIs(t, err, ErrAlreadyEnabled)
}

func TestConsumeAcceptsCodesInsideSkewWindow(t *testing.T) {
	engine, prov := enabledEngine(t)
	ctx := context.Background()

	for _, offset := range []time.Duration{0, 59 * time.Second, -59 * time.Second} {
		res, err := engine.Consume(ctx, "acct-1", codeAt(t, prov.Secret, testNow.Add(offset)))
		require.NoError(t, err, "offset %s", offset)
		require.Equal(t, MethodTOTP, res.Method)
	}
}

func TestConsumeRejectsCodesOutsideSkewWindow(t *testing.T) {
	engine, prov := enabledEngine(t)
	ctx := context.Background()

	for _, offset := range []time.Duration{90 * time.Second, -90 * time.Second} {
		_, err := engine.Consume(ctx, "acct-1", codeAt(t, prov.Secret, testNow.Add(offset)))
		require.ErrorIs(t, err, ErrInvalidCode, "offset %s", offset)
	}
}

func TestConsumeRequiresEnabledCredential(t *testing.T) {
	engine, _ := testEngine(t)
	ctx := context.Background()

	_, err := engine.Consume(ctx, "acct-1", "123456")
	require.ErrorIs(t, err, ErrNotConfigured)

	prov, err := engine.Setup(ctx, "acct-1", "alice@example.com")
	require.NoError(t, err)
	_, err = engine.Consume(ctx, "acct-1", codeAt(t, prov.Secret, testNow))
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestBackupCodeIsSingleUse(t *testing.T) {
	engine, prov := enabledEngine(t)
	ctx := context.Background()

	res, err := engine.Consume(ctx, "acct-1", prov.BackupCodes[0])
	require.NoError(t, err)
	require.Equal(t, MethodBackup, res.Method)
	require.Equal(t, 9, res.RemainingBackupCodes)

	_, err = engine.Consume(ctx, "acct-1", prov.BackupCodes[0])
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestBackupCodeMatchingNormalizesCase(t *testing.T) {
	engine, prov := enabledEngine(t)

	lowered := "  " + strings.ToLower(prov.BackupCodes[3]) + " "
	res, err := engine.Consume(context.Background(), "acct-1", lowered)
	require.NoError(t, err)
	require.Equal(t, MethodBackup, res.Method)
}

func TestBackupCodesExhausted(t *testing.T) {
	engine, prov := enabledEngine(t)
	ctx := context.Background()

	for _, code := range prov.BackupCodes {
		_, err := engine.Consume(ctx, "acct-1", code)
		require.NoError(t, err)
	}

	_, err := engine.Consume(ctx, "acct-1", "AAAAAAAA")
	require.ErrorIs(t, err, ErrBackupCodesExhausted)

	// A short garbage code is just invalid, not "exhausted".
	_, err = engine.Consume(ctx, "acct-1", "000000")
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestRegenerateReplacesWholeSet(t *testing.T) {
	engine, prov := enabledEngine(t)
	ctx := context.Background()

	// Burn one old code so the old set is partially consumed.
	_, err := engine.Consume(ctx, "acct-1", prov.BackupCodes[0])
	require.NoError(t, err)

	_, err = engine.Regenerate(ctx, "acct-1", prov.BackupCodes[1])
	require.ErrorIs(t, err, ErrInvalidCode, "backup codes must not authorize regeneration")

	fresh, err := engine.Regenerate(ctx, "acct-1", codeAt(t, prov.Secret, testNow))
	require.NoError(t, err)
	require.Len(t, fresh, 10)

	_, err = engine.Consume(ctx, "acct-1", prov.BackupCodes[2])
	require.ErrorIs(t, err, ErrInvalidCode, "old codes must be dead after regeneration")

	res, err := engine.Consume(ctx, "acct-1", fresh[0])
	require.NoError(t, err)
	require.Equal(t, 9, res.RemainingBackupCodes)
}

func TestDisableAcceptsBackupCodeAndDeletesCredential(t *testing.T) {
	engine, prov := enabledEngine(t)
	ctx := context.Background()

	require.ErrorIs(t, engine.Disable(ctx, "acct-1", "WRONGCODE"), ErrInvalidCode)
	require.NoError(t, engine.Disable(ctx, "acct-1", prov.BackupCodes[0]))

	enabled, _, err := engine.Status(ctx, "acct-1")
	require.NoError(t, err)
	require.False(t, enabled)
}
