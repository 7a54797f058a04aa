package auth

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DENisProd/C0NSTRUCT0R/internal/models"
	"github.com/DENisProd/C0NSTRUCT0R/internal/ratelimit"
)

func newTestService(lifetime time.Duration) *Service {
	return NewService(nil, nil, "test-secret", lifetime, NewTOTP(nil, true, "Constructor"))
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newTestService(time.Hour)

	token, err := svc.CreateToken(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := newTestService(-time.Minute)

	token, err := svc.CreateToken(42)
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenWrongSecretRejected(t *testing.T) {
	token, err := newTestService(time.Hour).CreateToken(42)
	require.NoError(t, err)

	other := NewService(nil, nil, "other-secret", time.Hour, nil)
	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenGarbageRejected(t *testing.T) {
	svc := newTestService(time.Hour)

	for _, bad := range []string{"", "not-a-token", "a.b.c"} {
		_, err := svc.ParseToken(bad)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestRemainingLoginAttemptsWithoutLimiter(t *testing.T) {
	svc := newTestService(time.Hour)

	// Without a limiter the full budget is reported, matching the
	// fail-open login path.
	assert.Equal(t, ratelimit.DefaultLoginLimits().AccountLimit,
		svc.RemainingLoginAttempts(context.Background(), "a@b.c"))
}

func TestRequireLoginCode(t *testing.T) {
	gate := NewTOTP(nil, true, "Constructor")

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "Constructor", AccountName: "a@b.c"})
	require.NoError(t, err)
	secret := key.Secret()

	enrolled := &models.User{TOTPSecret: secret, TOTPEnabled: true}
	plain := &models.User{}

	assert.NoError(t, gate.RequireLoginCode(plain, ""),
		"accounts without totp log in without a code")

	assert.ErrorIs(t, gate.RequireLoginCode(enrolled, ""), ErrTOTPCodeRequired)
	assert.ErrorIs(t, gate.RequireLoginCode(enrolled, "000000"), ErrInvalidTOTPCode)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	assert.NoError(t, gate.RequireLoginCode(enrolled, code))

	disabled := NewTOTP(nil, false, "Constructor")
	assert.NoError(t, disabled.RequireLoginCode(enrolled, ""),
		"feature flag off bypasses the second factor")
}

func TestValidateCodeAcceptsAdjacentStep(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "Constructor", AccountName: "a@b.c"})
	require.NoError(t, err)
	secret := key.Secret()

	previous, err := totp.GenerateCode(secret, time.Now().Add(-30*time.Second))
	require.NoError(t, err)
	assert.True(t, validateCode(secret, previous))
}
