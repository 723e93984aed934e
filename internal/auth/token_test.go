package auth

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/gstbill/internal/clock"
	"github.com/smallbiznis/gstbill/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, clk clock.Clock) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(config.Config{AuthJWTSecret: "test-secret", Environment: "test"}, clk)
	require.NoError(t, err)
	return m
}

func TestIssueAndVerify(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC))
	m := newManager(t, fake)

	token, err := m.Issue(snowflake.ID(1001), time.Hour)
	require.NoError(t, err)

	userID, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(1001), userID)

	fake.Advance(2 * time.Hour)
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	m := newManager(t, nil)

	other, err := NewTokenManager(config.Config{AuthJWTSecret: "other-secret"}, nil)
	require.NoError(t, err)
	token, err := other.Issue(snowflake.ID(5), time.Hour)
	require.NoError(t, err)
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "5",
		Issuer:    DefaultIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    DefaultIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = m.Verify(noSubject)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMissingSecretInProduction(t *testing.T) {
	_, err := NewTokenManager(config.Config{Environment: "production"}, nil)
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = newManager(t, nil).Issue(0, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidUser)
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", token)

	for _, header := range []string{"", "abc", "Basic abc", "Bearer "} {
		_, ok := BearerToken(header)
		assert.False(t, ok, header)
	}
}
