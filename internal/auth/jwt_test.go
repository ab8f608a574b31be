package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-16-chars!!"

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)
	return ts
}

// parseClaims reads a token's claims without validating it.
func parseClaims(t *testing.T, token string) *jwt.RegisteredClaims {
	t.Helper()
	var c jwt.RegisteredClaims
	_, _, err := jwt.NewParser().ParseUnverified(token, &c)
	require.NoError(t, err)
	return &c
}

// signed builds an HS256 token from arbitrary claims with the test secret.
func signed(t *testing.T, c jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestNewTokenService(t *testing.T) {
	_, err := NewTokenService("short", 0)
	assert.Error(t, err, "session secrets under 16 characters are rejected")

	ts, err := NewTokenService("this-is-16-chars", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultSessionTTL, ts.TTL(), "zero TTL falls back to the 7-day session")

	ts, err = NewTokenService("this-is-16-chars", 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, ts.TTL())
}

func TestGenerate_SessionClaims(t *testing.T) {
	ts := newTestTokenService(t)
	before := time.Now().Add(-time.Second)

	token, err := ts.Generate("c5u1abcdef")
	require.NoError(t, err)

	c := parseClaims(t, token)
	assert.Equal(t, "c5u1abcdef", c.Subject)
	assert.Equal(t, "evergreeners", c.Issuer)
	_, err = uuid.Parse(c.ID)
	assert.NoError(t, err, "jti must be a UUID")

	// The session cookie's MaxAge is TTL(), so the token must expire with it.
	require.NotNil(t, c.ExpiresAt)
	require.NotNil(t, c.IssuedAt)
	assert.WithinDuration(t, c.IssuedAt.Add(ts.TTL()), c.ExpiresAt.Time, time.Second)
	assert.True(t, c.IssuedAt.After(before))
}

func TestGenerate_EveryLoginIsANewSession(t *testing.T) {
	ts := newTestTokenService(t)

	seen := make(map[string]bool)
	for range 20 {
		token, err := ts.Generate("c5u1abcdef")
		require.NoError(t, err)
		jti := parseClaims(t, token).ID
		assert.False(t, seen[jti], "jti reused: %s", jti)
		seen[jti] = true
	}
}

func TestGenerate_RequiresUserID(t *testing.T) {
	_, err := newTestTokenService(t).Generate("")
	assert.Error(t, err)
}

func TestValidate_ReturnsUserID(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("c5u1abcdef")
	require.NoError(t, err)

	got, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "c5u1abcdef", got)
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	now := time.Now()

	valid, err := ts.Generate("c5u1abcdef")
	require.NoError(t, err)
	expired, err := ts.GenerateWithDuration("c5u1abcdef", -time.Second)
	require.NoError(t, err)

	other, err := NewTokenService("another-secret-of-16+", 0)
	require.NoError(t, err)
	foreign, err := other.Generate("c5u1abcdef")
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "c5u1abcdef",
		Issuer:    "evergreeners",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt.token"},
		{"tampered signature", valid[:len(valid)-3] + "xxx"},
		{"expired session", expired},
		{"signed with another secret", foreign},
		{"alg none", unsigned},
		{"issued by another app", signed(t, jwt.RegisteredClaims{
			Subject:   "c5u1abcdef",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		})},
		{"no expiry", signed(t, jwt.RegisteredClaims{
			Subject: "c5u1abcdef",
			Issuer:  "evergreeners",
		})},
		{"no subject", signed(t, jwt.RegisteredClaims{
			Issuer:    "evergreeners",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID, err := ts.Validate(tt.token)
			assert.Error(t, err)
			assert.Empty(t, userID)
		})
	}
}
