package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokensRequiresSecret(t *testing.T) {
	_, err := NewTokens("", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestTokensIssueAndParse(t *testing.T) {
	tokens, err := NewTokens("secret", time.Hour)
	require.NoError(t, err)

	signed, expires, err := tokens.Issue("sess-1", "42")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.ID)
	assert.Equal(t, "42", claims.Subject)
}

func TestTokensRejectsWrongSecret(t *testing.T) {
	a, _ := NewTokens("secret-a", time.Hour)
	b, _ := NewTokens("secret-b", time.Hour)

	signed, _, err := a.Issue("sess-1", "42")
	require.NoError(t, err)

	_, err = b.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensRejectsExpired(t *testing.T) {
	tokens, _ := NewTokens("secret", time.Minute)
	tokens.now = func() time.Time { return time.Now().Add(-time.Hour) }
	signed, _, err := tokens.Issue("sess-1", "42")
	require.NoError(t, err)

	tokens.now = time.Now
	_, err = tokens.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensRejectsNoneAlgorithm(t *testing.T) {
	tokens, _ := NewTokens("secret", time.Hour)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Issuer: issuer, ID: "sess-1", Subject: "42"})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tokens.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensRejectsMissingSessionID(t *testing.T) {
	tokens, _ := NewTokens("secret", time.Hour)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Issuer:    issuer,
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = tokens.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
