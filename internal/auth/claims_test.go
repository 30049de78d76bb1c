package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestVerify_AcceptsValidToken(t *testing.T) {
	v := NewVerifier("shh", "eventcore")
	raw := signToken(t, "shh", Claims{
		UserID:   "u1",
		TenantID: "t1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "eventcore",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := v.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "t1", claims.TenantID)
}

func TestVerify_RejectsEmptyToken(t *testing.T) {
	v := NewVerifier("shh", "eventcore")
	_, err := v.Verify("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	v := NewVerifier("shh", "eventcore")
	raw := signToken(t, "other", Claims{UserID: "u1", TenantID: "t1"})
	_, err := v.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsMissingTenant(t *testing.T) {
	v := NewVerifier("shh", "eventcore")
	raw := signToken(t, "shh", Claims{UserID: "u1"})
	_, err := v.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestFromAuthorizationHeader(t *testing.T) {
	assert.Equal(t, "abc", FromAuthorizationHeader("Bearer abc"))
	assert.Equal(t, "", FromAuthorizationHeader("abc"))
	assert.Equal(t, "", FromAuthorizationHeader(""))
}
