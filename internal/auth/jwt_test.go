package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-at-least-32-chars!"

func TestValidateAccessToken_Valid(t *testing.T) {
	token, err := SignAccessToken(testSecret, "user-1", "customer", time.Minute)
	require.NoError(t, err)

	claims, err := NewJWTValidator(testSecret).ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "customer", claims.Role)
}

func TestValidateAccessToken_Rejects(t *testing.T) {
	v := NewJWTValidator(testSecret)

	expired, err := SignAccessToken(testSecret, "user-1", "customer", -time.Minute)
	require.NoError(t, err)
	wrongKey, err := SignAccessToken("another-secret-another-secret-1234", "user-1", "customer", time.Minute)
	require.NoError(t, err)
	noUser, err := SignAccessToken(testSecret, "", "customer", time.Minute)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: "user-1"}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "user-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":    expired,
		"wrong key":  wrongKey,
		"no user id": noUser,
		"no expiry":  noExpiry,
		"none alg":   noneAlg,
		"garbage":    "not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.ValidateAccessToken(token)
			assert.Error(t, err)
		})
	}
}

func TestMiddlewareAdapter(t *testing.T) {
	token, err := SignAccessToken(testSecret, "user-9", "admin", time.Minute)
	require.NoError(t, err)

	claims, err := NewJWTValidator(testSecret).Middleware(token)
	require.NoError(t, err)
	assert.Equal(t, "user-9", claims.OwnerID)
	assert.Equal(t, "admin", claims.Role)

	_, err = NewJWTValidator(testSecret).Middleware("bad")
	assert.Error(t, err)
}
