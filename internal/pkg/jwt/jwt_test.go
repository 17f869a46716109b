//go:build unit

package jwt_test

import (
	"testing"
	"time"

	"storefront/internal/pkg/jwt"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	service := jwt.NewService("test-secret")
	userID := uuid.New()

	t.Run("round trip", func(t *testing.T) {
		token, err := service.GenerateToken(userID, "buyer@example.com", time.Hour)
		require.NoError(t, err)

		claims, err := service.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, userID, claims.UserID)
		assert.Equal(t, "buyer@example.com", claims.Email)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := service.GenerateToken(userID, "buyer@example.com", -time.Minute)
		require.NoError(t, err)

		_, err = service.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := jwt.NewService("other-secret")
		token, err := other.GenerateToken(userID, "buyer@example.com", time.Hour)
		require.NoError(t, err)

		_, err = service.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := service.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("nil user id rejected", func(t *testing.T) {
		token, err := service.GenerateToken(uuid.Nil, "buyer@example.com", time.Hour)
		require.NoError(t, err)

		_, err = service.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("unsigned token rejected", func(t *testing.T) {
		unsigned := gojwt.NewWithClaims(gojwt.SigningMethodNone, jwt.Claims{UserID: userID})
		token, err := unsigned.SignedString(gojwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = service.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})
}
