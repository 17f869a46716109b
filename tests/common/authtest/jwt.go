//go:build unit || e2e

package authtest

import (
	"testing"
	"time"

	"storefront/internal/pkg/config"
	"storefront/internal/pkg/jwt"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type JWTHelper struct {
	cfg config.JWTConfig
}

func NewJWTHelper(cfg config.JWTConfig) *JWTHelper {
	return &JWTHelper{cfg: cfg}
}

func (h *JWTHelper) GenerateToken(t *testing.T, userID uuid.UUID, email string) string {
	t.Helper()
	service := jwt.NewService(h.cfg.Secret)
	token, err := service.GenerateToken(userID, email, time.Hour)
	require.NoError(t, err)
	return token
}

func (h *JWTHelper) CreateExpiredToken(t *testing.T, userID uuid.UUID, email string) string {
	t.Helper()
	service := jwt.NewService(h.cfg.Secret)
	token, err := service.GenerateToken(userID, email, 1*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	return token
}
