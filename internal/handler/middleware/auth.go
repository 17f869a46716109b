package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"storefront/internal/handler/httperr"
	"storefront/internal/pkg/errs"
	"storefront/internal/pkg/identity"
	"storefront/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
)

const ctxIdentityKey = "identity"

type AuthMiddleware struct {
	jwtService *jwt.Service
}

func NewAuthMiddleware(jwtService *jwt.Service) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService}
}

// OptionalAuth resolves a bearer identity when one is presented and
// proceeds as guest otherwise. Checkout is guest-capable, so an invalid
// token downgrades to guest instead of rejecting the request.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := m.jwtService.ValidateToken(token)
		if err != nil {
			slog.Warn("bearer token rejected, continuing as guest", "error", err.Error())
			c.Next()
			return
		}

		c.Set(ctxIdentityKey, identity.Identity{
			UserID: claims.UserID,
			Email:  claims.Email,
		})
		c.Next()
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			httperr.AbortWithError(c, http.StatusUnauthorized,
				errs.New("missing bearer token"), "Access token required", nil)
			return
		}

		claims, err := m.jwtService.ValidateToken(token)
		if err != nil {
			slog.Warn("Token validation failed in auth middleware", "error", err.Error())
			httperr.AbortWithError(c, http.StatusUnauthorized, err, "Invalid access token", nil)
			return
		}

		c.Set(ctxIdentityKey, identity.Identity{
			UserID: claims.UserID,
			Email:  claims.Email,
		})
		c.Next()
	}
}

func GetIdentity(c *gin.Context) (*identity.Identity, bool) {
	value, exists := c.Get(ctxIdentityKey)
	if !exists {
		return nil, false
	}
	ident, ok := value.(identity.Identity)
	if !ok {
		return nil, false
	}
	return &ident, true
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[len("Bearer "):])
}
