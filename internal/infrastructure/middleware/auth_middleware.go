package middleware

import (
	"strings"

	"tempvoice/internal/core/services"
	"tempvoice/pkg/errors"

	"github.com/gin-gonic/gin"
)

const (
	claimsKey  = "claims"
	subjectKey = "subject"
)

func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWith(c, errors.NewUnauthorizedError("authorization header required"))
			return
		}

		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || token == "" || strings.Contains(token, " ") {
			abortWith(c, errors.NewUnauthorizedError("invalid authorization header format"))
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			abortWith(c, errors.WrapError(err, errors.ErrCodeUnauthorized, "invalid token", 401))
			return
		}

		c.Set(claimsKey, claims)
		c.Set(subjectKey, claims.Subject)
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(authService services.AuthService, role services.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			abortWith(c, errors.NewUnauthorizedError("authentication required"))
			return
		}

		if err := authService.RequireRole(claims, role); err != nil {
			abortWith(c, errors.NewForbiddenError("insufficient permissions").WithContext("required_role", string(role)))
			return
		}
		c.Next()
	}
}

// ClaimsFromContext returns the claims stored by AuthMiddleware.
func ClaimsFromContext(c *gin.Context) (*services.Claims, bool) {
	v, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*services.Claims)
	return claims, ok
}
