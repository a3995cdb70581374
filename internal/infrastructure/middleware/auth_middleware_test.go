package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tempvoice/internal/core/services"
	"tempvoice/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(auth services.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	admin := router.Group("/admin", AuthMiddleware(auth), RequireRole(auth, services.RoleAdmin))
	admin.POST("/reload", func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, claims.Subject)
	})
	return router
}

func TestAuthMiddleware(t *testing.T) {
	auth := services.NewAuthService("secret", "tempvoice", time.Hour)
	router := newAuthRouter(auth)

	adminToken, err := auth.GenerateToken("ops", services.RoleAdmin)
	require.NoError(t, err)
	bridgeToken, err := auth.GenerateToken("gateway", services.RoleBridge)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "insufficient role", header: "Bearer " + bridgeToken, status: http.StatusForbidden},
		{name: "admin", header: "Bearer " + adminToken, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/reload", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			switch tt.status {
			case http.StatusOK:
				assert.Equal(t, "ops", w.Body.String())
			case http.StatusUnauthorized:
				assert.Contains(t, w.Body.String(), string(errors.ErrCodeUnauthorized))
			case http.StatusForbidden:
				assert.Contains(t, w.Body.String(), `"required_role":"admin"`)
			}
		})
	}
}
