package http

import (
	"net/http"
	"strings"

	"tempvoice/internal/core/services"
	"tempvoice/pkg/errors"

	"github.com/gin-gonic/gin"
)

// TokenHandler mints bearer tokens for bridges and operators.
type TokenHandler struct {
	authService services.AuthService
}

func NewTokenHandler(authService services.AuthService) *TokenHandler {
	return &TokenHandler{authService: authService}
}

func (h *TokenHandler) SetupRoutes(admin *gin.RouterGroup) {
	admin.POST("/tokens", h.IssueToken)
}

type IssueTokenRequest struct {
	Subject string        `json:"subject" binding:"required,max=128"`
	Role    services.Role `json:"role" binding:"required"`
}

func (h *TokenHandler) IssueToken(c *gin.Context) {
	var req IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.Subject = strings.TrimSpace(req.Subject)
	switch req.Role {
	case services.RoleBridge, services.RoleOperator, services.RoleAdmin:
	default:
		c.Error(errors.NewInvalidInputError("role must be bridge, operator or admin"))
		return
	}
	if req.Subject == "" {
		c.Error(errors.NewInvalidInputError("subject must not be empty"))
		return
	}

	token, err := h.authService.GenerateToken(req.Subject, req.Role)
	if err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to generate token", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token":   token,
		"subject": req.Subject,
		"role":    req.Role,
	})
}
