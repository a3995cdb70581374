package http

import (
	"context"
	"net/http"

	"tempvoice/internal/core/domain"
	"tempvoice/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PolicyStore is the reloadable guild configuration.
type PolicyStore interface {
	Snapshot() *domain.PolicySnapshot
	Reload(ctx context.Context) error
}

type GuildHandler struct {
	store  PolicyStore
	logger *zap.SugaredLogger
}

func NewGuildHandler(store PolicyStore, logger *zap.SugaredLogger) *GuildHandler {
	return &GuildHandler{store: store, logger: logger}
}

// SetupRoutes registers read routes on rg and the reload route on admin.
func (h *GuildHandler) SetupRoutes(rg, admin *gin.RouterGroup) {
	rg.GET("/guilds", h.ListGuilds)
	rg.GET("/guilds/:id", h.GetGuild)
	admin.POST("/guilds/reload", h.Reload)
}

func (h *GuildHandler) ListGuilds(c *gin.Context) {
	policies := h.store.Snapshot().Policies()
	summaries := make([]gin.H, 0, len(policies))
	for _, p := range policies {
		summaries = append(summaries, gin.H{
			"id":          p.GuildID,
			"name":        p.Name,
			"log_channel": p.LogChannel,
			"creators":    len(p.Creators),
		})
	}
	c.JSON(http.StatusOK, gin.H{"guilds": summaries, "count": len(summaries)})
}

func (h *GuildHandler) GetGuild(c *gin.Context) {
	id, err := domain.ParseGuildID(c.Param("id"))
	if err != nil {
		c.Error(errors.NewInvalidInputError("guild id must be a snowflake"))
		return
	}

	policy, found := h.store.Snapshot().Guild(id)
	if !found {
		c.Error(errors.NewNotFoundError("guild"))
		return
	}
	c.JSON(http.StatusOK, policy)
}

// Reload re-reads the guild directory. On failure the previous
// configuration stays active.
func (h *GuildHandler) Reload(c *gin.Context) {
	if err := h.store.Reload(c.Request.Context()); err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInvalidInput, err.Error(), http.StatusUnprocessableEntity))
		return
	}

	guilds := h.store.Snapshot().Len()
	h.logger.Infow("guild configuration reloaded", "guilds", guilds)
	c.JSON(http.StatusOK, gin.H{"guilds": guilds})
}
