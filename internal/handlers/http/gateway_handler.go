package http

import (
	"net/http"

	"tempvoice/internal/core/domain"
	"tempvoice/internal/infrastructure/bridge"
	"tempvoice/pkg/errors"

	"github.com/gin-gonic/gin"
)

// GatewayHandler accepts voice events and interactions over plain HTTP, for
// gateways that push webhooks instead of holding the bridge websocket.
type GatewayHandler struct {
	events       bridge.EventHandler
	interactions bridge.InteractionHandler
}

func NewGatewayHandler(events bridge.EventHandler, interactions bridge.InteractionHandler) *GatewayHandler {
	return &GatewayHandler{events: events, interactions: interactions}
}

func (h *GatewayHandler) SetupRoutes(rg *gin.RouterGroup) {
	rg.POST("/events", h.PostEvent)
	rg.POST("/interactions", h.PostInteraction)
}

// PostEvent always answers 200 with one result per handled transition;
// failures are reported per result.
func (h *GatewayHandler) PostEvent(c *gin.Context) {
	var ev domain.VoiceEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.Error(errors.NewInvalidInputError("invalid voice event"))
		return
	}

	results := h.events.HandleEvent(c.Request.Context(), ev)
	out := make([]bridge.ResultPayload, 0, len(results))
	for _, res := range results {
		out = append(out, bridge.NewResultPayload(res))
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

func (h *GatewayHandler) PostInteraction(c *gin.Context) {
	var in bridge.Interaction
	if err := c.ShouldBindJSON(&in); err != nil || in.Action == "" {
		c.Error(errors.NewInvalidInputError("invalid interaction"))
		return
	}

	res := h.interactions.HandleInteraction(c.Request.Context(), in)
	if appErr := resultError(res); appErr != nil {
		c.Error(appErr)
		return
	}
	c.JSON(http.StatusOK, bridge.NewResultPayload(res))
}
