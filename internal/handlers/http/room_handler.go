package http

import (
	"context"
	"net/http"
	"time"

	"tempvoice/internal/core/domain"
	"tempvoice/internal/core/services"
	"tempvoice/pkg/errors"

	"github.com/gin-gonic/gin"
)

// RoomReader exposes the room registry.
type RoomReader interface {
	Room(ctx context.Context, id domain.ChannelID) (*domain.TempRoom, bool)
	Rooms(ctx context.Context) ([]*domain.TempRoom, error)
}

// CooldownChecker answers whether a member may create a room now.
type CooldownChecker interface {
	CanAct(member domain.MemberID) services.Decision
}

type RoomHandler struct {
	rooms    RoomReader
	cooldown CooldownChecker
	now      func() time.Time
}

func NewRoomHandler(rooms RoomReader, cooldown CooldownChecker) *RoomHandler {
	return &RoomHandler{rooms: rooms, cooldown: cooldown, now: time.Now}
}

func (h *RoomHandler) SetupRoutes(rg *gin.RouterGroup) {
	rg.GET("/rooms", h.ListRooms)
	rg.GET("/rooms/:id", h.GetRoom)
	rg.GET("/members/:id/cooldown", h.GetCooldown)
}

type RoomResponse struct {
	RoomID    domain.ChannelID `json:"room_id"`
	GuildID   domain.GuildID   `json:"guild_id"`
	Owner     domain.MemberID  `json:"owner"`
	CreatedAt time.Time        `json:"created_at"`
	Lifetime  string           `json:"lifetime"`
}

func (h *RoomHandler) toResponse(room *domain.TempRoom) RoomResponse {
	return RoomResponse{
		RoomID:    room.RoomID,
		GuildID:   room.GuildID,
		Owner:     room.Owner,
		CreatedAt: room.CreatedAt,
		Lifetime:  domain.FormatLifetime(room.Lifetime(h.now())),
	}
}

func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.rooms.Rooms(c.Request.Context())
	if err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to list rooms", http.StatusInternalServerError))
		return
	}

	var guildFilter domain.GuildID
	if raw := c.Query("guild_id"); raw != "" {
		guildFilter, err = domain.ParseGuildID(raw)
		if err != nil {
			c.Error(errors.NewInvalidInputError("guild_id must be a snowflake"))
			return
		}
	}

	out := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		if guildFilter != 0 && room.GuildID != guildFilter {
			continue
		}
		out = append(out, h.toResponse(room))
	}
	c.JSON(http.StatusOK, gin.H{"rooms": out, "count": len(out)})
}

// GetRoom reports the owner of a temporary room.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	id, err := domain.ParseChannelID(c.Param("id"))
	if err != nil {
		c.Error(errors.NewInvalidInputError("room id must be a snowflake"))
		return
	}

	room, found := h.rooms.Room(c.Request.Context(), id)
	if !found {
		c.Error(errors.NewNotFoundError("room"))
		return
	}
	c.JSON(http.StatusOK, h.toResponse(room))
}

func (h *RoomHandler) GetCooldown(c *gin.Context) {
	id, err := domain.ParseMemberID(c.Param("id"))
	if err != nil {
		c.Error(errors.NewInvalidInputError("member id must be a snowflake"))
		return
	}

	decision := h.cooldown.CanAct(id)
	resp := gin.H{"member_id": id, "allowed": decision.Allowed}
	if !decision.Allowed {
		resp["retry_at"] = decision.RetryAt.UTC()
	}
	c.JSON(http.StatusOK, resp)
}
