package domain

import (
	"fmt"
	"time"
)

// Member is a guild member as seen by the platform at event time.
type Member struct {
	ID       MemberID `json:"id"`
	GuildID  GuildID  `json:"guild_id"`
	Username string   `json:"username"`
	Nickname string   `json:"nickname,omitempty"`
	Roles    []RoleID `json:"roles,omitempty"`
}

// DisplayName prefers the guild nickname over the username.
func (m *Member) DisplayName() string {
	if m.Nickname != "" {
		return m.Nickname
	}
	return m.Username
}

// Guild is the platform-side state of a guild needed to spawn rooms.
type Guild struct {
	ID            GuildID  `json:"id"`
	DefaultRoleID RoleID   `json:"default_role_id"`
	BitrateLimit  int      `json:"bitrate_limit"`
	Roles         []RoleID `json:"roles"`
}

// HasRole reports whether role exists on the guild.
func (g *Guild) HasRole(role RoleID) bool {
	for _, r := range g.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Room is a snapshot of a platform voice room. Members holds the occupancy
// as observed when the event was produced, including a departing member.
type Room struct {
	ID         ChannelID   `json:"id"`
	GuildID    GuildID     `json:"guild_id"`
	ParentID   ChannelID   `json:"parent_id,omitempty"`
	Name       string      `json:"name"`
	Voice      bool        `json:"voice"`
	Members    []MemberID  `json:"members,omitempty"`
	Overwrites []Overwrite `json:"overwrites,omitempty"`
}

// Contains reports whether member is currently in the room.
func (r *Room) Contains(member MemberID) bool {
	for _, m := range r.Members {
		if m == member {
			return true
		}
	}
	return false
}

// TempRoom is a live ephemeral room tracked by the registry.
type TempRoom struct {
	RoomID    ChannelID `json:"room_id"`
	GuildID   GuildID   `json:"guild_id"`
	Owner     MemberID  `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}

// Lifetime returns the time elapsed since creation.
func (t *TempRoom) Lifetime(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}

// FormatLifetime renders d as "1h 2m 3s".
func FormatLifetime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%dh %dm %ds", total/3600, (total%3600)/60, total%60)
}

// CreateRoomRequest is a platform room-creation command.
type CreateRoomRequest struct {
	GuildID    GuildID     `json:"guild_id"`
	ParentID   ChannelID   `json:"parent_id"`
	Name       string      `json:"name"`
	UserLimit  int         `json:"user_limit"`
	Bitrate    int         `json:"bitrate"`
	Overwrites []Overwrite `json:"overwrites"`
	Reason     string      `json:"reason,omitempty"`
}

// RoomEdit changes mutable room attributes. Nil fields are left as is.
type RoomEdit struct {
	Name      *string `json:"name,omitempty"`
	UserLimit *int    `json:"user_limit,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}
