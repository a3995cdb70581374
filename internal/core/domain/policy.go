package domain

import "sort"

// CreatorDefaults are the initial settings of a spawned room.
type CreatorDefaults struct {
	ChannelName     string `yaml:"channel_name" json:"channel_name"`
	ChannelStatus   string `yaml:"channel_status" json:"channel_status"`
	ChannelSize     int    `yaml:"channel_size" json:"channel_size"`
	CopyPermissions bool   `yaml:"copy_permissions" json:"copy_permissions"`
}

// CreatorDisable flags capabilities denied to the default role.
type CreatorDisable struct {
	TextChat   bool `yaml:"text_chat" json:"text_chat"`
	Video      bool `yaml:"video" json:"video"`
	Soundboard bool `yaml:"soundboard" json:"soundboard"`
	Activities bool `yaml:"activities" json:"activities"`
}

// CreatorRoles lists roles with special standing in spawned rooms.
type CreatorRoles struct {
	CannotBeKicked  []RoleID `yaml:"cannot_be_kicked" json:"cannot_be_kicked"`
	OwnerEquivalent []RoleID `yaml:"has_channel_owner_permissions" json:"has_channel_owner_permissions"`
}

// CreatorPolicy describes one entry point and the rooms it spawns.
type CreatorPolicy struct {
	Name     string          `yaml:"name" json:"name"`
	Channel  ChannelID       `yaml:"channel" json:"channel"`
	Category ChannelID       `yaml:"category" json:"category"`
	Default  CreatorDefaults `yaml:"default" json:"default"`
	Disable  CreatorDisable  `yaml:"disable" json:"disable"`
	Roles    CreatorRoles    `yaml:"role" json:"role"`
}

// DefaultChannelName is used when a creator has no name template.
const DefaultChannelName = "{}'s channel"

// GuildPolicy is the configuration of one guild.
type GuildPolicy struct {
	GuildID    GuildID         `yaml:"id" json:"id"`
	Name       string          `yaml:"name" json:"name"`
	LogChannel ChannelID       `yaml:"log_channel" json:"log_channel"`
	Creators   []CreatorPolicy `yaml:"creators" json:"creators"`
}

// IsEntryPoint reports whether channel is a configured entry point.
func (g *GuildPolicy) IsEntryPoint(channel ChannelID) bool {
	return g.CreatorByChannel(channel) != nil
}

// CreatorByChannel returns the creator owning the entry point channel.
func (g *GuildPolicy) CreatorByChannel(channel ChannelID) *CreatorPolicy {
	for i := range g.Creators {
		if g.Creators[i].Channel == channel {
			return &g.Creators[i]
		}
	}
	return nil
}

// CreatorByCategory returns the creator whose rooms live in category.
func (g *GuildPolicy) CreatorByCategory(category ChannelID) *CreatorPolicy {
	for i := range g.Creators {
		if g.Creators[i].Category == category {
			return &g.Creators[i]
		}
	}
	return nil
}

// IsTempRoom reports whether room is an ephemeral room under this policy:
// a voice room inside a creator category that is not itself an entry point.
func (g *GuildPolicy) IsTempRoom(room *Room) bool {
	if room == nil || !room.Voice {
		return false
	}
	if g.IsEntryPoint(room.ID) {
		return false
	}
	if room.ParentID == 0 {
		return false
	}
	return g.CreatorByCategory(room.ParentID) != nil
}

// PolicySnapshot is an immutable view of every loaded guild.
type PolicySnapshot struct {
	guilds map[GuildID]*GuildPolicy
}

// NewPolicySnapshot indexes policies by guild. Later duplicates win.
func NewPolicySnapshot(policies []*GuildPolicy) *PolicySnapshot {
	s := &PolicySnapshot{guilds: make(map[GuildID]*GuildPolicy, len(policies))}
	for _, p := range policies {
		s.guilds[p.GuildID] = p
	}
	return s
}

// Guild returns the policy of a guild.
func (s *PolicySnapshot) Guild(id GuildID) (*GuildPolicy, bool) {
	if s == nil {
		return nil, false
	}
	p, ok := s.guilds[id]
	return p, ok
}

// Len returns the number of configured guilds.
func (s *PolicySnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.guilds)
}

// Policies returns every guild policy ordered by guild id.
func (s *PolicySnapshot) Policies() []*GuildPolicy {
	if s == nil {
		return nil
	}
	out := make([]*GuildPolicy, 0, len(s.guilds))
	for _, p := range s.guilds {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out
}
