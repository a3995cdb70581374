// Package policy derives room permissions and member standing from a
// creator's declarative configuration. Every function is pure.
package policy

import (
	"strings"
	"unicode/utf8"

	"tempvoice/internal/core/domain"
)

// MaxRoomNameLength is the platform limit for room names.
const MaxRoomNameLength = 100

// Capabilities answers authorization questions for one creator policy.
type Capabilities interface {
	IsEvictionImmune(roles []domain.RoleID) bool
	HasModeratorRights(roles []domain.RoleID) bool
}

type roleSets struct {
	immune    map[domain.RoleID]struct{}
	moderator map[domain.RoleID]struct{}
}

// For builds the capability predicate of a creator policy once so repeated
// checks against it are set lookups.
func For(p *domain.CreatorPolicy) Capabilities {
	rs := &roleSets{
		immune:    make(map[domain.RoleID]struct{}),
		moderator: make(map[domain.RoleID]struct{}),
	}
	if p == nil {
		return rs
	}
	for _, r := range p.Roles.CannotBeKicked {
		rs.immune[r] = struct{}{}
	}
	for _, r := range p.Roles.OwnerEquivalent {
		rs.moderator[r] = struct{}{}
	}
	return rs
}

func (rs *roleSets) IsEvictionImmune(roles []domain.RoleID) bool {
	return intersects(rs.immune, roles)
}

func (rs *roleSets) HasModeratorRights(roles []domain.RoleID) bool {
	return intersects(rs.moderator, roles)
}

func intersects(set map[domain.RoleID]struct{}, roles []domain.RoleID) bool {
	for _, r := range roles {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}

// IsEvictionImmune reports whether a member holding roles may not be kicked
// or banned from rooms spawned by p.
func IsEvictionImmune(p *domain.CreatorPolicy, roles []domain.RoleID) bool {
	return For(p).IsEvictionImmune(roles)
}

// HasModeratorRights reports whether a member holding roles may act as the
// owner of any room spawned by p.
func HasModeratorRights(p *domain.CreatorPolicy, roles []domain.RoleID) bool {
	return For(p).HasModeratorRights(roles)
}

// CanManage reports whether actor may use the owner controls of room.
func CanManage(p *domain.CreatorPolicy, room *domain.TempRoom, actor *domain.Member) bool {
	if room != nil && room.Owner == actor.ID {
		return true
	}
	return HasModeratorRights(p, actor.Roles)
}

// DefaultRoleOverwrite denies the capabilities disabled by p for the
// guild's default role. Nothing is granted.
func DefaultRoleOverwrite(p *domain.CreatorPolicy, defaultRole domain.RoleID) domain.Overwrite {
	ow := domain.RoleOverwrite(defaultRole)
	if p.Disable.TextChat {
		ow.AddDenies(domain.PermissionSendMessages)
	}
	if p.Disable.Video {
		ow.AddDenies(domain.PermissionStream)
	}
	if p.Disable.Soundboard {
		ow.AddDenies(domain.PermissionUseSoundboard)
	}
	if p.Disable.Activities {
		ow.AddDenies(domain.PermissionStartEmbeddedActivities)
	}
	return ow
}

// CreationPlan tells how to build the overwrites of a new room. When
// CopyFromEntry is set the entry point's overwrites are copied verbatim and
// Overwrites is empty.
type CreationPlan struct {
	CopyFromEntry bool
	Overwrites    []domain.Overwrite
}

// BuildCreationOverwrites derives the overwrites of a room spawned by p for
// owner. Roles listed as eviction-immune but missing from the guild are
// skipped; duplicates are collapsed keeping their first position.
func BuildCreationOverwrites(p *domain.CreatorPolicy, owner domain.MemberID, guild *domain.Guild) CreationPlan {
	if p.Default.CopyPermissions {
		return CreationPlan{CopyFromEntry: true}
	}

	overwrites := []domain.Overwrite{DefaultRoleOverwrite(p, guild.DefaultRoleID)}

	seen := make(map[domain.RoleID]struct{}, len(p.Roles.CannotBeKicked))
	for _, role := range p.Roles.CannotBeKicked {
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		if !guild.HasRole(role) {
			continue
		}
		ow := domain.RoleOverwrite(role)
		ow.AddAllows(domain.PermissionConnect)
		overwrites = append(overwrites, ow)
	}

	ownerOw := domain.MemberOverwrite(owner)
	ownerOw.AddAllows(domain.PermissionConnect)
	overwrites = append(overwrites, ownerOw)

	return CreationPlan{Overwrites: overwrites}
}

// LockOverwrite denies CONNECT to the default role.
func LockOverwrite(defaultRole domain.RoleID) domain.Overwrite {
	ow := domain.RoleOverwrite(defaultRole)
	ow.AddDenies(domain.PermissionConnect)
	return ow
}

// UnlockOverwrite allows CONNECT for the default role.
func UnlockOverwrite(defaultRole domain.RoleID) domain.Overwrite {
	ow := domain.RoleOverwrite(defaultRole)
	ow.AddAllows(domain.PermissionConnect)
	return ow
}

// InviteOverwrite allows CONNECT for a single member.
func InviteOverwrite(member domain.MemberID) domain.Overwrite {
	ow := domain.MemberOverwrite(member)
	ow.AddAllows(domain.PermissionConnect)
	return ow
}

// BanOverwrite denies CONNECT for a single member.
func BanOverwrite(member domain.MemberID) domain.Overwrite {
	ow := domain.MemberOverwrite(member)
	ow.AddDenies(domain.PermissionConnect)
	return ow
}

// RoomName fills the creator's name template with the member's display name.
func RoomName(p *domain.CreatorPolicy, m *domain.Member) string {
	tmpl := p.Default.ChannelName
	if tmpl == "" {
		tmpl = domain.DefaultChannelName
	}
	return truncate(strings.ReplaceAll(tmpl, "{}", m.DisplayName()), MaxRoomNameLength)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
