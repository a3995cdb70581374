package policy

import (
	"strings"
	"testing"

	"tempvoice/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreator() *domain.CreatorPolicy {
	return &domain.CreatorPolicy{
		Name:     "gaming",
		Channel:  100,
		Category: 200,
		Default:  domain.CreatorDefaults{ChannelName: "{}'s room", ChannelSize: 5},
		Roles: domain.CreatorRoles{
			CannotBeKicked:  []domain.RoleID{10, 11},
			OwnerEquivalent: []domain.RoleID{20},
		},
	}
}

func testGuild() *domain.Guild {
	return &domain.Guild{ID: 1, DefaultRoleID: 1, BitrateLimit: 96000, Roles: []domain.RoleID{1, 10, 20}}
}

func TestDefaultRoleOverwrite_FlagsAreIndependent(t *testing.T) {
	cases := []struct {
		name    string
		disable domain.CreatorDisable
		deny    domain.Permission
	}{
		{"none", domain.CreatorDisable{}, 0},
		{"text chat", domain.CreatorDisable{TextChat: true}, domain.PermissionSendMessages},
		{"video", domain.CreatorDisable{Video: true}, domain.PermissionStream},
		{"soundboard", domain.CreatorDisable{Soundboard: true}, domain.PermissionUseSoundboard},
		{"activities", domain.CreatorDisable{Activities: true}, domain.PermissionStartEmbeddedActivities},
		{"all", domain.CreatorDisable{TextChat: true, Video: true, Soundboard: true, Activities: true},
			domain.PermissionSendMessages | domain.PermissionStream | domain.PermissionUseSoundboard | domain.PermissionStartEmbeddedActivities},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := testCreator()
			p.Disable = tc.disable

			ow := DefaultRoleOverwrite(p, 1)
			assert.Equal(t, uint64(1), ow.TargetID)
			assert.Equal(t, domain.OverwriteRole, ow.Type)
			assert.Equal(t, tc.deny, ow.Deny)
			assert.Zero(t, ow.Allow)
		})
	}
}

func TestCapabilities_Intersection(t *testing.T) {
	p := testCreator()

	assert.False(t, IsEvictionImmune(p, nil))
	assert.False(t, IsEvictionImmune(p, []domain.RoleID{1, 20}))
	assert.True(t, IsEvictionImmune(p, []domain.RoleID{11}))
	assert.True(t, IsEvictionImmune(p, []domain.RoleID{99, 10}))
	assert.True(t, IsEvictionImmune(p, []domain.RoleID{10, 99}))

	assert.False(t, HasModeratorRights(p, []domain.RoleID{10, 11}))
	assert.True(t, HasModeratorRights(p, []domain.RoleID{5, 20}))

	caps := For(nil)
	assert.False(t, caps.IsEvictionImmune([]domain.RoleID{10}))
	assert.False(t, caps.HasModeratorRights([]domain.RoleID{20}))
}

func TestBuildCreationOverwrites(t *testing.T) {
	p := testCreator()
	p.Disable.TextChat = true

	plan := BuildCreationOverwrites(p, 42, testGuild())
	require.False(t, plan.CopyFromEntry)
	require.Len(t, plan.Overwrites, 3, "role 11 is not on the guild and must be skipped")

	assert.Equal(t, domain.Overwrite{TargetID: 1, Type: domain.OverwriteRole, Deny: domain.PermissionSendMessages}, plan.Overwrites[0])
	assert.Equal(t, domain.Overwrite{TargetID: 10, Type: domain.OverwriteRole, Allow: domain.PermissionConnect}, plan.Overwrites[1])
	assert.Equal(t, domain.Overwrite{TargetID: 42, Type: domain.OverwriteMember, Allow: domain.PermissionConnect}, plan.Overwrites[2])
}

func TestBuildCreationOverwrites_Deterministic(t *testing.T) {
	p := testCreator()
	p.Roles.CannotBeKicked = []domain.RoleID{10, 20, 10}
	p.Disable.Video = true

	first := BuildCreationOverwrites(p, 7, testGuild())
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, BuildCreationOverwrites(p, 7, testGuild()))
	}
	assert.Len(t, first.Overwrites, 4)
}

func TestBuildCreationOverwrites_CopyPermissions(t *testing.T) {
	p := testCreator()
	p.Default.CopyPermissions = true

	plan := BuildCreationOverwrites(p, 42, testGuild())
	assert.True(t, plan.CopyFromEntry)
	assert.Empty(t, plan.Overwrites)
}

func TestCanManage(t *testing.T) {
	p := testCreator()
	room := &domain.TempRoom{RoomID: 500, Owner: 42}

	assert.True(t, CanManage(p, room, &domain.Member{ID: 42}))
	assert.True(t, CanManage(p, room, &domain.Member{ID: 43, Roles: []domain.RoleID{20}}))
	assert.False(t, CanManage(p, room, &domain.Member{ID: 43, Roles: []domain.RoleID{10}}))
	assert.True(t, CanManage(p, nil, &domain.Member{ID: 43, Roles: []domain.RoleID{20}}))
	assert.False(t, CanManage(p, nil, &domain.Member{ID: 42}))
}

func TestRoomName(t *testing.T) {
	p := testCreator()

	assert.Equal(t, "U's room", RoomName(p, &domain.Member{Username: "U"}))
	assert.Equal(t, "Nick's room", RoomName(p, &domain.Member{Username: "U", Nickname: "Nick"}))

	p.Default.ChannelName = ""
	assert.Equal(t, "U's channel", RoomName(p, &domain.Member{Username: "U"}))

	long := RoomName(p, &domain.Member{Username: strings.Repeat("ä", 150)})
	assert.Equal(t, MaxRoomNameLength, len([]rune(long)))
}

func TestLockAndMemberOverwrites(t *testing.T) {
	assert.Equal(t, domain.PermissionConnect, LockOverwrite(1).Deny)
	assert.Equal(t, domain.PermissionConnect, UnlockOverwrite(1).Allow)
	assert.Equal(t, domain.OverwriteMember, InviteOverwrite(5).Type)
	assert.Equal(t, domain.PermissionConnect, BanOverwrite(5).Deny)
	assert.Zero(t, BanOverwrite(5).Allow)
}
