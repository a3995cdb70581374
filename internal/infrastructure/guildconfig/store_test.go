package guildconfig

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"tempvoice/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const yamlGuild = `
id: 1001
name: lounge
log_channel: 5005
creators:
  - general:
      name: main
      channel: 2001
      category: 3001
    default:
      channel_name: "{}'s hangout"
      channel_size: 4
    disable:
      text_chat: true
      soundboard: true
    role:
      cannot_be_kicked: [7001]
      has_channel_owner_permissions: [7002, 7003]
  - general:
      channel: 2002
      category: 3002
`

const jsonGuild = `{
	"id": 1002,
	"name": "arcade",
	"log_channel": null,
	"creators": [
		{
			"general": {"channel": 2101, "category": 3101},
			"default": {"copy_permissions": true, "channel_status": "open"}
		}
	]
}`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestParse_YAML(t *testing.T) {
	p, err := Parse([]byte(yamlGuild), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, domain.GuildID(1001), p.GuildID)
	assert.Equal(t, domain.ChannelID(5005), p.LogChannel)
	require.Len(t, p.Creators, 2)

	main := p.Creators[0]
	assert.Equal(t, "main", main.Name)
	assert.Equal(t, domain.ChannelID(2001), main.Channel)
	assert.Equal(t, domain.ChannelID(3001), main.Category)
	assert.Equal(t, "{}'s hangout", main.Default.ChannelName)
	assert.Equal(t, 4, main.Default.ChannelSize)
	assert.True(t, main.Disable.TextChat)
	assert.False(t, main.Disable.Video)
	assert.True(t, main.Disable.Soundboard)
	assert.Equal(t, []domain.RoleID{7001}, main.Roles.CannotBeKicked)
	assert.Equal(t, []domain.RoleID{7002, 7003}, main.Roles.OwnerEquivalent)

	assert.Equal(t, domain.DefaultChannelName, p.Creators[1].Default.ChannelName)
}

func TestParse_JSON(t *testing.T) {
	p, err := Parse([]byte(jsonGuild), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, domain.GuildID(1002), p.GuildID)
	assert.Zero(t, p.LogChannel)
	require.Len(t, p.Creators, 1)
	assert.True(t, p.Creators[0].Default.CopyPermissions)
	assert.Equal(t, "open", p.Creators[0].Default.ChannelStatus)
	assert.Equal(t, domain.DefaultChannelName, p.Creators[0].Default.ChannelName)
}

func TestValidate(t *testing.T) {
	creator := func(channel, category domain.ChannelID) domain.CreatorPolicy {
		return domain.CreatorPolicy{Channel: channel, Category: category}
	}

	tests := []struct {
		name    string
		policy  *domain.GuildPolicy
		wantErr bool
	}{
		{"valid", &domain.GuildPolicy{GuildID: 1, Creators: []domain.CreatorPolicy{creator(10, 20), creator(11, 21)}}, false},
		{"missing id", &domain.GuildPolicy{Creators: []domain.CreatorPolicy{creator(10, 20)}}, true},
		{"no creators", &domain.GuildPolicy{GuildID: 1}, true},
		{"duplicate entry point", &domain.GuildPolicy{GuildID: 1, Creators: []domain.CreatorPolicy{creator(10, 20), creator(10, 21)}}, true},
		{"duplicate category", &domain.GuildPolicy{GuildID: 1, Creators: []domain.CreatorPolicy{creator(10, 20), creator(11, 20)}}, true},
		{"missing category", &domain.GuildPolicy{GuildID: 1, Creators: []domain.CreatorPolicy{creator(10, 0)}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.policy)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidPolicy)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStore_LoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lounge.yaml", yamlGuild)
	writeFile(t, dir, "arcade.json", jsonGuild)
	writeFile(t, dir, "README.md", "not a guild")

	store, err := NewStore(context.Background(), dir, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	assert.Equal(t, 2, store.Snapshot().Len())
	p, found := store.Policy(1001)
	require.True(t, found)
	assert.True(t, p.IsEntryPoint(2001))

	_, found = store.Policy(9999)
	assert.False(t, found)
}

func TestStore_DuplicateGuildAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", yamlGuild)
	writeFile(t, dir, "b.yml", yamlGuild)

	_, err := NewStore(context.Background(), dir, zaptest.NewLogger(t).Sugar())
	assert.ErrorIs(t, err, domain.ErrInvalidPolicy)
}

func TestStore_ReloadSwapsSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lounge.yaml", yamlGuild)

	store, err := NewStore(context.Background(), dir, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	before := store.Snapshot()

	writeFile(t, dir, "arcade.json", jsonGuild)
	require.NoError(t, store.Reload(context.Background()))

	assert.Equal(t, 1, before.Len())
	assert.Equal(t, 2, store.Snapshot().Len())
}

func TestStore_FailedReloadKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lounge.yaml", yamlGuild)

	store, err := NewStore(context.Background(), dir, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	writeFile(t, dir, "broken.yaml", "id: [unterminated")
	assert.Error(t, store.Reload(context.Background()))

	_, found := store.Policy(1001)
	assert.True(t, found)
	assert.Equal(t, 1, store.Snapshot().Len())
}

func TestStore_ConcurrentReadsDuringReload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lounge.yaml", yamlGuild)

	store, err := NewStore(context.Background(), dir, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Reload(context.Background())
		}()
		go func() {
			defer wg.Done()
			p, found := store.Policy(1001)
			if assert.True(t, found) {
				assert.Len(t, p.Creators, 2)
			}
		}()
	}
	wg.Wait()
}

func TestNewStaticStore(t *testing.T) {
	p, err := Parse([]byte(yamlGuild), FormatYAML)
	require.NoError(t, err)

	store, err := NewStaticStore([]*domain.GuildPolicy{p}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	assert.NoError(t, store.Reload(context.Background()))
	assert.Equal(t, 1, store.Snapshot().Len())

	_, err = NewStaticStore([]*domain.GuildPolicy{{GuildID: 1}}, zaptest.NewLogger(t).Sugar())
	assert.Error(t, err)
}

func TestStore_ShippedExampleLoads(t *testing.T) {
	store, err := NewStore(context.Background(), filepath.Join("..", "..", "..", "configs", "servers"), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	p, ok := store.Policy(100000000000000001)
	require.True(t, ok)
	assert.Equal(t, domain.ChannelID(100000000000000009), p.LogChannel)
	require.Len(t, p.Creators, 1)
	assert.True(t, p.Creators[0].Disable.Soundboard)
}
