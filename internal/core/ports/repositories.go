package ports

import (
	"context"

	"tempvoice/internal/core/domain"
)

// RoomRepository is the registry of live ephemeral rooms. Only the
// lifecycle service mutates it.
type RoomRepository interface {
	Put(ctx context.Context, room *domain.TempRoom) error
	Get(ctx context.Context, id domain.ChannelID) (*domain.TempRoom, error)
	Remove(ctx context.Context, id domain.ChannelID) error
	List(ctx context.Context) ([]*domain.TempRoom, error)
	Count(ctx context.Context) int
}

// GuildConfigStore provides read-only policy snapshots.
type GuildConfigStore interface {
	Policy(guildID domain.GuildID) (*domain.GuildPolicy, bool)
	Snapshot() *domain.PolicySnapshot
	Reload(ctx context.Context) error
}
