package ports

import (
	"context"

	"tempvoice/internal/core/domain"
)

// Platform issues commands to the chat platform. Every call either fully
// succeeds or returns an error.
type Platform interface {
	Guild(ctx context.Context, id domain.GuildID) (*domain.Guild, error)
	CreateRoom(ctx context.Context, req domain.CreateRoomRequest) (domain.ChannelID, error)
	DeleteRoom(ctx context.Context, guildID domain.GuildID, roomID domain.ChannelID, reason string) error
	EditRoom(ctx context.Context, guildID domain.GuildID, roomID domain.ChannelID, edit domain.RoomEdit) error
	SetRoomStatus(ctx context.Context, guildID domain.GuildID, roomID domain.ChannelID, status, reason string) error
	SetOverwrite(ctx context.Context, guildID domain.GuildID, roomID domain.ChannelID, ow domain.Overwrite, reason string) error
	MoveMember(ctx context.Context, guildID domain.GuildID, member domain.MemberID, roomID domain.ChannelID) error
	DisconnectMember(ctx context.Context, guildID domain.GuildID, member domain.MemberID) error
	SendDirect(ctx context.Context, member domain.MemberID, text string) error
	SendLog(ctx context.Context, entry domain.LogEntry) error
}

// LogSink receives lifecycle log entries.
type LogSink interface {
	Record(ctx context.Context, entry domain.LogEntry)
}

// LifecycleMetrics observes lifecycle outcomes.
type LifecycleMetrics interface {
	RoomCreated(guildID domain.GuildID)
	RoomDeleted(guildID domain.GuildID, lifetime float64)
	CooldownDenied(guildID domain.GuildID)
	PlatformFailure(operation string)
	OwnershipChanged(kind string)
}

// Prompter asks a member for free-form input, such as a new room name.
// Implementations return when the member answers or ctx is done.
type Prompter interface {
	Prompt(ctx context.Context, member domain.MemberID, field string) (string, error)
}
