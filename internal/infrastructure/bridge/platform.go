package bridge

import (
	"context"
	"errors"

	"tempvoice/internal/core/domain"
	"tempvoice/internal/core/ports"
)

var (
	_ ports.Platform = (*Platform)(nil)
	_ ports.Prompter = (*Platform)(nil)
)

// Platform issues commands through the connected gateway.
type Platform struct {
	server *Server
}

func NewPlatform(server *Server) *Platform {
	return &Platform{server: server}
}

func (p *Platform) Guild(ctx context.Context, id domain.GuildID) (*domain.Guild, error) {
	var guild domain.Guild
	if err := p.server.Call(ctx, OpGuild, struct {
		GuildID domain.GuildID `json:"guild_id"`
	}{id}, &guild); err != nil {
		return nil, err
	}
	if guild.ID == 0 {
		guild.ID = id
	}
	return &guild, nil
}

func (p *Platform) CreateRoom(ctx context.Context, req domain.CreateRoomRequest) (domain.ChannelID, error) {
	var reply createRoomReply
	if err := p.server.Call(ctx, OpCreateRoom, req, &reply); err != nil {
		return 0, err
	}
	if reply.RoomID == 0 {
		return 0, errors.New("create_room reply carried no room id")
	}
	return reply.RoomID, nil
}

func (p *Platform) DeleteRoom(ctx context.Context, guildID domain.GuildID, roomID domain.ChannelID, reason string) error {
	return p.server.Call(ctx, OpDeleteRoom, deleteRoomArgs{GuildID: guildID, RoomID: roomID, Reason: reason}, nil)
}

func (p *Platform) EditRoom(ctx context.Context, guildID domain.GuildID, roomID domain.ChannelID, edit domain.RoomEdit) error {
	return p.server.Call(ctx, OpEditRoom, editRoomArgs{GuildID: guildID, RoomID: roomID, RoomEdit: edit}, nil)
}

func (p *Platform) SetRoomStatus(ctx context.Context, guildID domain.GuildID, roomID domain.ChannelID, status, reason string) error {
	return p.server.Call(ctx, OpSetRoomStatus, roomStatusArgs{GuildID: guildID, RoomID: roomID, Status: status, Reason: reason}, nil)
}

func (p *Platform) SetOverwrite(ctx context.Context, guildID domain.GuildID, roomID domain.ChannelID, ow domain.Overwrite, reason string) error {
	return p.server.Call(ctx, OpSetOverwrite, overwriteArgs{GuildID: guildID, RoomID: roomID, Overwrite: ow, Reason: reason}, nil)
}

func (p *Platform) MoveMember(ctx context.Context, guildID domain.GuildID, member domain.MemberID, roomID domain.ChannelID) error {
	return p.server.Call(ctx, OpMoveMember, memberArgs{GuildID: guildID, Member: member, RoomID: roomID}, nil)
}

func (p *Platform) DisconnectMember(ctx context.Context, guildID domain.GuildID, member domain.MemberID) error {
	return p.server.Call(ctx, OpDisconnectMember, memberArgs{GuildID: guildID, Member: member}, nil)
}

func (p *Platform) SendDirect(ctx context.Context, member domain.MemberID, text string) error {
	return p.server.Call(ctx, OpSendDirect, directArgs{Member: member, Text: text}, nil)
}

func (p *Platform) SendLog(ctx context.Context, entry domain.LogEntry) error {
	return p.server.Call(ctx, OpSendLog, entry, nil)
}

// Prompt asks the gateway to collect a value from member. The gateway
// replies once the member answers; ctx bounds the wait.
func (p *Platform) Prompt(ctx context.Context, member domain.MemberID, field string) (string, error) {
	var reply promptReply
	if err := p.server.Call(ctx, OpPrompt, promptArgs{Member: member, Field: field}, &reply); err != nil {
		return "", err
	}
	return reply.Value, nil
}
