package domain

import "time"

// LogKind names a lifecycle action worth recording.
type LogKind string

const (
	LogRoomCreated       LogKind = "room.created"
	LogRoomDeleted       LogKind = "room.deleted"
	LogOwnershipClaimed  LogKind = "ownership.claimed"
	LogOwnershipTransfer LogKind = "ownership.transferred"
	LogMemberKicked      LogKind = "member.kicked"
	LogMemberBanned      LogKind = "member.banned"
	LogMemberInvited     LogKind = "member.invited"
	LogRoomRenamed       LogKind = "room.renamed"
	LogRoomResized       LogKind = "room.resized"
	LogRoomLocked        LogKind = "room.locked"
	LogRoomUnlocked      LogKind = "room.unlocked"
	LogRoomStatus        LogKind = "room.status"
)

// LogEntry is a structured record of a lifecycle action. Rendering it as
// text for a guild log channel is left to the sink.
type LogEntry struct {
	Kind       LogKind       `json:"kind"`
	GuildID    GuildID       `json:"guild_id"`
	LogChannel ChannelID     `json:"log_channel,omitempty"`
	Actor      MemberID      `json:"actor"`
	Target     MemberID      `json:"target,omitempty"`
	RoomID     ChannelID     `json:"room_id"`
	RoomName   string        `json:"room_name,omitempty"`
	Detail     string        `json:"detail,omitempty"`
	Lifetime   time.Duration `json:"lifetime,omitempty"`
	At         time.Time     `json:"at"`
}
