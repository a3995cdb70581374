// Package bridge connects the engine to the chat platform through a
// gateway process speaking JSON frames over a websocket. The gateway pushes
// voice events and interactions; the engine answers with results and sends
// platform commands it expects replies for.
package bridge

import (
	"encoding/json"
	"time"

	"tempvoice/internal/core/domain"
	"tempvoice/internal/core/services"
)

// Frame types.
const (
	FrameVoiceEvent  = "voice_event"
	FrameInteraction = "interaction"
	FrameCommand     = "command"
	FrameReply       = "reply"
	FrameResult      = "result"
	FrameError       = "error"
	FrameReady       = "ready"

	frameDisconnected = "disconnected"
)

// Command ops sent to the gateway.
const (
	OpGuild            = "guild"
	OpCreateRoom       = "create_room"
	OpDeleteRoom       = "delete_room"
	OpEditRoom         = "edit_room"
	OpSetRoomStatus    = "set_room_status"
	OpSetOverwrite     = "set_overwrite"
	OpMoveMember       = "move_member"
	OpDisconnectMember = "disconnect_member"
	OpSendDirect       = "send_direct"
	OpSendLog          = "send_log"
	OpPrompt           = "prompt"
)

// Frame is the envelope of every message in both directions. ID correlates
// a command with its reply and an event or interaction with its result.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Op      string          `json:"op,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Interaction actions.
const (
	ActionClaim    = "claim"
	ActionTransfer = "transfer"
	ActionKick     = "kick"
	ActionBan      = "ban"
	ActionInvite   = "invite"
	ActionRename   = "rename"
	ActionResize   = "resize"
	ActionStatus   = "status"
	ActionLock     = "lock"
	ActionUnlock   = "unlock"
	ActionOwner    = "owner"
)

// Interaction is a room-control request made by a member through the
// platform UI. Value is optional for rename, resize and status; when empty
// the member is prompted for it.
type Interaction struct {
	Action string         `json:"action"`
	Room   domain.Room    `json:"room"`
	Actor  domain.Member  `json:"actor"`
	Target *domain.Member `json:"target,omitempty"`
	Value  string         `json:"value,omitempty"`
}

// PromptField returns the field the actor must be asked for when the
// interaction carries no value.
func (in Interaction) PromptField() (string, bool) {
	if in.Value != "" {
		return "", false
	}
	switch in.Action {
	case ActionRename:
		return services.FieldRoomName, true
	case ActionResize:
		return services.FieldRoomSize, true
	case ActionStatus:
		return services.FieldRoomStatus, true
	}
	return "", false
}

// ResultPayload reports the outcome of an event or interaction.
type ResultPayload struct {
	Kind    string           `json:"kind"`
	RoomID  domain.ChannelID `json:"room_id,omitempty"`
	Owner   domain.MemberID  `json:"owner,omitempty"`
	Since   *time.Time       `json:"since,omitempty"`
	RetryAt *time.Time       `json:"retry_at,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// NewResultPayload renders a service result for the gateway.
func NewResultPayload(res services.Result) ResultPayload {
	p := ResultPayload{Kind: res.Kind.String()}
	if res.Room != nil {
		p.RoomID = res.Room.RoomID
		p.Owner = res.Room.Owner
		created := res.Room.CreatedAt
		p.Since = &created
	}
	if !res.RetryAt.IsZero() {
		retry := res.RetryAt
		p.RetryAt = &retry
	}
	if res.Err != nil {
		p.Error = res.Err.Error()
	}
	return p
}

type deleteRoomArgs struct {
	GuildID domain.GuildID   `json:"guild_id"`
	RoomID  domain.ChannelID `json:"room_id"`
	Reason  string           `json:"reason,omitempty"`
}

type editRoomArgs struct {
	GuildID domain.GuildID   `json:"guild_id"`
	RoomID  domain.ChannelID `json:"room_id"`
	domain.RoomEdit
}

type roomStatusArgs struct {
	GuildID domain.GuildID   `json:"guild_id"`
	RoomID  domain.ChannelID `json:"room_id"`
	Status  string           `json:"status"`
	Reason  string           `json:"reason,omitempty"`
}

type overwriteArgs struct {
	GuildID   domain.GuildID   `json:"guild_id"`
	RoomID    domain.ChannelID `json:"room_id"`
	Overwrite domain.Overwrite `json:"overwrite"`
	Reason    string           `json:"reason,omitempty"`
}

type memberArgs struct {
	GuildID domain.GuildID   `json:"guild_id"`
	Member  domain.MemberID  `json:"member"`
	RoomID  domain.ChannelID `json:"room_id,omitempty"`
}

type directArgs struct {
	Member domain.MemberID `json:"member"`
	Text   string          `json:"text"`
}

type promptArgs struct {
	Member domain.MemberID `json:"member"`
	Field  string          `json:"field"`
}

type createRoomReply struct {
	RoomID domain.ChannelID `json:"room_id"`
}

type promptReply struct {
	Value string `json:"value"`
}
