package domain

// VoiceEventType is the kind of voice-state change reported by the platform.
type VoiceEventType string

const (
	VoiceJoin  VoiceEventType = "voice.join"
	VoiceLeave VoiceEventType = "voice.leave"
	VoiceMove  VoiceEventType = "voice.move"
)

// VoiceEvent is a join, leave or move notification. For a move, From is the
// room left and To the room joined; for a leave only From is set; for a
// join only To is set.
type VoiceEvent struct {
	Type   VoiceEventType `json:"type"`
	Member Member         `json:"member"`
	From   *Room          `json:"from,omitempty"`
	To     *Room          `json:"to,omitempty"`
}

// EvictMode selects how a member is removed from a room.
type EvictMode string

const (
	EvictKick EvictMode = "kick"
	EvictBan  EvictMode = "ban"
)
