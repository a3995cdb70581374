package domain

import "errors"

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomExists        = errors.New("room already tracked")
	ErrPolicyNotFound    = errors.New("guild policy not found")
	ErrCreatorNotFound   = errors.New("creator policy not found")
	ErrInvalidPolicy     = errors.New("invalid guild policy")
	ErrOwnerPresent      = errors.New("owner is still in the room")
	ErrNotInRoom         = errors.New("member is not in the room")
	ErrNotPermitted      = errors.New("member may not manage this room")
	ErrBridgeUnavailable = errors.New("platform bridge not connected")
	ErrCommandRejected   = errors.New("platform rejected command")
	ErrInvalidInput      = errors.New("invalid input")
	ErrEvictionImmune    = errors.New("member cannot be evicted")
	ErrInputTimeout      = errors.New("timed out waiting for input")
)
