package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"tempvoice/internal/core/domain"
	"tempvoice/internal/core/policy"
	"tempvoice/internal/core/ports"
	"tempvoice/pkg/tracing"

	"go.uber.org/zap"
)

const (
	// DefaultInputTimeout bounds how long an interactive control waits for
	// the member to answer a prompt.
	DefaultInputTimeout = 30 * time.Second

	MaxUserLimit     = 99
	MaxStatusLength  = 100
	FieldRoomName    = "name"
	FieldRoomSize    = "size"
	FieldRoomStatus  = "status"
	defaultReasonFmt = "%s by %s (%d)"
)

// ControlService implements the owner controls of a room. Every control
// checks that the actor owns the room or holds a moderator role for it.
type ControlService struct {
	lifecycle *LifecycleService
	store     ports.GuildConfigStore
	platform  ports.Platform
	prompter  ports.Prompter
	sink      ports.LogSink
	logger    *zap.SugaredLogger

	commandTimeout time.Duration
	inputTimeout   time.Duration
	now            func() time.Time
}

func NewControlService(
	lifecycle *LifecycleService,
	store ports.GuildConfigStore,
	platform ports.Platform,
	prompter ports.Prompter,
	sink ports.LogSink,
	logger *zap.SugaredLogger,
	inputTimeout time.Duration,
) *ControlService {
	if inputTimeout <= 0 {
		inputTimeout = DefaultInputTimeout
	}
	return &ControlService{
		lifecycle:      lifecycle,
		store:          store,
		platform:       platform,
		prompter:       prompter,
		sink:           sink,
		logger:         logger,
		commandTimeout: lifecycle.commandTimeout,
		inputTimeout:   inputTimeout,
		now:            lifecycle.now,
	}
}

// Authorize resolves the creator policy governing room and checks that
// actor may manage it. A room without a tracked owner cannot be managed by
// anyone until it is claimed.
func (s *ControlService) Authorize(ctx context.Context, room *domain.Room, actor *domain.Member) (*domain.TempRoom, *domain.CreatorPolicy, Result) {
	guildPolicy, found := s.store.Policy(room.GuildID)
	if !found {
		return nil, nil, failed(ResultConfigMissing, domain.ErrPolicyNotFound)
	}
	if !guildPolicy.IsTempRoom(room) {
		return nil, nil, failed(ResultNotFound, domain.ErrRoomNotFound)
	}
	creator := guildPolicy.CreatorByCategory(room.ParentID)

	temp, tracked := s.lifecycle.Room(ctx, room.ID)
	if !tracked {
		return nil, creator, failed(ResultNotFound, domain.ErrRoomNotFound)
	}
	if !policy.CanManage(creator, temp, actor) {
		return temp, creator, Result{Kind: ResultForbidden, Room: temp, Err: domain.ErrNotPermitted}
	}
	return temp, creator, ok(temp)
}

// CheckEvictable refuses targets holding an eviction-immune role.
func (s *ControlService) CheckEvictable(creator *domain.CreatorPolicy, target *domain.Member) error {
	if policy.IsEvictionImmune(creator, target.Roles) {
		return domain.ErrEvictionImmune
	}
	return nil
}

// Evict kicks or bans target after authorizing actor.
func (s *ControlService) Evict(ctx context.Context, room *domain.Room, actor, target *domain.Member, mode domain.EvictMode) Result {
	_, creator, res := s.Authorize(ctx, room, actor)
	if !res.OK() {
		return res
	}
	if err := s.CheckEvictable(creator, target); err != nil {
		return failed(ResultForbidden, err)
	}
	return s.lifecycle.Evict(ctx, room, actor, target.ID, mode)
}

// Transfer hands the room to newOwner after authorizing actor.
func (s *ControlService) Transfer(ctx context.Context, room *domain.Room, actor *domain.Member, newOwner domain.MemberID) Result {
	if _, _, res := s.Authorize(ctx, room, actor); !res.OK() {
		return res
	}
	return s.lifecycle.TransferOwnership(ctx, room.ID, actor, newOwner)
}

// Rename changes the room name. The name is trimmed and must hold between
// 1 and 100 characters.
func (s *ControlService) Rename(ctx context.Context, room *domain.Room, actor *domain.Member, name string) Result {
	ctx, span := tracing.TraceLifecycle(ctx, "rename", uint64(room.GuildID), uint64(room.ID), uint64(actor.ID))
	defer span.End()

	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > policy.MaxRoomNameLength {
		return failed(ResultInvalidInput, fmt.Errorf("%w: room name must be 1-%d characters", domain.ErrInvalidInput, policy.MaxRoomNameLength))
	}

	temp, _, res := s.Authorize(ctx, room, actor)
	if !res.OK() {
		return res
	}

	edit := domain.RoomEdit{Name: &name, Reason: fmt.Sprintf(defaultReasonFmt, "Renamed", actor.Username, actor.ID)}
	if err := s.edit(ctx, room, edit); err != nil {
		return s.lifecycle.platformFailure(ctx, "edit_room", err)
	}

	s.record(ctx, domain.LogRoomRenamed, room, actor, 0, fmt.Sprintf("%s -> %s", room.Name, name))
	return ok(temp)
}

// ParseUserLimit validates a user-supplied room size: digits only, 0 to 99.
func ParseUserLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.TrimLeft(raw, "0123456789") != "" {
		return 0, fmt.Errorf("%w: room size must be a number", domain.ErrInvalidInput)
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit > MaxUserLimit {
		return 0, fmt.Errorf("%w: room size must be between 0 and %d", domain.ErrInvalidInput, MaxUserLimit)
	}
	return limit, nil
}

// Resize sets the user limit of the room. Zero removes the limit.
func (s *ControlService) Resize(ctx context.Context, room *domain.Room, actor *domain.Member, limit int) Result {
	ctx, span := tracing.TraceLifecycle(ctx, "resize", uint64(room.GuildID), uint64(room.ID), uint64(actor.ID))
	defer span.End()

	if limit < 0 || limit > MaxUserLimit {
		return failed(ResultInvalidInput, fmt.Errorf("%w: room size must be between 0 and %d", domain.ErrInvalidInput, MaxUserLimit))
	}

	temp, _, res := s.Authorize(ctx, room, actor)
	if !res.OK() {
		return res
	}

	edit := domain.RoomEdit{UserLimit: &limit, Reason: fmt.Sprintf(defaultReasonFmt, "Resized", actor.Username, actor.ID)}
	if err := s.edit(ctx, room, edit); err != nil {
		return s.lifecycle.platformFailure(ctx, "edit_room", err)
	}

	s.record(ctx, domain.LogRoomResized, room, actor, 0, strconv.Itoa(limit))
	return ok(temp)
}

// SetStatus changes the voice status of the room. An empty status clears it.
func (s *ControlService) SetStatus(ctx context.Context, room *domain.Room, actor *domain.Member, status string) Result {
	status = strings.TrimSpace(status)
	if utf8.RuneCountInString(status) > MaxStatusLength {
		return failed(ResultInvalidInput, fmt.Errorf("%w: status must be at most %d characters", domain.ErrInvalidInput, MaxStatusLength))
	}

	temp, _, res := s.Authorize(ctx, room, actor)
	if !res.OK() {
		return res
	}

	cctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()
	reason := fmt.Sprintf(defaultReasonFmt, "Status changed", actor.Username, actor.ID)
	if err := s.platform.SetRoomStatus(cctx, room.GuildID, room.ID, status, reason); err != nil {
		return s.lifecycle.platformFailure(ctx, "set_room_status", err)
	}

	s.record(ctx, domain.LogRoomStatus, room, actor, 0, status)
	return ok(temp)
}

// Lock denies CONNECT to the guild's default role.
func (s *ControlService) Lock(ctx context.Context, room *domain.Room, actor *domain.Member) Result {
	return s.setDefaultConnect(ctx, room, actor, true)
}

// Unlock allows CONNECT for the guild's default role.
func (s *ControlService) Unlock(ctx context.Context, room *domain.Room, actor *domain.Member) Result {
	return s.setDefaultConnect(ctx, room, actor, false)
}

func (s *ControlService) setDefaultConnect(ctx context.Context, room *domain.Room, actor *domain.Member, locked bool) Result {
	temp, _, res := s.Authorize(ctx, room, actor)
	if !res.OK() {
		return res
	}

	guild, err := s.lifecycle.guild(ctx, room.GuildID)
	if err != nil {
		return s.lifecycle.platformFailure(ctx, "guild", err)
	}

	ow, kind, verb := policy.UnlockOverwrite(guild.DefaultRoleID), domain.LogRoomUnlocked, "Unlocked"
	if locked {
		ow, kind, verb = policy.LockOverwrite(guild.DefaultRoleID), domain.LogRoomLocked, "Locked"
	}

	if err := s.lifecycle.setOverwrite(ctx, room.GuildID, room.ID, ow, fmt.Sprintf(defaultReasonFmt, verb, actor.Username, actor.ID)); err != nil {
		return s.lifecycle.platformFailure(ctx, "set_overwrite", err)
	}

	s.record(ctx, kind, room, actor, 0, "")
	return ok(temp)
}

// Invite allows target to connect to the room regardless of its lock state.
func (s *ControlService) Invite(ctx context.Context, room *domain.Room, actor *domain.Member, target domain.MemberID) Result {
	temp, _, res := s.Authorize(ctx, room, actor)
	if !res.OK() {
		return res
	}

	reason := fmt.Sprintf(defaultReasonFmt, "Invited", actor.Username, actor.ID)
	if err := s.lifecycle.setOverwrite(ctx, room.GuildID, room.ID, policy.InviteOverwrite(target), reason); err != nil {
		return s.lifecycle.platformFailure(ctx, "set_overwrite", err)
	}

	s.record(ctx, domain.LogMemberInvited, room, actor, target, "")
	return ok(temp)
}

// Ask authorizes actor and prompts them for the value of field. When the
// member does not answer within the input timeout, ResultIgnored is
// returned and nothing changes.
func (s *ControlService) Ask(ctx context.Context, room *domain.Room, actor *domain.Member, field string) (string, Result) {
	if s.prompter == nil {
		return "", failed(ResultInvalidInput, fmt.Errorf("%w: interactive input unavailable", domain.ErrInvalidInput))
	}
	temp, _, res := s.Authorize(ctx, room, actor)
	if !res.OK() {
		return "", res
	}

	pctx, cancel := context.WithTimeout(ctx, s.inputTimeout)
	value, err := s.prompter.Prompt(pctx, actor.ID, field)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrInputTimeout) {
			s.logger.Debugw("prompt abandoned", "room_id", room.ID, "member_id", actor.ID, "field", field)
			return "", failed(ResultIgnored, domain.ErrInputTimeout)
		}
		return "", s.lifecycle.platformFailure(ctx, "prompt", err)
	}
	if strings.TrimSpace(value) == "" {
		return "", failed(ResultInvalidInput, fmt.Errorf("%w: empty %s", domain.ErrInvalidInput, field))
	}
	return value, ok(temp)
}

// Apply sets field to a value collected by Ask.
func (s *ControlService) Apply(ctx context.Context, room *domain.Room, actor *domain.Member, field, value string) Result {
	switch field {
	case FieldRoomName:
		return s.Rename(ctx, room, actor, value)
	case FieldRoomSize:
		limit, err := ParseUserLimit(value)
		if err != nil {
			return failed(ResultInvalidInput, err)
		}
		return s.Resize(ctx, room, actor, limit)
	case FieldRoomStatus:
		return s.SetStatus(ctx, room, actor, value)
	default:
		return failed(ResultInvalidInput, fmt.Errorf("%w: unknown field %q", domain.ErrInvalidInput, field))
	}
}

// Prompted asks actor for field and applies the answer in one call.
func (s *ControlService) Prompted(ctx context.Context, room *domain.Room, actor *domain.Member, field string) Result {
	value, res := s.Ask(ctx, room, actor, field)
	if !res.OK() {
		return res
	}
	return s.Apply(ctx, room, actor, field, value)
}

func (s *ControlService) edit(ctx context.Context, room *domain.Room, edit domain.RoomEdit) error {
	ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()
	return s.platform.EditRoom(ctx, room.GuildID, room.ID, edit)
}

func (s *ControlService) record(ctx context.Context, kind domain.LogKind, room *domain.Room, actor *domain.Member, target domain.MemberID, detail string) {
	s.logger.Infow("room control applied",
		"kind", kind,
		"guild_id", room.GuildID,
		"room_id", room.ID,
		"actor", actor.ID,
		"detail", detail,
	)
	s.sink.Record(ctx, domain.LogEntry{
		Kind:       kind,
		GuildID:    room.GuildID,
		LogChannel: s.lifecycle.logChannel(room.GuildID),
		Actor:      actor.ID,
		Target:     target,
		RoomID:     room.ID,
		RoomName:   room.Name,
		Detail:     detail,
		At:         s.now(),
	})
}
