package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tempvoice/internal/core/domain"
	"tempvoice/internal/core/policy"
	"tempvoice/internal/core/ports"
	"tempvoice/pkg/keylock"
	"tempvoice/pkg/tracing"

	"go.uber.org/zap"
)

// DefaultCommandTimeout bounds every platform command issued by the engine.
const DefaultCommandTimeout = 10 * time.Second

// LifecycleService creates, deletes and hands over ephemeral rooms. It owns
// the room registry: no other component mutates it.
type LifecycleService struct {
	rooms    ports.RoomRepository
	store    ports.GuildConfigStore
	cooldown *CooldownService
	platform ports.Platform
	sink     ports.LogSink
	metrics  ports.LifecycleMetrics
	logger   *zap.SugaredLogger

	now            func() time.Time
	commandTimeout time.Duration
	roomLocks      *keylock.KeyLock[domain.ChannelID]
}

// LifecycleOption customises a LifecycleService.
type LifecycleOption func(*LifecycleService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) LifecycleOption {
	return func(s *LifecycleService) { s.now = now }
}

// WithCommandTimeout bounds each platform command.
func WithCommandTimeout(d time.Duration) LifecycleOption {
	return func(s *LifecycleService) { s.commandTimeout = d }
}

// WithMetrics attaches a metrics observer.
func WithMetrics(m ports.LifecycleMetrics) LifecycleOption {
	return func(s *LifecycleService) { s.metrics = m }
}

func NewLifecycleService(
	rooms ports.RoomRepository,
	store ports.GuildConfigStore,
	cooldown *CooldownService,
	platform ports.Platform,
	sink ports.LogSink,
	logger *zap.SugaredLogger,
	opts ...LifecycleOption,
) *LifecycleService {
	s := &LifecycleService{
		rooms:          rooms,
		store:          store,
		cooldown:       cooldown,
		platform:       platform,
		sink:           sink,
		metrics:        noopMetrics{},
		logger:         logger,
		now:            time.Now,
		commandTimeout: DefaultCommandTimeout,
		roomLocks:      keylock.New[domain.ChannelID](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Room returns the registry entry of a room.
func (s *LifecycleService) Room(ctx context.Context, id domain.ChannelID) (*domain.TempRoom, bool) {
	room, err := s.rooms.Get(ctx, id)
	if err != nil {
		return nil, false
	}
	return room, true
}

// Rooms lists every tracked room.
func (s *LifecycleService) Rooms(ctx context.Context) ([]*domain.TempRoom, error) {
	return s.rooms.List(ctx)
}

// Cooldown exposes the gate so interaction handlers can render retry times.
func (s *LifecycleService) Cooldown() *CooldownService {
	return s.cooldown
}

// HandleEvent dispatches a voice event to the matching operation. A move
// yields the leave result followed by the join result.
func (s *LifecycleService) HandleEvent(ctx context.Context, ev domain.VoiceEvent) []Result {
	switch ev.Type {
	case domain.VoiceJoin:
		if ev.To == nil {
			return []Result{failed(ResultInvalidInput, fmt.Errorf("%w: join without room", domain.ErrInvalidInput))}
		}
		return []Result{s.HandleJoin(ctx, ev.To, &ev.Member)}
	case domain.VoiceLeave:
		if ev.From == nil {
			return []Result{failed(ResultInvalidInput, fmt.Errorf("%w: leave without room", domain.ErrInvalidInput))}
		}
		return []Result{s.HandleLeave(ctx, ev.From, &ev.Member)}
	case domain.VoiceMove:
		if ev.From == nil || ev.To == nil {
			return []Result{failed(ResultInvalidInput, fmt.Errorf("%w: move needs both rooms", domain.ErrInvalidInput))}
		}
		leave, join := s.HandleMove(ctx, ev.From, ev.To, &ev.Member)
		return []Result{leave, join}
	default:
		return []Result{failed(ResultInvalidInput, fmt.Errorf("%w: unknown event type %q", domain.ErrInvalidInput, ev.Type))}
	}
}

// HandleJoin spawns a room when member joins an entry point.
func (s *LifecycleService) HandleJoin(ctx context.Context, entry *domain.Room, member *domain.Member) Result {
	ctx, span := tracing.TraceLifecycle(ctx, "handle_join", uint64(entry.GuildID), uint64(entry.ID), uint64(member.ID))
	defer span.End()

	guildPolicy, found := s.store.Policy(entry.GuildID)
	if !found {
		s.logger.Warnw("guild not configured", "guild_id", entry.GuildID)
		return failed(ResultConfigMissing, domain.ErrPolicyNotFound)
	}

	creator := guildPolicy.CreatorByChannel(entry.ID)
	if creator == nil {
		return Result{Kind: ResultIgnored}
	}

	decision, release := s.cooldown.Acquire(member.ID)
	defer release()

	if !decision.Allowed {
		s.metrics.CooldownDenied(entry.GuildID)
		s.logger.Infow("room creation on cooldown",
			"guild_id", entry.GuildID,
			"member_id", member.ID,
			"retry_at", decision.RetryAt,
		)
		s.notifyCooldown(ctx, member.ID, decision.RetryAt)
		return Result{Kind: ResultCooldownDenied, RetryAt: decision.RetryAt}
	}

	guild, err := s.guild(ctx, entry.GuildID)
	if err != nil {
		return s.platformFailure(ctx, "guild", err)
	}

	plan := policy.BuildCreationOverwrites(creator, member.ID, guild)
	overwrites := plan.Overwrites
	if plan.CopyFromEntry {
		overwrites = append([]domain.Overwrite(nil), entry.Overwrites...)
	}

	req := domain.CreateRoomRequest{
		GuildID:    entry.GuildID,
		ParentID:   creator.Category,
		Name:       policy.RoomName(creator, member),
		UserLimit:  creator.Default.ChannelSize,
		Bitrate:    guild.BitrateLimit,
		Overwrites: overwrites,
		Reason:     fmt.Sprintf("User '%s' (%d) joined '%s'", member.Username, member.ID, entry.Name),
	}

	roomID, err := s.createRoom(ctx, req)
	if err != nil {
		return s.platformFailure(ctx, "create_room", err)
	}

	temp := &domain.TempRoom{
		RoomID:    roomID,
		GuildID:   entry.GuildID,
		Owner:     member.ID,
		CreatedAt: s.now(),
	}

	unlock := s.roomLocks.Lock(roomID)
	err = s.rooms.Put(ctx, temp)
	unlock()
	if err != nil {
		s.rollbackRoom(ctx, temp)
		return failed(ResultPlatformFailure, fmt.Errorf("failed to track room: %w", err))
	}

	if err := s.moveMember(ctx, entry.GuildID, member.ID, roomID); err != nil {
		s.rollbackRoom(ctx, temp)
		return s.platformFailure(ctx, "move_member", err)
	}

	if status := creator.Default.ChannelStatus; status != "" {
		if err := s.setStatus(ctx, entry.GuildID, roomID, status); err != nil {
			s.logger.Warnw("failed to apply default room status", "room_id", roomID, "error", err)
		}
	}

	s.cooldown.Record(member.ID)
	s.metrics.RoomCreated(entry.GuildID)

	s.logger.Infow("temp room created",
		"guild_id", entry.GuildID,
		"room_id", roomID,
		"owner", member.ID,
		"creator", creator.Name,
	)
	s.sink.Record(ctx, domain.LogEntry{
		Kind:       domain.LogRoomCreated,
		GuildID:    entry.GuildID,
		LogChannel: guildPolicy.LogChannel,
		Actor:      member.ID,
		RoomID:     roomID,
		RoomName:   req.Name,
		At:         temp.CreatedAt,
	})

	return ok(temp)
}

// HandleLeave deletes an ephemeral room once its last member left. The
// registry entry is dropped even when the platform delete fails.
func (s *LifecycleService) HandleLeave(ctx context.Context, room *domain.Room, member *domain.Member) Result {
	ctx, span := tracing.TraceLifecycle(ctx, "handle_leave", uint64(room.GuildID), uint64(room.ID), uint64(member.ID))
	defer span.End()

	guildPolicy, found := s.store.Policy(room.GuildID)
	if !found {
		s.logger.Warnw("guild not configured", "guild_id", room.GuildID)
		return failed(ResultConfigMissing, domain.ErrPolicyNotFound)
	}

	if !guildPolicy.IsTempRoom(room) {
		return Result{Kind: ResultIgnored}
	}

	if remainingMembers(room, member.ID) > 0 {
		return Result{Kind: ResultIgnored}
	}

	unlock := s.roomLocks.Lock(room.ID)
	defer unlock()

	tracked, _ := s.rooms.Get(ctx, room.ID)

	deleteErr := s.deleteRoom(ctx, room.GuildID, room.ID, fmt.Sprintf("All users left the channel '%s'", room.Name))
	if deleteErr != nil {
		s.metrics.PlatformFailure("delete_room")
		s.logger.Errorw("failed to delete temp room", "room_id", room.ID, "error", deleteErr)
	}

	if err := s.rooms.Remove(ctx, room.ID); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
		s.logger.Warnw("failed to untrack room", "room_id", room.ID, "error", err)
	}

	now := s.now()
	var lifetime time.Duration
	if tracked != nil {
		lifetime = tracked.Lifetime(now)
	}
	s.metrics.RoomDeleted(room.GuildID, lifetime.Seconds())

	s.logger.Infow("temp room deleted",
		"guild_id", room.GuildID,
		"room_id", room.ID,
		"member_id", member.ID,
		"tracked", tracked != nil,
		"lifetime", domain.FormatLifetime(lifetime),
	)
	s.sink.Record(ctx, domain.LogEntry{
		Kind:       domain.LogRoomDeleted,
		GuildID:    room.GuildID,
		LogChannel: guildPolicy.LogChannel,
		Actor:      member.ID,
		RoomID:     room.ID,
		RoomName:   room.Name,
		Lifetime:   lifetime,
		At:         now,
	})

	if deleteErr != nil {
		tracing.RecordError(ctx, deleteErr)
		return Result{Kind: ResultPlatformFailure, Room: tracked, Err: deleteErr}
	}
	return ok(tracked)
}

// HandleMove runs a leave on from followed by a join on to. The two steps
// are not atomic.
func (s *LifecycleService) HandleMove(ctx context.Context, from, to *domain.Room, member *domain.Member) (Result, Result) {
	leave := s.HandleLeave(ctx, from, member)
	join := s.HandleJoin(ctx, to, member)
	return leave, join
}

// ClaimOwnership makes requester the owner of room. An untracked room is
// adopted unconditionally; a tracked one only changes hands when its
// current owner is not in it.
func (s *LifecycleService) ClaimOwnership(ctx context.Context, room *domain.Room, requester *domain.Member) Result {
	ctx, span := tracing.TraceLifecycle(ctx, "claim_ownership", uint64(room.GuildID), uint64(room.ID), uint64(requester.ID))
	defer span.End()

	unlock := s.roomLocks.Lock(room.ID)
	defer unlock()

	temp, err := s.rooms.Get(ctx, room.ID)
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		temp = &domain.TempRoom{
			RoomID:    room.ID,
			GuildID:   room.GuildID,
			Owner:     requester.ID,
			CreatedAt: s.now(),
		}
	case err != nil:
		return failed(ResultPlatformFailure, err)
	case room.Contains(temp.Owner):
		return Result{Kind: ResultConflict, Room: temp, Err: domain.ErrOwnerPresent}
	default:
		temp.Owner = requester.ID
	}

	if err := s.rooms.Put(ctx, temp); err != nil {
		return failed(ResultPlatformFailure, err)
	}

	s.metrics.OwnershipChanged("claim")
	s.logger.Infow("room ownership claimed", "room_id", room.ID, "owner", requester.ID)
	s.sink.Record(ctx, domain.LogEntry{
		Kind:       domain.LogOwnershipClaimed,
		GuildID:    room.GuildID,
		LogChannel: s.logChannel(room.GuildID),
		Actor:      requester.ID,
		RoomID:     room.ID,
		RoomName:   room.Name,
		At:         s.now(),
	})

	return ok(temp)
}

// TransferOwnership hands a tracked room to newOwner. Neither the caller
// nor the new owner need to be in the room.
func (s *LifecycleService) TransferOwnership(ctx context.Context, roomID domain.ChannelID, actor *domain.Member, newOwner domain.MemberID) Result {
	ctx, span := tracing.TraceLifecycle(ctx, "transfer_ownership", uint64(actor.GuildID), uint64(roomID), uint64(newOwner))
	defer span.End()

	unlock := s.roomLocks.Lock(roomID)
	defer unlock()

	temp, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return failed(ResultNotFound, err)
	}

	temp.Owner = newOwner
	if err := s.rooms.Put(ctx, temp); err != nil {
		return failed(ResultPlatformFailure, err)
	}

	s.metrics.OwnershipChanged("transfer")
	s.logger.Infow("room ownership transferred", "room_id", roomID, "actor", actor.ID, "owner", newOwner)
	s.sink.Record(ctx, domain.LogEntry{
		Kind:       domain.LogOwnershipTransfer,
		GuildID:    temp.GuildID,
		LogChannel: s.logChannel(temp.GuildID),
		Actor:      actor.ID,
		Target:     newOwner,
		RoomID:     roomID,
		At:         s.now(),
	})

	return ok(temp)
}

// Evict removes target from room. Authorization, including eviction
// immunity, is checked by the caller. A kick requires target to be in the
// room; a ban always denies CONNECT first and disconnects only when present.
func (s *LifecycleService) Evict(ctx context.Context, room *domain.Room, actor *domain.Member, target domain.MemberID, mode domain.EvictMode) Result {
	ctx, span := tracing.TraceLifecycle(ctx, "evict_"+string(mode), uint64(room.GuildID), uint64(room.ID), uint64(target))
	defer span.End()

	var kind domain.LogKind
	switch mode {
	case domain.EvictKick:
		if !room.Contains(target) {
			return failed(ResultNotFound, domain.ErrNotInRoom)
		}
		if err := s.disconnect(ctx, room.GuildID, target); err != nil {
			return s.platformFailure(ctx, "disconnect_member", err)
		}
		kind = domain.LogMemberKicked
	case domain.EvictBan:
		reason := fmt.Sprintf("Banned from '%s' by %d", room.Name, actor.ID)
		if err := s.setOverwrite(ctx, room.GuildID, room.ID, policy.BanOverwrite(target), reason); err != nil {
			return s.platformFailure(ctx, "set_overwrite", err)
		}
		if room.Contains(target) {
			if err := s.disconnect(ctx, room.GuildID, target); err != nil {
				return s.platformFailure(ctx, "disconnect_member", err)
			}
		}
		kind = domain.LogMemberBanned
	default:
		return failed(ResultInvalidInput, fmt.Errorf("%w: evict mode %q", domain.ErrInvalidInput, mode))
	}

	s.logger.Infow("member evicted", "room_id", room.ID, "actor", actor.ID, "target", target, "mode", mode)
	s.sink.Record(ctx, domain.LogEntry{
		Kind:       kind,
		GuildID:    room.GuildID,
		LogChannel: s.logChannel(room.GuildID),
		Actor:      actor.ID,
		Target:     target,
		RoomID:     room.ID,
		RoomName:   room.Name,
		At:         s.now(),
	})

	temp, _ := s.rooms.Get(ctx, room.ID)
	return ok(temp)
}

// rollbackRoom undoes a half-finished creation so no untracked empty room
// and no registry entry survive a failed join.
func (s *LifecycleService) rollbackRoom(ctx context.Context, temp *domain.TempRoom) {
	unlock := s.roomLocks.Lock(temp.RoomID)
	defer unlock()

	_ = s.rooms.Remove(ctx, temp.RoomID)
	if err := s.deleteRoom(ctx, temp.GuildID, temp.RoomID, "Room creation could not be completed"); err != nil {
		s.logger.Errorw("failed to roll back temp room", "room_id", temp.RoomID, "error", err)
	}
}

func (s *LifecycleService) notifyCooldown(ctx context.Context, member domain.MemberID, retryAt time.Time) {
	text := fmt.Sprintf("You can create a new channel <t:%d:R>", retryAt.Unix())
	cctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()
	if err := s.platform.SendDirect(cctx, member, text); err != nil {
		s.logger.Debugw("failed to send cooldown notice", "member_id", member, "error", err)
	}
}

func (s *LifecycleService) platformFailure(ctx context.Context, operation string, err error) Result {
	s.metrics.PlatformFailure(operation)
	s.logger.Errorw("platform command failed", "operation", operation, "error", err)
	tracing.RecordError(ctx, err)
	return failed(ResultPlatformFailure, fmt.Errorf("%s: %w", operation, err))
}

func (s *LifecycleService) logChannel(guildID domain.GuildID) domain.ChannelID {
	if p, found := s.store.Policy(guildID); found {
		return p.LogChannel
	}
	return 0
}

func (s *LifecycleService) guild(ctx context.Context, id domain.GuildID) (*domain.Guild, error) {
	ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()
	return s.platform.Guild(ctx, id)
}

func (s *LifecycleService) createRoom(ctx context.Context, req domain.CreateRoomRequest) (domain.ChannelID, error) {
	ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()
	return s.platform.CreateRoom(ctx, req)
}

func (s *LifecycleService) deleteRoom(ctx context.Context, guildID domain.GuildID, roomID domain.ChannelID, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()
	return s.platform.DeleteRoom(ctx, guildID, roomID, reason)
}

func (s *LifecycleService) moveMember(ctx context.Context, guildID domain.GuildID, member domain.MemberID, roomID domain.ChannelID) error {
	ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()
	return s.platform.MoveMember(ctx, guildID, member, roomID)
}

func (s *LifecycleService) setStatus(ctx context.Context, guildID domain.GuildID, roomID domain.ChannelID, status string) error {
	ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()
	return s.platform.SetRoomStatus(ctx, guildID, roomID, status, "Default channel status")
}

func (s *LifecycleService) setOverwrite(ctx context.Context, guildID domain.GuildID, roomID domain.ChannelID, ow domain.Overwrite, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()
	return s.platform.SetOverwrite(ctx, guildID, roomID, ow, reason)
}

func (s *LifecycleService) disconnect(ctx context.Context, guildID domain.GuildID, member domain.MemberID) error {
	ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()
	return s.platform.DisconnectMember(ctx, guildID, member)
}

// remainingMembers counts the occupants of room other than the departing member.
func remainingMembers(room *domain.Room, departing domain.MemberID) int {
	n := 0
	for _, m := range room.Members {
		if m != departing {
			n++
		}
	}
	return n
}

type noopMetrics struct{}

func (noopMetrics) RoomCreated(domain.GuildID)          {}
func (noopMetrics) RoomDeleted(domain.GuildID, float64) {}
func (noopMetrics) CooldownDenied(domain.GuildID)       {}
func (noopMetrics) PlatformFailure(string)              {}
func (noopMetrics) OwnershipChanged(string)             {}
