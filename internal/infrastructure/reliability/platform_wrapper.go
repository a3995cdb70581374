package reliability

import (
	"context"
	"errors"

	"tempvoice/internal/core/domain"
	"tempvoice/internal/core/ports"
	"tempvoice/pkg/circuitbreaker"

	"go.uber.org/zap"
)

// PlatformWrapper guards a Platform with a circuit breaker. Commands are
// never retried: a repeated create or move could duplicate a room.
type PlatformWrapper struct {
	platform       ports.Platform
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *zap.SugaredLogger
}

var _ ports.Platform = (*PlatformWrapper)(nil)

// countsAsFailure trips the breaker only for transport trouble. A command
// the platform answered, even with a rejection, proves the bridge is up.
func countsAsFailure(err error) bool {
	if errors.Is(err, domain.ErrCommandRejected) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// NewPlatformWrapper wraps platform with a breaker built from cbConfig.
// onStateChange may be nil.
func NewPlatformWrapper(
	platform ports.Platform,
	cbConfig circuitbreaker.Config,
	logger *zap.SugaredLogger,
	onStateChange func(from, to circuitbreaker.State),
) *PlatformWrapper {
	cbConfig.IsFailure = countsAsFailure
	w := &PlatformWrapper{
		platform:       platform,
		circuitBreaker: circuitbreaker.New(cbConfig),
		logger:         logger,
	}

	w.circuitBreaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("platform circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
		if onStateChange != nil {
			onStateChange(from, to)
		}
	})
	return w
}

// guard maps an open breaker onto ErrBridgeUnavailable so callers see a
// single unavailability error.
func (w *PlatformWrapper) guard(ctx context.Context, fn func() error) error {
	err := w.circuitBreaker.Execute(ctx, fn)
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return errors.Join(domain.ErrBridgeUnavailable, err)
	}
	return err
}

func (w *PlatformWrapper) Guild(ctx context.Context, id domain.GuildID) (*domain.Guild, error) {
	var guild *domain.Guild
	err := w.guard(ctx, func() error {
		var err error
		guild, err = w.platform.Guild(ctx, id)
		return err
	})
	return guild, err
}

func (w *PlatformWrapper) CreateRoom(ctx context.Context, req domain.CreateRoomRequest) (domain.ChannelID, error) {
	var id domain.ChannelID
	err := w.guard(ctx, func() error {
		var err error
		id, err = w.platform.CreateRoom(ctx, req)
		return err
	})
	return id, err
}

func (w *PlatformWrapper) DeleteRoom(ctx context.Context, guildID domain.GuildID, roomID domain.ChannelID, reason string) error {
	return w.guard(ctx, func() error {
		return w.platform.DeleteRoom(ctx, guildID, roomID, reason)
	})
}

func (w *PlatformWrapper) EditRoom(ctx context.Context, guildID domain.GuildID, roomID domain.ChannelID, edit domain.RoomEdit) error {
	return w.guard(ctx, func() error {
		return w.platform.EditRoom(ctx, guildID, roomID, edit)
	})
}

func (w *PlatformWrapper) SetRoomStatus(ctx context.Context, guildID domain.GuildID, roomID domain.ChannelID, status, reason string) error {
	return w.guard(ctx, func() error {
		return w.platform.SetRoomStatus(ctx, guildID, roomID, status, reason)
	})
}

func (w *PlatformWrapper) SetOverwrite(ctx context.Context, guildID domain.GuildID, roomID domain.ChannelID, ow domain.Overwrite, reason string) error {
	return w.guard(ctx, func() error {
		return w.platform.SetOverwrite(ctx, guildID, roomID, ow, reason)
	})
}

func (w *PlatformWrapper) MoveMember(ctx context.Context, guildID domain.GuildID, member domain.MemberID, roomID domain.ChannelID) error {
	return w.guard(ctx, func() error {
		return w.platform.MoveMember(ctx, guildID, member, roomID)
	})
}

func (w *PlatformWrapper) DisconnectMember(ctx context.Context, guildID domain.GuildID, member domain.MemberID) error {
	return w.guard(ctx, func() error {
		return w.platform.DisconnectMember(ctx, guildID, member)
	})
}

func (w *PlatformWrapper) SendDirect(ctx context.Context, member domain.MemberID, text string) error {
	return w.guard(ctx, func() error {
		return w.platform.SendDirect(ctx, member, text)
	})
}

func (w *PlatformWrapper) SendLog(ctx context.Context, entry domain.LogEntry) error {
	return w.guard(ctx, func() error {
		return w.platform.SendLog(ctx, entry)
	})
}

// Stats returns circuit breaker statistics
func (w *PlatformWrapper) Stats() circuitbreaker.Stats {
	return w.circuitBreaker.GetStats()
}
