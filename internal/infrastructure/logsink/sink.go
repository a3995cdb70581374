// Package logsink delivers lifecycle log entries to the process log, the
// guild's log channel and any other configured destination.
package logsink

import (
	"context"
	"time"

	"tempvoice/internal/core/domain"
	"tempvoice/internal/core/ports"

	"go.uber.org/zap"
)

// Multi fans an entry out to every sink in order.
type Multi []ports.LogSink

func (m Multi) Record(ctx context.Context, entry domain.LogEntry) {
	for _, sink := range m {
		sink.Record(ctx, entry)
	}
}

// ZapSink writes entries to the structured process log.
type ZapSink struct {
	logger *zap.SugaredLogger
}

func NewZapSink(logger *zap.SugaredLogger) *ZapSink {
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Record(ctx context.Context, entry domain.LogEntry) {
	fields := []interface{}{
		"kind", entry.Kind,
		"guild_id", entry.GuildID,
		"room_id", entry.RoomID,
		"actor", entry.Actor,
	}
	if entry.Target != 0 {
		fields = append(fields, "target", entry.Target)
	}
	if entry.RoomName != "" {
		fields = append(fields, "room_name", entry.RoomName)
	}
	if entry.Detail != "" {
		fields = append(fields, "detail", entry.Detail)
	}
	if entry.Kind == domain.LogRoomDeleted {
		fields = append(fields, "lifetime", domain.FormatLifetime(entry.Lifetime))
	}
	s.logger.Infow("room activity", fields...)
}

// PlatformSink posts entries to the guild's log channel. Entries without a
// log channel are skipped. Delivery failures are logged and dropped.
type PlatformSink struct {
	platform ports.Platform
	logger   *zap.SugaredLogger
	timeout  time.Duration
}

func NewPlatformSink(platform ports.Platform, timeout time.Duration, logger *zap.SugaredLogger) *PlatformSink {
	return &PlatformSink{platform: platform, logger: logger, timeout: timeout}
}

func (s *PlatformSink) Record(ctx context.Context, entry domain.LogEntry) {
	if entry.LogChannel == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.platform.SendLog(ctx, entry); err != nil {
		s.logger.Warnw("failed to post log entry",
			"error", err,
			"guild_id", entry.GuildID,
			"log_channel", entry.LogChannel,
			"kind", entry.Kind,
		)
	}
}
