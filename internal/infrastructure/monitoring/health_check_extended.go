package monitoring

import (
	"context"
	"errors"
	"time"

	"tempvoice/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

var (
	ErrBridgeDisconnected = errors.New("platform gateway not connected")
	ErrNoGuilds           = errors.New("no guild configuration loaded")
)

// AddRedisCheck pings the event bus connection.
func (h *HealthChecker) AddRedisCheck(client *redis.Client, interval, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, interval, timeout)
}

// AddBridgeCheck reports unhealthy while no gateway is attached.
func (h *HealthChecker) AddBridgeCheck(connected func() bool, interval, timeout time.Duration) {
	h.AddCheck("bridge", func(context.Context) error {
		if !connected() {
			return ErrBridgeDisconnected
		}
		return nil
	}, interval, timeout)
}

// AddGuildConfigCheck reports unhealthy while the snapshot is empty.
func (h *HealthChecker) AddGuildConfigCheck(store ports.GuildConfigStore, interval, timeout time.Duration) {
	h.AddCheck("guild_config", func(context.Context) error {
		if store.Snapshot().Len() == 0 {
			return ErrNoGuilds
		}
		return nil
	}, interval, timeout)
}

// Readiness probes every dependency now. The process is ready only when the
// gateway is attached and guild configuration is loaded.
func (h *HealthChecker) Readiness(ctx context.Context) HealthReport {
	return h.CheckAll(ctx)
}

// IsReady probes every dependency and reports whether all passed.
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status == StatusHealthy
}
