package reliability

import (
	"context"
	"slices"
	"time"

	"tempvoice/internal/core/domain"
	"tempvoice/internal/core/ports"
	"tempvoice/pkg/cache"
)

// GuildCache serves Guild lookups from a short-lived cache and passes every
// other command straight through.
type GuildCache struct {
	ports.Platform
	guilds *cache.Cache[domain.GuildID, domain.Guild]
}

var _ ports.Platform = (*GuildCache)(nil)

// NewGuildCache caches guild lookups on platform for ttl.
func NewGuildCache(platform ports.Platform, ttl time.Duration) *GuildCache {
	return &GuildCache{
		Platform: platform,
		guilds:   cache.New[domain.GuildID, domain.Guild](ttl),
	}
}

func (c *GuildCache) Guild(ctx context.Context, id domain.GuildID) (*domain.Guild, error) {
	g, err := c.guilds.GetOrLoad(ctx, id, func(ctx context.Context) (domain.Guild, error) {
		g, err := c.Platform.Guild(ctx, id)
		if err != nil {
			return domain.Guild{}, err
		}
		return *g, nil
	})
	if err != nil {
		return nil, err
	}
	g.Roles = slices.Clone(g.Roles)
	return &g, nil
}

// Forget drops the cached entry for a guild.
func (c *GuildCache) Forget(id domain.GuildID) {
	c.guilds.Delete(id)
}

// Close stops the cache sweeper.
func (c *GuildCache) Close() {
	c.guilds.Stop()
}
