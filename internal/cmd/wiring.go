package cmd

import (
	"github.com/redis/go-redis/v9"

	"github.com/solvedrelay/solvedrelay/internal/config"
	"github.com/solvedrelay/solvedrelay/internal/gfg"
	"github.com/solvedrelay/solvedrelay/internal/ratelimit"
)

func newUpstreamClient(cfg *config.Config) *gfg.Client {
	return &gfg.Client{
		URL:     cfg.Upstream.URL,
		Timeout: cfg.Upstream.Timeout,
		Pacer:   gfg.NewPacer(cfg.Upstream.RPS, cfg.Upstream.Burst),
	}
}

// newRedisStats returns nil when no Redis address is configured.
func newRedisStats(cfg *config.Config) *ratelimit.RedisStats {
	if !cfg.Stats.Enabled() {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Stats.RedisAddr,
		Password: cfg.Stats.RedisPassword,
		DB:       cfg.Stats.RedisDB,
	})
	return ratelimit.NewRedisStats(rdb,
		ratelimit.WithStatsPrefix(cfg.Stats.Prefix),
		ratelimit.WithStatsTTL(cfg.Stats.TTL),
	)
}
