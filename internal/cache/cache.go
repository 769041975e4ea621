// Package cache 页面缓存：进程内 LRU 或 Redis
//
// 值是渲染好的 HTML 片段。写入内容不会主动失效缓存，
// 只能等 TTL 过期或显式 Clear。
package cache

import (
	"context"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/logging"
)

// Store is implemented by the memory and redis backends.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context) error
}

// New 按配置创建缓存，Redis 不可用时退回进程内缓存
func New(cfg *config.Config) Store {
	if cfg.CacheBackend == "redis" {
		store, err := NewRedis(cfg.RedisURL)
		if err == nil {
			logging.Info().Str("addr", cfg.RedisURL).Msg("Page cache using redis")
			return store
		}
		logging.Warn().Err(err).Msg("Redis unavailable, falling back to memory cache")
	}
	return NewMemory(cfg.CacheSize)
}
