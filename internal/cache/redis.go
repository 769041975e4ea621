package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"inkwell/internal/logging"
	"inkwell/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "inkwell:page:"

// Redis 多实例部署时共享的页面缓存
type Redis struct {
	client *redis.Client
}

// NewRedis accepts either host:port or a redis:// URL and pings the server.
func NewRedis(addr string) (*Redis, error) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL %q: %w", addr, err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{client: client}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	s, err := r.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.Warn().Err(err).Str("key", key).Msg("redis get failed")
		}
		metrics.CacheMisses.WithLabelValues("redis").Inc()
		return "", false
	}
	metrics.CacheHits.WithLabelValues("redis").Inc()
	return s, true
}

// Set is best-effort; a failed write only means the next request renders again.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := r.client.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("redis set failed")
	}
}

func (r *Redis) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("redis del failed")
	}
}

// Clear 只删除本应用前缀下的键，不影响同库其它数据
func (r *Redis) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan page cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
