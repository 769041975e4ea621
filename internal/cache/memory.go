package cache

import (
	"context"
	"time"

	"inkwell/internal/logging"
	"inkwell/internal/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
)

// item 包装缓存数据和过期时间
type item struct {
	Data      string
	ExpiresAt time.Time
}

// Memory 进程内 LRU 缓存，容量满时淘汰最久未使用的条目
type Memory struct {
	lruCache *lru.Cache[string, item]
	now      func() time.Time
}

func NewMemory(size int) *Memory {
	l, err := lru.New[string, item](size)
	if err != nil {
		// only fails for size <= 0
		logging.Warn().Err(err).Int("size", size).Msg("Invalid cache size, using 500")
		l, _ = lru.New[string, item](500)
	}
	return &Memory{lruCache: l, now: time.Now}
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) {
	m.lruCache.Add(key, item{Data: value, ExpiresAt: m.now().Add(ttl)})
}

// Get 获取缓存，不存在或已过期返回 false
func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	val, ok := m.lruCache.Get(key)
	if !ok {
		metrics.CacheMisses.WithLabelValues("memory").Inc()
		return "", false
	}
	if m.now().After(val.ExpiresAt) {
		m.lruCache.Remove(key)
		metrics.CacheMisses.WithLabelValues("memory").Inc()
		return "", false
	}
	metrics.CacheHits.WithLabelValues("memory").Inc()
	return val.Data, true
}

func (m *Memory) Delete(_ context.Context, key string) {
	m.lruCache.Remove(key)
}

func (m *Memory) Clear(_ context.Context) error {
	m.lruCache.Purge()
	return nil
}
