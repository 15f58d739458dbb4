package cache

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"cloud-drive/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cd_cache_hits_total",
		Help: "Total number of cache hits",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cd_cache_misses_total",
		Help: "Total number of cache misses",
	})
	cacheErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cd_cache_errors_total",
		Help: "Total number of failed cache operations",
	}, []string{"op"})
)

// Cache 对Store的包装, 所有方法都不返回错误:
// 后端故障只记录日志, 调用方看到的是未命中或false
type Cache struct {
	store Store
}

// New store为nil时缓存被禁用
func New(store Store) *Cache {
	return &Cache{store: store}
}

// Enabled 是否配置了后端
func (c *Cache) Enabled() bool {
	return c != nil && c.store != nil
}

func (c *Cache) degrade(op, key string, err error) {
	cacheErrorsTotal.WithLabelValues(op).Inc()
	logger.L.Warn("Cache operation failed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err))
}

// Set 字符串原样保存, 其它值JSON编码
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if !c.Enabled() {
		return false
	}

	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		b, err := json.Marshal(value)
		if err != nil {
			c.degrade("set", key, err)
			return false
		}
		raw = string(b)
	}

	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		c.degrade("set", key, err)
		return false
	}
	return true
}

// GetRaw 返回原始字符串
func (c *Cache) GetRaw(ctx context.Context, key string) (string, bool) {
	if !c.Enabled() {
		return "", false
	}
	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.degrade("get", key, err)
		cacheMissesTotal.Inc()
		return "", false
	}
	if !found {
		cacheMissesTotal.Inc()
		return "", false
	}
	cacheHitsTotal.Inc()
	return raw, true
}

// Get 把缓存值解码到dest
// 解码失败时, dest为*string则回退为原始字符串, 否则视为未命中
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	raw, ok := c.GetRaw(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		if s, isStr := dest.(*string); isStr {
			*s = raw
			return true
		}
		c.degrade("decode", key, err)
		return false
	}
	return true
}

func (c *Cache) Delete(ctx context.Context, key string) bool {
	if !c.Enabled() {
		return false
	}
	if err := c.store.Del(ctx, key); err != nil {
		c.degrade("del", key, err)
		return false
	}
	return true
}

// DeletePattern 删除所有匹配glob的键, 没有匹配时直接返回true
func (c *Cache) DeletePattern(ctx context.Context, pattern string) bool {
	if !c.Enabled() {
		return false
	}
	keys, err := c.store.Keys(ctx, pattern)
	if err != nil {
		c.degrade("keys", pattern, err)
		return false
	}
	if len(keys) == 0 {
		return true
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		c.degrade("del", pattern, err)
		return false
	}
	logger.L.Debug("Cache keys invalidated",
		zap.String("pattern", pattern),
		zap.Int("count", len(keys)))
	return true
}

func (c *Cache) Exists(ctx context.Context, key string) bool {
	if !c.Enabled() {
		return false
	}
	ok, err := c.store.Exists(ctx, key)
	if err != nil {
		c.degrade("exists", key, err)
		return false
	}
	return ok
}

// TTL 剩余秒数; -2 表示不存在或缓存不可用, -1 表示不过期
func (c *Cache) TTL(ctx context.Context, key string) int {
	if !c.Enabled() {
		return int(NoKey)
	}
	d, err := c.store.TTL(ctx, key)
	if err != nil {
		c.degrade("ttl", key, err)
		return int(NoKey)
	}
	if d < 0 {
		return int(d)
	}
	return int(math.Ceil(d.Seconds()))
}

// ClearAll 清空整个缓存库
func (c *Cache) ClearAll(ctx context.Context) bool {
	if !c.Enabled() {
		return false
	}
	if err := c.store.Flush(ctx); err != nil {
		c.degrade("flush", "*", err)
		return false
	}
	logger.L.Info("Cache cleared")
	return true
}

// Ping 检查后端连通性
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.store.Ping(ctx)
}

func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.store.Close()
}
