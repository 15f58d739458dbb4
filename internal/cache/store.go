// Package cache 带TTL的键值缓存, 支持按模式批量失效; 后端不可用时降级为未命中
package cache

import (
	"context"
	"time"
)

const (
	// TTL查询结果: 键不存在
	NoKey time.Duration = -2
	// TTL查询结果: 键存在但没有过期时间
	NoExpiry time.Duration = -1
)

// Store 缓存后端, 值统一为字符串
type Store interface {
	// ttl<=0 表示不过期
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// 未命中时 found=false, err=nil
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Del(ctx context.Context, keys ...string) error
	// pattern 为redis风格的glob
	Keys(ctx context.Context, pattern string) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	// 返回剩余时间, 或 NoKey / NoExpiry
	TTL(ctx context.Context, key string) (time.Duration, error)
	Flush(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
