package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisStore(RedisOptions{Addr: mr.Addr(), DialTimeout: time.Second})
	t.Cleanup(func() { _ = store.Close() })
	return New(store), mr
}

// 两种后端跑同一组用例
func backends(t *testing.T) map[string]*Cache {
	rc, _ := newRedisCache(t)
	return map[string]*Cache{
		"redis":  rc,
		"memory": New(NewMemoryStore(time.Minute)),
	}
}

func TestCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.True(t, c.Set(ctx, "k", map[string]int{"a": 1}, 60*time.Second))

			var got map[string]int
			require.True(t, c.Get(ctx, "k", &got))
			assert.Equal(t, map[string]int{"a": 1}, got)

			ttl := c.TTL(ctx, "k")
			assert.Greater(t, ttl, 0)
			assert.LessOrEqual(t, ttl, 60)
			assert.True(t, c.Exists(ctx, "k"))
		})
	}
}

func TestCache_StringPassThrough(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.True(t, c.Set(ctx, "plain", "hello world", time.Minute))

			raw, ok := c.GetRaw(ctx, "plain")
			require.True(t, ok)
			assert.Equal(t, "hello world", raw)

			// 不是合法JSON, 回退为原始字符串
			var s string
			require.True(t, c.Get(ctx, "plain", &s))
			assert.Equal(t, "hello world", s)

			var m map[string]any
			assert.False(t, c.Get(ctx, "plain", &m))
		})
	}
}

func TestCache_MissAndTTLSentinels(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var v any
			assert.False(t, c.Get(ctx, "missing", &v))
			assert.False(t, c.Exists(ctx, "missing"))
			assert.Equal(t, -2, c.TTL(ctx, "missing"))

			require.True(t, c.Set(ctx, "forever", "x", 0))
			assert.Equal(t, -1, c.TTL(ctx, "forever"))
		})
	}
}

func TestCache_DeletePattern(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			k1 := FileListKey(ListKey{Owner: "U1", Page: 1, Limit: 10, SortBy: "createdAt", Order: "desc", Folder: "root"})
			k2 := FileListKey(ListKey{Owner: "U1", Page: 2, Limit: 10, SortBy: "name", Order: "asc", Search: "a:b"})
			other := FileListKey(ListKey{Owner: "U2", Page: 1, Limit: 10, SortBy: "createdAt", Order: "desc"})
			for _, k := range []string{k1, k2, other} {
				require.True(t, c.Set(ctx, k, []int{1, 2}, FileListTTL))
			}
			require.True(t, c.Set(ctx, UserKey("U1"), "u", UserTTL))

			require.True(t, c.DeletePattern(ctx, OwnerFilesPattern("U1")))

			var v []int
			assert.False(t, c.Get(ctx, k1, &v))
			assert.False(t, c.Get(ctx, k2, &v))
			assert.True(t, c.Get(ctx, other, &v))
			assert.True(t, c.Exists(ctx, UserKey("U1")))

			// 没有匹配的键
			assert.True(t, c.DeletePattern(ctx, OwnerFilesPattern("nobody")))
		})
	}
}

func TestCache_DeleteAndClearAll(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.True(t, c.Set(ctx, "a", "1", time.Minute))
			require.True(t, c.Set(ctx, "b", "2", time.Minute))

			assert.True(t, c.Delete(ctx, "a"))
			assert.False(t, c.Exists(ctx, "a"))

			assert.True(t, c.ClearAll(ctx))
			assert.False(t, c.Exists(ctx, "b"))
		})
	}
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	require.True(t, c.Set(ctx, "short", "x", 10*time.Second))
	mr.FastForward(11 * time.Second)

	_, ok := c.GetRaw(ctx, "short")
	assert.False(t, ok)
}

func TestCache_DegradesWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)
	mr.Close()

	assert.False(t, c.Set(ctx, "k", "v", time.Minute))
	var v string
	assert.False(t, c.Get(ctx, "k", &v))
	assert.False(t, c.Delete(ctx, "k"))
	assert.False(t, c.DeletePattern(ctx, "files:U1:*"))
	assert.False(t, c.Exists(ctx, "k"))
	assert.Equal(t, -2, c.TTL(ctx, "k"))
	assert.False(t, c.ClearAll(ctx))
	assert.Error(t, c.Ping(ctx))
}

func TestCache_Disabled(t *testing.T) {
	ctx := context.Background()
	var nilCache *Cache
	for name, c := range map[string]*Cache{"nil store": New(nil), "nil cache": nilCache} {
		t.Run(name, func(t *testing.T) {
			assert.False(t, c.Enabled())
			assert.False(t, c.Set(ctx, "k", "v", time.Minute))
			_, ok := c.GetRaw(ctx, "k")
			assert.False(t, ok)
			assert.Equal(t, -2, c.TTL(ctx, "k"))
			assert.NoError(t, c.Ping(ctx))
		})
	}
}

func TestFileListKey(t *testing.T) {
	tests := []struct {
		name string
		key  ListKey
		want string
	}{
		{
			name: "defaults",
			key:  ListKey{Owner: "u1", Page: 1, Limit: 10, SortBy: "createdAt", Order: "desc"},
			want: "files:u1:page1:limit10:sortcreatedAt:desc:folderall:searchnone",
		},
		{
			name: "folder and search",
			key:  ListKey{Owner: "u1", Page: 3, Limit: 20, SortBy: "name", Order: "asc", Folder: "starred", Search: "cv"},
			want: "files:u1:page3:limit20:sortname:asc:folderstarred:searchcv",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FileListKey(tt.key))
		})
	}
	assert.Equal(t, "user:u1", UserKey("u1"))
	assert.Equal(t, "files:u1:*", OwnerFilesPattern("u1"))
}
