package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cloud-drive/internal/cache"
	"cloud-drive/internal/interfaces"
	"cloud-drive/internal/model"
	"cloud-drive/internal/repository"
	"cloud-drive/pkg/db"
	"cloud-drive/pkg/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

// memStorage 内存对象存储, 可以模拟上传/删除失败
type memStorage struct {
	mu         sync.Mutex
	objects    map[string][]byte
	deleted    []string
	seq        int
	failUpload bool
	failDelete bool
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) Upload(_ context.Context, obj interfaces.Object) (*interfaces.StoredObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpload {
		return nil, errors.New("upstream unavailable")
	}
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, err
	}
	m.seq++
	id := fmt.Sprintf("%s/obj-%d", obj.Owner, m.seq)
	m.objects[id] = data
	return &interfaces.StoredObject{ID: id, URL: "https://cdn.test/" + id, Size: int64(len(data))}, nil
}

func (m *memStorage) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	if m.failDelete {
		return errors.New("upstream unavailable")
	}
	delete(m.objects, id)
	return nil
}

func (m *memStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type testEnv struct {
	files   *repository.FileRepository
	users   *repository.UserRepository
	objects *memStorage
	cache   *cache.Cache
	redis   *miniredis.Miniredis
	tokens  *utils.TokenManager
	svc     *FileService
	auth    *AuthService
}

func setupEnv(t *testing.T, opts FileOptions) *testEnv {
	t.Helper()

	conn, err := db.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() { _ = db.Close(conn) })

	mr := miniredis.RunT(t)
	store := cache.NewRedisStore(cache.RedisOptions{Addr: mr.Addr(), DialTimeout: time.Second})
	t.Cleanup(func() { _ = store.Close() })

	env := &testEnv{
		files:   repository.NewFileRepository(conn),
		users:   repository.NewUserRepository(conn),
		objects: newMemStorage(),
		cache:   cache.New(store),
		redis:   mr,
		tokens:  utils.NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour),
	}
	if opts.FrontendURL == "" {
		opts.FrontendURL = "http://localhost:5173"
	}
	env.svc = NewFileService(env.files, env.objects, env.cache, opts)
	env.auth = NewAuthService(env.users, env.tokens, env.cache, env.objects)
	return env
}

func (e *testEnv) mustFind(t *testing.T, id string) *model.File {
	t.Helper()
	f, err := e.files.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, f)
	return f
}
