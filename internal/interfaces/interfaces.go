package interfaces

import (
	"context"
	"io"
	"time"

	"cloud-drive/internal/filter"
	"cloud-drive/internal/model"
)

// 文件元数据存储
// repository.FileRepository实现
type FileStore interface {
	Create(ctx context.Context, file *model.File) error
	FindByID(ctx context.Context, id string) (*model.File, error)
	FindOne(ctx context.Context, owner, name, fileType, parent string) (*model.File, error)
	FindByShareID(ctx context.Context, shareID string) (*model.File, error)
	Find(ctx context.Context, pred filter.Predicate, page Page) ([]model.File, error)
	Count(ctx context.Context, pred filter.Predicate) (int64, error)
	FindChildren(ctx context.Context, owner, parent string) ([]model.File, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
}

// 分页与排序
type Page struct {
	SortBy string
	Order  string
	Offset int
	Limit  int
}

// 用户存储
// repository.UserRepository实现
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
}

// 待上传的对象
type Object struct {
	Owner       string
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// 上传结果
type StoredObject struct {
	ID   string
	URL  string
	Size int64
}

// 对象存储, 只负责字节内容
// storage.LocalStorage / storage.S3Storage实现
type ObjectStorage interface {
	Upload(ctx context.Context, obj Object) (*StoredObject, error)
	Delete(ctx context.Context, id string) error
}

// 列表缓存与身份缓存
// cache.Cache实现
type Cache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) bool
	Get(ctx context.Context, key string, dest any) bool
	Delete(ctx context.Context, key string) bool
	DeletePattern(ctx context.Context, pattern string) bool
	Exists(ctx context.Context, key string) bool
	TTL(ctx context.Context, key string) int
	ClearAll(ctx context.Context) bool
}
