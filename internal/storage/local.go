package storage

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud-drive/pkg/logger"

	"go.uber.org/zap"
)

var ErrInvalidObjectID = errors.New("invalid object id")

// LocalStorage 把文件保存在本地目录, 通过/uploads静态路由访问
type LocalStorage struct {
	basePath  string
	publicURL string
}

// NewLocalStorage 创建本地存储, 目录不存在时自动创建
func NewLocalStorage(basePath, publicURL string) (*LocalStorage, error) {
	if basePath == "" {
		basePath = "uploads"
	}
	// 确保目录存在
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{
		basePath:  basePath,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// BasePath 静态文件根目录
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// Upload 保存文件内容, 对象ID为 <owner>/<name>_<hash>.<ext>
func (s *LocalStorage) Upload(ctx context.Context, obj Object) (*Stored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if obj.Body == nil {
		return nil, errors.New("empty object body")
	}

	safeName := sanitizeName(obj.Name)
	fileExt := filepath.Ext(safeName)

	// 使用原始文件名+时间戳+用户ID创建哈希值确保唯一性
	h := sha256.New()
	io.WriteString(h, fmt.Sprintf("%s%d%s", obj.Name, time.Now().UnixNano(), obj.Owner))
	hash := fmt.Sprintf("%x", h.Sum(nil))[:12]

	owner := sanitizeName(obj.Owner)
	id := path.Join(owner, fmt.Sprintf("%s_%s%s", strings.TrimSuffix(safeName, fileExt), hash, fileExt))

	filePath, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create user storage directory: %w", err)
	}

	dst, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(dst, obj.Body)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(filePath)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	logger.L.Info("File stored successfully",
		zap.String("id", id),
		zap.String("name", obj.Name),
		zap.Int64("size", written),
		zap.String("owner", obj.Owner))

	return &Stored{
		ID:   id,
		URL:  s.publicURL + "/" + id,
		Size: written,
	}, nil
}

// Delete 删除对象, 对象不存在时不报错
func (s *LocalStorage) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	filePath, err := s.resolve(id)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// 对象ID转为磁盘路径, 不允许跳出basePath
func (s *LocalStorage) resolve(id string) (string, error) {
	if id == "" || strings.Contains(id, "\\") || path.IsAbs(id) {
		return "", ErrInvalidObjectID
	}
	clean := path.Clean(id)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidObjectID
	}
	return filepath.Join(s.basePath, filepath.FromSlash(clean)), nil
}
