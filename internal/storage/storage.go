// Package storage 文件内容的对象存储, 元数据由repository负责
package storage

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"cloud-drive/internal/interfaces"
	"cloud-drive/pkg/config"
)

type (
	Object = interfaces.Object
	Stored = interfaces.StoredObject
)

// New 根据配置选择存储后端
func New(ctx context.Context, cfg config.StorageConfig) (interfaces.ObjectStorage, error) {
	switch cfg.Driver {
	case "local", "":
		return NewLocalStorage(cfg.LocalPath, cfg.PublicURL)
	case "s3":
		s, err := NewS3Storage(S3Options{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
			PublicURL: cfg.PublicURL,
		})
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// DetectContentType 优先使用客户端声明的类型, 否则按扩展名推断
func DetectContentType(filename, declared string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	ext := strings.ToLower(filepath.Ext(filename))
	mimeType := "application/octet-stream" // 默认类型
	switch ext {
	case ".jpg", ".jpeg":
		mimeType = "image/jpeg"
	case ".png":
		mimeType = "image/png"
	case ".gif":
		mimeType = "image/gif"
	case ".webp":
		mimeType = "image/webp"
	case ".pdf":
		mimeType = "application/pdf"
	case ".doc":
		mimeType = "application/msword"
	case ".docx":
		mimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xls":
		mimeType = "application/vnd.ms-excel"
	case ".xlsx":
		mimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".txt":
		mimeType = "text/plain"
	case ".mp3":
		mimeType = "audio/mpeg"
	case ".wav":
		mimeType = "audio/wav"
	case ".mp4":
		mimeType = "video/mp4"
	case ".webm":
		mimeType = "video/webm"
	case ".zip":
		mimeType = "application/zip"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			mimeType = t
		}
	}
	return mimeType
}

// 净化原始文件名, 只保留最后一段路径
func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		name = "file"
	}
	name = strings.ReplaceAll(name, " ", "_")
	return name
}
