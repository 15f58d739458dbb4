package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"cloud-drive/pkg/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// S3Options S3兼容服务的连接参数
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// 为空时使用 endpoint/bucket
	PublicURL string
}

// S3Storage 基于minio-go的对象存储, 兼容AWS S3/MinIO等服务
type S3Storage struct {
	client    *minio.Client
	bucket    string
	region    string
	publicURL string
}

func NewS3Storage(opts S3Options) (*S3Storage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	publicURL := strings.TrimRight(opts.PublicURL, "/")
	if publicURL == "" {
		publicURL = strings.TrimRight(client.EndpointURL().String(), "/") + "/" + opts.Bucket
	}

	return &S3Storage{
		client:    client,
		bucket:    opts.Bucket,
		region:    opts.Region,
		publicURL: publicURL,
	}, nil
}

// EnsureBucket bucket不存在时创建
func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	logger.L.Info("Bucket created", zap.String("bucket", s.bucket))
	return nil
}

// Upload 对象键为 <owner>/<uuid>_<name>
func (s *S3Storage) Upload(ctx context.Context, obj Object) (*Stored, error) {
	key := path.Join(sanitizeName(obj.Owner), uuid.NewString()+"_"+sanitizeName(obj.Name))

	size := obj.Size
	if size <= 0 {
		size = -1
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, obj.Body, size, minio.PutObjectOptions{
		ContentType: DetectContentType(obj.Name, obj.ContentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload object: %w", err)
	}

	logger.L.Info("Object uploaded",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int64("size", info.Size))

	return &Stored{
		ID:   key,
		URL:  s.publicURL + "/" + key,
		Size: info.Size,
	}, nil
}

func (s *S3Storage) Delete(ctx context.Context, id string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
