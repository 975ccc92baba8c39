package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinioConfig holds S3-compatible storage settings
type MinioConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
	// PublicBaseURL overrides the endpoint-derived object URL, e.g. a CDN
	PublicBaseURL string
}

// MinioObjectStorage implements port.ObjectStorage on an S3-compatible service
type MinioObjectStorage struct {
	client  *minio.Client
	cfg     MinioConfig
	baseURL string
	logger  *zap.Logger
}

// NewMinioObjectStorage connects to the configured endpoint
func NewMinioObjectStorage(cfg MinioConfig, logger *zap.Logger) (*MinioObjectStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = scheme + "://" + cfg.Endpoint
	}

	logger.Info("Object storage client initialized", zap.String("endpoint", cfg.Endpoint))
	return &MinioObjectStorage{
		client:  client,
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}, nil
}

// EnsureBucket creates bucket if it does not exist yet
func (s *MinioObjectStorage) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}

	region := s.cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	s.logger.Info("Created bucket", zap.String("bucket", bucket))
	return nil
}

// Upload stores content under bucket/path
func (s *MinioObjectStorage) Upload(ctx context.Context, bucket, path string, content []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, bucket, path, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		s.logger.Error("Failed to upload object",
			zap.String("bucket", bucket),
			zap.String("path", path),
			zap.Error(err))
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	return path, nil
}

// PublicURL returns the path-style URL of the object
func (s *MinioObjectStorage) PublicURL(bucket, path string) string {
	segments := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + bucket + "/" + strings.Join(segments, "/")
}

// Delete removes bucket/path. Removing a missing object succeeds.
func (s *MinioObjectStorage) Delete(ctx context.Context, bucket, path string) error {
	if err := s.client.RemoveObject(ctx, bucket, path, minio.RemoveObjectOptions{}); err != nil {
		s.logger.Error("Failed to delete object",
			zap.String("bucket", bucket),
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// List returns every object in bucket whose key starts with prefix
func (s *MinioObjectStorage) List(ctx context.Context, bucket, prefix string) ([]port.ObjectInfo, error) {
	var objects []port.ObjectInfo
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		objects = append(objects, port.ObjectInfo{
			Path:         obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return objects, nil
}

// Verify interface compliance
var _ port.ObjectStorage = (*MinioObjectStorage)(nil)
