package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"go.uber.org/zap"
)

var bucketNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9\-.]{1,61}[a-z0-9]$`)

// LocalObjectStorage implements port.ObjectStorage on the local filesystem.
// Each bucket is a directory under baseDir.
type LocalObjectStorage struct {
	baseDir string
	baseURL string
	logger  *zap.Logger
}

// NewLocalObjectStorage creates a new LocalObjectStorage.
// baseURL is the prefix under which the HTTP server exposes baseDir.
func NewLocalObjectStorage(baseDir, baseURL string, logger *zap.Logger) *LocalObjectStorage {
	return &LocalObjectStorage{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// BaseDir returns the directory holding all buckets
func (s *LocalObjectStorage) BaseDir() string {
	return s.baseDir
}

// Upload writes content to bucket/path
func (s *LocalObjectStorage) Upload(ctx context.Context, bucket, path string, content []byte, contentType string) (string, error) {
	fullPath, err := s.resolve(bucket, path)
	if err != nil {
		return "", err
	}

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write object",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write object: %w", err)
	}

	s.logger.Debug("Object stored",
		zap.String("bucket", bucket),
		zap.String("path", path),
		zap.String("content_type", contentType),
		zap.Int("size", len(content)))

	return path, nil
}

// PublicURL returns the URL under which the server serves the object
func (s *LocalObjectStorage) PublicURL(bucket, path string) string {
	return s.baseURL + "/" + bucket + "/" + strings.TrimLeft(filepath.ToSlash(path), "/")
}

// Delete removes bucket/path. Deleting a missing object succeeds.
func (s *LocalObjectStorage) Delete(ctx context.Context, bucket, path string) error {
	fullPath, err := s.resolve(bucket, path)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to delete object",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete object: %w", err)
	}

	s.logger.Debug("Object deleted", zap.String("bucket", bucket), zap.String("path", path))
	return nil
}

// List returns every object in bucket whose path starts with prefix
func (s *LocalObjectStorage) List(ctx context.Context, bucket, prefix string) ([]port.ObjectInfo, error) {
	root, err := s.resolve(bucket, "")
	if err != nil {
		return nil, err
	}

	var objects []port.ObjectInfo
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == root {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !strings.HasPrefix(rel, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, port.ObjectInfo{
			Path:         rel,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	return objects, nil
}

// resolve maps bucket/path to a filesystem path inside baseDir
func (s *LocalObjectStorage) resolve(bucket, path string) (string, error) {
	if !bucketNamePattern.MatchString(bucket) {
		return "", fmt.Errorf("invalid bucket name: %q", bucket)
	}
	fullPath := filepath.Join(s.baseDir, bucket, filepath.FromSlash(path))
	if err := s.validatePath(filepath.Join(s.baseDir, bucket), fullPath); err != nil {
		return "", err
	}
	return fullPath, nil
}

// validatePath checks that fullPath stays within base
func (s *LocalObjectStorage) validatePath(base, fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(base)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}

	return nil
}

// Verify interface compliance
var _ port.ObjectStorage = (*LocalObjectStorage)(nil)
