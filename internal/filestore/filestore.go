// Package filestore removes stored evidence files from S3-compatible
// object storage. When storage is not configured (empty bucket), the
// NoopStore is used and removals are skipped, keeping the system in
// metadata-only mode.
package filestore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sethvargo/go-retry"

	"github.com/impactlane/vouch/internal/config"
)

// Remover deletes a stored object by its public URL.
type Remover interface {
	Remove(ctx context.Context, fileURL string) error
}

// s3Client defines the minimal minio.Client operations used by S3Store.
// This interface enables testing with mock implementations.
type s3Client interface {
	RemoveObject(ctx context.Context, bucket, objectName string, opts minio.RemoveObjectOptions) error
}

// S3Store removes evidence files from S3-compatible storage. Removals
// retry transient failures with exponential backoff before giving up.
type S3Store struct {
	client s3Client
	bucket string
}

// Remove deletes the object behind the given public URL. Unparseable
// URLs are an error; a missing object is not (removal is idempotent).
func (s *S3Store) Remove(ctx context.Context, fileURL string) error {
	key, err := objectKey(fileURL, s.bucket)
	if err != nil {
		return err
	}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return retry.RetryableError(fmt.Errorf("remove object %s: %w", key, err))
		}
		return nil
	})
}

// objectKey extracts the object key from a public URL, handling both
// path-style (host/bucket/key) and virtual-hosted (bucket.host/key) URLs.
func objectKey(fileURL, bucket string) (string, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("parse file URL %q: %w", fileURL, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	key = strings.TrimPrefix(key, bucket+"/")
	if key == "" {
		return "", fmt.Errorf("file URL %q has no object key", fileURL)
	}
	return key, nil
}

// NoopStore is used when object storage is not configured.
type NoopStore struct{}

// Remove is a no-op when storage is not configured.
func (s *NoopStore) Remove(ctx context.Context, fileURL string) error {
	return nil
}

// New creates the appropriate Remover based on configuration.
// Returns NoopStore when bucket is empty, S3Store otherwise.
func New(cfg config.FileStorageConfig) (Remover, error) {
	if cfg.Bucket == "" {
		return &NoopStore{}, nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Store{
		client: &minioClientWrapper{client: client},
		bucket: cfg.Bucket,
	}, nil
}

// minioClientWrapper adapts *minio.Client to the s3Client interface.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) RemoveObject(ctx context.Context, bucket, objectName string, opts minio.RemoveObjectOptions) error {
	return w.client.RemoveObject(ctx, bucket, objectName, opts)
}
