package filestore

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"

	"github.com/impactlane/vouch/internal/config"
)

type fakeS3Client struct {
	calls    int
	failures int
	bucket   string
	key      string
}

func (f *fakeS3Client) RemoveObject(ctx context.Context, bucket, objectName string, opts minio.RemoveObjectOptions) error {
	f.calls++
	f.bucket = bucket
	f.key = objectName
	if f.calls <= f.failures {
		return errors.New("connection reset")
	}
	return nil
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		bucket  string
		want    string
		wantErr bool
	}{
		{
			name:   "path style",
			url:    "https://s3.example.com/evidence-files/init-1/photo.jpg",
			bucket: "evidence-files",
			want:   "init-1/photo.jpg",
		},
		{
			name:   "virtual hosted style",
			url:    "https://evidence-files.s3.example.com/init-1/photo.jpg",
			bucket: "evidence-files",
			want:   "init-1/photo.jpg",
		},
		{
			name:    "no object key",
			url:     "https://s3.example.com/evidence-files/",
			bucket:  "evidence-files",
			wantErr: true,
		},
		{
			name:    "unparseable url",
			url:     "://not-a-url",
			bucket:  "evidence-files",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := objectKey(tt.url, tt.bucket)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected key %q, got %q", tt.want, got)
			}
		})
	}
}

func TestS3Store_Remove(t *testing.T) {
	fake := &fakeS3Client{}
	store := &S3Store{client: fake, bucket: "evidence-files"}

	err := store.Remove(context.Background(), "https://s3.example.com/evidence-files/init-1/photo.jpg")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if fake.bucket != "evidence-files" || fake.key != "init-1/photo.jpg" {
		t.Errorf("Unexpected remove call: bucket=%s key=%s", fake.bucket, fake.key)
	}
}

func TestS3Store_RemoveRetriesTransientFailures(t *testing.T) {
	fake := &fakeS3Client{failures: 2}
	store := &S3Store{client: fake, bucket: "evidence-files"}

	err := store.Remove(context.Background(), "https://s3.example.com/evidence-files/init-1/photo.jpg")
	if err != nil {
		t.Fatalf("Expected retry to succeed: %v", err)
	}
	if fake.calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", fake.calls)
	}
}

func TestS3Store_RemoveGivesUpAfterMaxRetries(t *testing.T) {
	fake := &fakeS3Client{failures: 10}
	store := &S3Store{client: fake, bucket: "evidence-files"}

	err := store.Remove(context.Background(), "https://s3.example.com/evidence-files/init-1/photo.jpg")
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if fake.calls != 4 {
		t.Errorf("Expected 4 attempts (initial plus 3 retries), got %d", fake.calls)
	}
}

func TestS3Store_RemoveBadURLNotRetried(t *testing.T) {
	fake := &fakeS3Client{}
	store := &S3Store{client: fake, bucket: "evidence-files"}

	if err := store.Remove(context.Background(), "://not-a-url"); err == nil {
		t.Fatal("Expected error for unparseable URL")
	}
	if fake.calls != 0 {
		t.Errorf("Expected no remove attempts, got %d", fake.calls)
	}
}

func TestNew_EmptyBucketReturnsNoop(t *testing.T) {
	remover, err := New(config.FileStorageConfig{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := remover.(*NoopStore); !ok {
		t.Fatalf("Expected NoopStore, got %T", remover)
	}
	if err := remover.Remove(context.Background(), "https://anywhere/file.jpg"); err != nil {
		t.Errorf("Expected noop remove to succeed: %v", err)
	}
}

func TestNew_ConfiguredBucketReturnsS3Store(t *testing.T) {
	remover, err := New(config.FileStorageConfig{
		Endpoint:  "s3.example.com",
		Bucket:    "evidence-files",
		AccessKey: "access",
		SecretKey: "secret",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := remover.(*S3Store); !ok {
		t.Fatalf("Expected S3Store, got %T", remover)
	}
}
