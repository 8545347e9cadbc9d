package storage

import (
	"context"
	"io"
	"time"
)

// StorageInterface defines the artifact store for merged playback files.
type StorageInterface interface {
	BucketName() string
	// UploadFile streams a local file without buffering it in memory.
	UploadFile(ctx context.Context, key string, path string, contentType string, metadata map[string]string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	GeneratePresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}
