package storage

import (
	"fmt"

	"github.com/flowtube/flowtube/internal/config"
)

// NewStorage creates the S3-backed artifact store.
func NewStorage(cfg *config.S3Config) (StorageInterface, error) {
	store, err := NewS3Storage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 storage: %w", err)
	}

	return store, nil
}
