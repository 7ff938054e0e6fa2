// Package storage selects the object store adapter named by configuration.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dealdossier/internal/config"
	"dealdossier/internal/port"
	miniostorage "dealdossier/internal/storage/minio"
	s3storage "dealdossier/internal/storage/s3"
)

// New returns the ObjectStorage for cfg.Driver.
func New(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (port.ObjectStorage, error) {
	switch cfg.Driver {
	case "s3":
		return s3storage.NewS3Client(cfg)
	case "minio":
		return miniostorage.NewMinioClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
