// Package minio implements object storage on a MinIO server.
package minio

import (
	"context"
	"fmt"
	"io"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"dealdossier/internal/config"
	"dealdossier/internal/port"
	"dealdossier/internal/storage/transfer"
)

type minioClient struct {
	client *miniogo.Client
}

// NewMinioClient connects to MinIO and makes sure the configured bucket exists.
func NewMinioClient(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (port.ObjectStorage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking minio bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, miniogo.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("creating minio bucket %s: %w", cfg.Bucket, err)
		}
		if logger != nil {
			logger.Info("minio bucket created", zap.String("bucket", cfg.Bucket))
		}
	}

	return &minioClient{client: client}, nil
}

func (c *minioClient) Upload(ctx context.Context, input port.UploadInput) (*port.UploadOutput, error) {
	size := input.Size
	if size <= 0 {
		size = -1
	}
	counter := transfer.NewProgressCounter(input.Size, input.OnProgress)
	info, err := c.client.PutObject(ctx, input.Bucket, input.Key, input.Body, size, miniogo.PutObjectOptions{
		ContentType: input.ContentType,
		Progress:    counter,
	})
	if err != nil {
		return nil, fmt.Errorf("minio upload: %w", err)
	}
	counter.Done()

	return &port.UploadOutput{
		Location: info.Location,
		Path:     info.Key,
		ETag:     info.ETag,
	}, nil
}

func (c *minioClient) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := c.client.GetObject(ctx, bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio download: %w", err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("minio download: %w", err)
	}
	return obj, nil
}

func (c *minioClient) Delete(ctx context.Context, bucket, key string) error {
	if err := c.client.RemoveObject(ctx, bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio delete: %w", err)
	}
	return nil
}

func (c *minioClient) GetPresignedURL(ctx context.Context, bucket, key string, expirySeconds int64) (string, error) {
	u, err := c.client.PresignedGetObject(ctx, bucket, key, time.Duration(expirySeconds)*time.Second, nil)
	if err != nil {
		return "", fmt.Errorf("minio presign: %w", err)
	}
	return u.String(), nil
}
