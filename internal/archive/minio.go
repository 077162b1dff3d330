// Package archive копирует итоговые PDF отчётов в объектное хранилище.
package archive

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type MinIO struct {
	client *minio.Client
	bucket string
	log    *zap.Logger
}

func NewMinIO(cfg Config, log *zap.Logger) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIO{client: client, bucket: cfg.Bucket, log: log}, nil
}

// EnsureBucket создаёт бакет при первом запуске.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", m.bucket, err)
	}
	m.log.Info("created archive bucket", zap.String("bucket", m.bucket))
	return nil
}

func (m *MinIO) Archive(ctx context.Context, reportID, filePath string) error {
	object := ObjectName(reportID, filePath)
	info, err := m.client.FPutObject(ctx, m.bucket, object, filePath, minio.PutObjectOptions{
		ContentType:  "application/pdf",
		UserMetadata: map[string]string{"report-id": reportID},
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", object, err)
	}

	m.log.Info("archived report artifact",
		zap.String("report_id", reportID),
		zap.String("object", object),
		zap.Int64("size", info.Size),
	)
	return nil
}

// ObjectName строит ключ объекта reports/{id}/{имя файла}
func ObjectName(reportID, filePath string) string {
	return path.Join("reports", reportID, filepath.Base(filePath))
}
