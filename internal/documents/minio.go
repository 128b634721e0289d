// internal/documents/minio.go
package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"loan-advisor/internal/common/config"
	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/common/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const pdfContentType = "application/pdf"

// objectClient is the subset of *minio.Client the store needs.
type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// MinioStore keeps documents in an S3 compatible bucket.
type MinioStore struct {
	client    objectClient
	bucket    string
	publicURL string
	logger    logger.Logger
}

// NewMinioStore connects and makes sure the bucket exists.
func NewMinioStore(ctx context.Context, cfg config.MinioConfig, log logger.Logger) (*MinioStore, error) {
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	s := newMinioStore(client, cfg, log)
	if err := s.ensureBucket(ctx, cfg.Location); err != nil {
		return nil, err
	}
	return s, nil
}

func newMinioStore(client objectClient, cfg config.MinioConfig, log logger.Logger) *MinioStore {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "sanction-letters"
	}
	return &MinioStore{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		logger:    log.With(map[string]interface{}{"bucket": bucket}),
	}
}

func (s *MinioStore) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("error creating bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("Created bucket", nil)
	return nil
}

// Save uploads the document. The reference is a public URL when one is
// configured, an s3:// URI otherwise.
func (s *MinioStore) Save(ctx context.Context, key string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: pdfContentType})
	if err != nil {
		return "", apperrors.NewDocumentStoreFailedError(key, err)
	}
	s.logger.Debug("Uploaded document", map[string]interface{}{"key": key, "bytes": len(data)})

	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, key), nil
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func (s *MinioStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, apperrors.NewDocumentStoreFailedError(key, err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, apperrors.NewNotFoundError(key)
		}
		return nil, apperrors.NewDocumentStoreFailedError(key, err)
	}
	return obj, nil
}
