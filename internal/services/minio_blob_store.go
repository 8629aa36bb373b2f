package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/imagehost/backend/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioBlobStore keeps blobs in a MinIO bucket.
type MinioBlobStore struct {
	client *minio.Client
	bucket string
}

func NewMinioBlobStore(ctx context.Context, cfg *config.Config) (*MinioBlobStore, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.S3Endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.S3Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.S3Bucket, minio.MakeBucketOptions{Region: cfg.S3Region}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}
	return &MinioBlobStore{client: client, bucket: cfg.S3Bucket}, nil
}

// Put refuses existing keys with a stat before the upload. Keys are random
// uuids, so the window between stat and put is not guarded further.
func (s *MinioBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error) {
	if err := validateBlobKey(key); err != nil {
		return 0, err
	}
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err == nil {
		return 0, fmt.Errorf("%w: %s", ErrBlobExists, key)
	} else if !isMinioNotFound(err) {
		return 0, fmt.Errorf("minio stat %s: %w", key, err)
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return 0, fmt.Errorf("minio put %s: %w", key, err)
	}
	return info.Size, nil
}

func (s *MinioBlobStore) Open(ctx context.Context, key string) (*Blob, error) {
	if err := validateBlobKey(key); err != nil {
		return nil, err
	}
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		}
		return nil, fmt.Errorf("minio stat %s: %w", key, err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get %s: %w", key, err)
	}
	return &Blob{Body: obj, Size: info.Size}, nil
}

func (s *MinioBlobStore) Delete(ctx context.Context, key string) (DeleteOutcome, error) {
	if err := validateBlobKey(key); err != nil {
		return BlobMissing, err
	}
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isMinioNotFound(err) {
			return BlobMissing, nil
		}
		return BlobMissing, fmt.Errorf("minio stat %s: %w", key, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return BlobMissing, fmt.Errorf("minio remove %s: %w", key, err)
	}
	return BlobDeleted, nil
}

func isMinioNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
