package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/imagehost/backend/internal/config"
)

// S3BlobStore keeps blobs in a single S3 (or S3-compatible) bucket.
type S3BlobStore struct {
	client *s3.Client
	bucket string
}

func NewS3BlobStore(ctx context.Context, cfg *config.Config) (*S3BlobStore, error) {
	client, err := buildS3Client(ctx, cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretAccessKey, cfg.S3UsePathStyle)
	if err != nil {
		return nil, err
	}
	return &S3BlobStore{client: client, bucket: cfg.S3Bucket}, nil
}

func buildS3Client(ctx context.Context, endpoint, region, key, secret string, pathStyle bool) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if key != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = pathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return client, nil
}

// Put uploads r with If-None-Match: * so an existing key is never replaced.
// r should implement io.Seeker for request signing.
func (s *S3BlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error) {
	if err := validateBlobKey(key); err != nil {
		return 0, err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		IfNoneMatch:   aws.String("*"),
		ACL:           s3types.ObjectCannedACLPrivate,
	})
	if err != nil {
		if code := s3ErrorCode(err); code == "PreconditionFailed" || code == "ConditionalRequestConflict" {
			return 0, fmt.Errorf("%w: %s", ErrBlobExists, key)
		}
		return 0, fmt.Errorf("s3 put %s: %w", key, err)
	}
	return size, nil
}

func (s *S3BlobStore) Open(ctx context.Context, key string) (*Blob, error) {
	if err := validateBlobKey(key); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		}
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	return &Blob{Body: out.Body, Size: aws.ToInt64(out.ContentLength)}, nil
}

// Delete checks existence first because DeleteObject succeeds for missing keys.
func (s *S3BlobStore) Delete(ctx context.Context, key string) (DeleteOutcome, error) {
	if err := validateBlobKey(key); err != nil {
		return BlobMissing, err
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return BlobMissing, nil
		}
		return BlobMissing, fmt.Errorf("s3 head %s: %w", key, err)
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return BlobMissing, fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return BlobDeleted, nil
}

func s3ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func isS3NotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	code := s3ErrorCode(err)
	return code == "NoSuchKey" || code == "NotFound"
}
