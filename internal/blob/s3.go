// Package blob is the adapter for binary file storage. Documents in the
// core are metadata only; the bytes live behind this interface.
package blob

import (
	"context"
	"fmt"
	"io"
	"time"

	appcfg "github.com/anbudportalen/tender-service/internal/router/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// UploadResult describes a stored blob.
type UploadResult struct {
	URL         string
	Path        string
	Size        int64
	ContentType string
}

// Storage is the blob-store port. Uploads and deletes are idempotent and
// keyed by path.
type Storage interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string) (string, error)
}

// S3Storage implements Storage against an S3-compatible endpoint (MinIO in
// local setups).
type S3Storage struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewS3Storage builds an S3 client from the application config.
func NewS3Storage(ctx context.Context, cfg appcfg.Config) (*S3Storage, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.S3Bucket,
	}, nil
}

// StorageKey produces a collision-free object key for a new upload,
// partitioned by context and upload date.
func StorageKey(context, contextID, filename string) string {
	d := time.Now().UTC()
	return fmt.Sprintf("%s/%s/%d/%d/%d/%s-%s", context, contextID, d.Year(), d.Month(), d.Day(), uuid.New(), filename)
}

// Upload stores the body under key and returns the blob metadata.
func (s *S3Storage) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*UploadResult, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	url, err := s.PresignGet(ctx, key)
	if err != nil {
		return nil, err
	}

	return &UploadResult{
		URL:         url,
		Path:        key,
		Size:        size,
		ContentType: contentType,
	}, nil
}

// Delete removes the object under key. Deleting a missing object is not an
// error.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// PresignGet returns a time-limited download URL for key.
func (s *S3Storage) PresignGet(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
