// Package s3 implements the ObjectStore interface for AWS S3 and
// S3-compatible storage such as MinIO.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dangsayz/12img/internal/storage"
)

// multipartUploadPartSize is the size for S3 multipart upload parts (5MB minimum).
const multipartUploadPartSize = 5 * 1024 * 1024

// Config holds configuration for S3 object storage.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Custom endpoint for MinIO or other S3-compatible services
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool // Use path-style addressing (required for MinIO)
}

// Store implements storage.ObjectStore backed by S3.
type Store struct {
	client   *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	bucket   string
}

// New creates a Store and verifies bucket access with a HEAD request.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}

	var optFuncs []func(*config.LoadOptions) error
	if cfg.Region != "" {
		optFuncs = append(optFuncs, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFuncs = append(optFuncs, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, optFuncs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = multipartUploadPartSize
	})

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access S3 bucket %q: %w", cfg.Bucket, err)
	}

	slog.Info("S3 object store initialized",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
		"path_style", cfg.PathStyle,
	)

	return &Store{
		client:   client,
		presign:  s3.NewPresignClient(client),
		uploader: uploader,
		bucket:   cfg.Bucket,
	}, nil
}

// validateKey ensures the S3 key doesn't contain path traversal or dangerous
// characters. Keys are server-generated, so a failure here indicates a bug or
// a forged request.
func (s *Store) validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty key not allowed")
	}
	if strings.ContainsRune(key, '\x00') {
		return fmt.Errorf("null bytes not allowed in key")
	}
	if strings.Contains(key, "%") {
		return fmt.Errorf("encoded characters not allowed in key")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("path traversal not allowed: %s", key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == "/" {
		return fmt.Errorf("invalid key: %s", key)
	}
	return nil
}

// Put streams data to S3 under key using multipart upload, so large archives
// never buffer fully in memory.
func (s *Store) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if err := s.validateKey(key); err != nil {
		return storage.NewStoreError("Put", key, err)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   reader,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return storage.NewStoreError("Put", key, err)
	}

	slog.Debug("object stored", "key", key, "size", size)
	return nil
}

// Get returns a reader for the stored object.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := s.validateKey(key); err != nil {
		return nil, storage.NewStoreError("Get", key, err)
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, storage.NewStoreError("Get", key, storage.ErrObjectNotFound)
		}
		return nil, storage.NewStoreError("Get", key, err)
	}

	return result.Body, nil
}

// Delete removes an object. S3 DeleteObject succeeds for missing keys, which
// matches the interface contract.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.validateKey(key); err != nil {
		return storage.NewStoreError("Delete", key, err)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return storage.NewStoreError("Delete", key, err)
	}

	return nil
}

// Head returns object metadata without fetching the body.
func (s *Store) Head(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	if err := s.validateKey(key); err != nil {
		return nil, storage.NewStoreError("Head", key, err)
	}

	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, storage.NewStoreError("Head", key, storage.ErrObjectNotFound)
		}
		return nil, storage.NewStoreError("Head", key, err)
	}

	info := &storage.ObjectInfo{}
	if result.ContentLength != nil {
		info.Size = *result.ContentLength
	}
	if result.ContentType != nil {
		info.ContentType = *result.ContentType
	}
	return info, nil
}

// PresignPut returns a URL authorizing a direct upload to key. The content
// type is part of the signature, so the client must send it unchanged.
func (s *Store) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	if err := s.validateKey(key); err != nil {
		return "", storage.NewStoreError("PresignPut", key, err)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	req, err := s.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", storage.NewStoreError("PresignPut", key, err)
	}

	return req.URL, nil
}

// PresignGet returns a URL authorizing a direct download of key.
func (s *Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := s.validateKey(key); err != nil {
		return "", storage.NewStoreError("PresignGet", key, err)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", storage.NewStoreError("PresignGet", key, err)
	}

	return req.URL, nil
}

// Ensure Store implements storage.ObjectStore
var _ storage.ObjectStore = (*Store)(nil)
