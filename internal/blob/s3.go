package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	appconfig "github.com/farisgozi/attendify/internal/config"
	"github.com/farisgozi/attendify/internal/errs"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Store wraps the S3 client for object upload, download, and signed URL
// issuance.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
}

// NewStore creates a blob store from storage configuration. Static
// credentials and a custom endpoint are used when configured, otherwise
// the default credential chain applies.
func NewStore(ctx context.Context, sc appconfig.StorageConfig) (*Store, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(sc.Region),
	}
	if sc.AccessKey != "" && sc.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(sc.AccessKey, sc.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if sc.Endpoint != "" {
			o.BaseEndpoint = aws.String(sc.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
	}, nil
}

// Upload stores an object under the given bucket and path.
func (s *Store) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("%w: failed to upload object %s/%s: %w", errs.ErrTransient, bucket, path, err)
	}
	return nil
}

// Download fetches the raw bytes of an object.
func (s *Store) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: object %s/%s", errs.ErrNotFound, bucket, path)
		}
		return nil, fmt.Errorf("%w: failed to download object %s/%s: %w", errs.ErrTransient, bucket, path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read object body: %w", errs.ErrTransient, err)
	}
	return data, nil
}

// SignedURL issues a time-limited GET URL for an object.
func (s *Store) SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to sign URL for %s/%s: %w", errs.ErrTransient, bucket, path, err)
	}
	return req.URL, nil
}
