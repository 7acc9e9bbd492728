// Package s3 implements a resource store backed by Amazon S3 or any
// S3-compatible object storage (MinIO, Localstack, Cubbit DS3).
//
// Each resource maps to one object; the name becomes the object key, with an
// optional configured prefix. The bucket must already exist.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittoweb/pkg/store"
)

// S3ResourceStore serves resources from an S3 bucket.
//
// Thread safety:
// The S3 client is safe for concurrent use. Upload names are unique per
// request, so last-write-wins semantics on S3 never surface.
type S3ResourceStore struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// S3ResourceStoreConfig configures the store.
type S3ResourceStoreConfig struct {
	// Client is the configured S3 client.
	Client *s3.Client

	// Bucket is the bucket name. Required; must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys, e.g. "web/".
	KeyPrefix string
}

// NewS3ResourceStore validates the configuration, verifies bucket access and
// returns a store.
func NewS3ResourceStore(ctx context.Context, cfg S3ResourceStoreConfig) (*S3ResourceStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3ResourceStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

func (s *S3ResourceStore) objectKey(name string) string {
	return s.keyPrefix + name
}

// ReadResource downloads the object for the named resource.
func (s *S3ResourceStore) ReadResource(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(name)),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("resource %s: %w", name, store.ErrResourceNotFound)
		}
		return nil, fmt.Errorf("failed to read resource %s from S3: %w", name, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to download resource %s: %w", name, err)
	}

	return data, nil
}

// WriteUpload uploads data as the object for the named resource.
func (s *S3ResourceStore) WriteUpload(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(name)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to write upload %s to S3: %w", name, err)
	}

	return nil
}
