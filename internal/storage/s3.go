package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	"github.com/user/vistela-backend/internal/config"
)

// s3API is the slice of the S3 client the blob store uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Client uploads byte streams to an S3 bucket and returns the stored
// object's key.
type Client struct {
	api    s3API
	bucket string
}

// NewClient creates an S3-backed blob store client. Missing credentials or
// bucket name fail with ErrNotConfigured before any network call.
func NewClient(ctx context.Context, cfg *config.S3Config) (*Client, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("%w: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set", ErrNotConfigured)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: S3_BUCKET_NAME must be set", ErrNotConfigured)
	}

	policy := NewRetryPolicy(cfg.MaxAttempts)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		awsconfig.WithRetryer(func() aws.Retryer { return policy.Retryer() }),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return &Client{
		api:    s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
	}, nil
}

// BuildKey constructs the object key for a display name and an optional
// folder prefix. Leading and trailing path separators on the folder are
// stripped; an empty folder yields the name verbatim.
func BuildKey(name, folder string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// Upload moves the stream into the bucket under the key derived from name
// and folder, and returns that key. The stream is rewound first since it
// may already have been read by validation logic. Uploading to an existing
// key silently overwrites the prior object.
func (c *Client) Upload(ctx context.Context, stream io.ReadSeeker, name, folder string) (string, error) {
	key := BuildKey(name, folder)

	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind upload stream: %w", err)
	}

	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   stream,
	})
	if err != nil {
		return "", classify(fmt.Sprintf("upload %q", key), err)
	}

	log.Info().
		Str("bucket", c.bucket).
		Str("key", key).
		Msg("Uploaded object to S3")

	return key, nil
}

// Delete removes the object stored under key. Deleting an absent key is
// not an error; S3 treats it as a no-op.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classify(fmt.Sprintf("delete %q", key), err)
	}

	log.Info().
		Str("bucket", c.bucket).
		Str("key", key).
		Msg("Deleted object from S3")

	return nil
}

// Exists reports whether an object is stored under key.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, classify(fmt.Sprintf("head %q", key), err)
	}
	return true, nil
}

// Bucket returns the configured bucket name
func (c *Client) Bucket() string {
	return c.bucket
}
