package publish

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// S3Config locates the bucket an export is published to.
type S3Config struct {
	Bucket string
	// Prefix is prepended to every key, without leading or trailing slash.
	Prefix string
	// Region overrides the region of the AWS default chain.
	Region string
	// Endpoint selects an S3-compatible store such as MinIO or R2.
	Endpoint     string
	UsePathStyle bool
}

// Validate checks that a bucket is named.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// Location returns the s3:// URL of a partition under the prefix.
func (c *S3Config) Location(partition string) string {
	return "s3://" + path.Join(c.Bucket, c.Prefix, partition)
}

// ParseS3Path splits "bucket/prefix", with or without an s3:// scheme,
// into bucket and prefix. Slashes around the prefix are dropped.
func ParseS3Path(p string) (bucket, prefix string) {
	p = strings.TrimPrefix(p, "s3://")
	bucket, prefix, _ = strings.Cut(p, "/")
	return bucket, strings.Trim(prefix, "/")
}

// NewS3Publisher creates a publisher writing to S3.
// Credentials come from the AWS SDK default chain.
func NewS3Publisher(ctx context.Context, cfg Config, s3cfg S3Config) (*LodePublisher, error) {
	if err := s3cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := newS3Client(ctx, s3cfg)
	if err != nil {
		return nil, WrapInitError(err, s3cfg.Bucket)
	}

	return NewPublisherWithFactory(cfg, func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{
			Bucket: s3cfg.Bucket,
			Prefix: s3cfg.Prefix,
		})
	})
}

func newS3Client(ctx context.Context, s3cfg S3Config) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if s3cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(s3cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			endpoint := s3cfg.Endpoint
			o.BaseEndpoint = &endpoint
		}
		o.UsePathStyle = s3cfg.UsePathStyle
	}), nil
}
