package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectUploader is the subset of the S3 transfer manager used for snapshot copies.
type ObjectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Options configures an S3-compatible destination.
// Supports AWS S3, MinIO, Wasabi, and other S3-compatible services.
type S3Options struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// Validate checks if the configuration is valid.
func (o S3Options) Validate() error {
	if o.Bucket == "" {
		return errors.New("s3: bucket is required")
	}
	if o.AccessKeyID == "" {
		return errors.New("s3: access_key_id is required")
	}
	if o.SecretAccessKey == "" {
		return errors.New("s3: secret_access_key is required")
	}
	return nil
}

// S3Uploader copies snapshot files to a bucket.
type S3Uploader struct {
	uploader ObjectUploader
	bucket   string
	prefix   string
}

// NewS3Uploader builds an uploader for the given destination.
func NewS3Uploader(ctx context.Context, opts S3Options) (*S3Uploader, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("s3: failed to load config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if opts.Endpoint != "" {
		endpointURL := endpointURL(opts.Endpoint, opts.UseSSL)
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpointURL)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(cfg, clientOpts...)
	return NewS3UploaderWith(manager.NewUploader(client), opts.Bucket, opts.Prefix), nil
}

// NewS3UploaderWith wraps an existing uploader.
func NewS3UploaderWith(u ObjectUploader, bucket, prefix string) *S3Uploader {
	return &S3Uploader{uploader: u, bucket: bucket, prefix: prefix}
}

// UploadFile copies the file at localPath and returns its s3:// location.
func (u *S3Uploader) UploadFile(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	key := u.objectKey(filepath.Base(localPath))
	if err := u.upload(ctx, key, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}

func (u *S3Uploader) upload(ctx context.Context, key string, body io.Reader) error {
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3: upload %s: %w", key, err)
	}
	return nil
}

func (u *S3Uploader) objectKey(name string) string {
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}

// endpointURL normalizes a custom endpoint to scheme://host.
func endpointURL(endpoint string, useSSL bool) string {
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	host := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		host = u.Host
	}
	return fmt.Sprintf("%s://%s", scheme, host)
}
