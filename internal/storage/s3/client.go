// Package s3 provides object storage access for job sources and results.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"scribe/internal/config"
)

// ObjectStore abstracts the bucket operations the stages need.
type ObjectStore interface {
	// Download fetches an object into destPath, creating parent directories.
	Download(ctx context.Context, key, destPath string) error
	// Upload stores a local file under key.
	Upload(ctx context.Context, sourcePath, key string) error
	// Exists reports whether an object is present.
	Exists(ctx context.Context, key string) (bool, error)
}

// Client implements ObjectStore against an S3 bucket.
type Client struct {
	bucket     string
	api        *awss3.Client
	downloader *manager.Downloader
	uploader   *manager.Uploader
}

// NewClient builds an S3-backed object store from daemon configuration.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	bucket := strings.TrimSpace(cfg.Storage.Bucket)
	if bucket == "" {
		return nil, errors.New("s3: bucket not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Storage.Region))
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	api := awss3.NewFromConfig(awsCfg)
	return &Client{
		bucket:     bucket,
		api:        api,
		downloader: manager.NewDownloader(api),
		uploader:   manager.NewUploader(api),
	}, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// Download fetches an object into destPath, creating parent directories.
func (c *Client) Download(ctx context.Context, key, destPath string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("s3 download: empty key")
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("s3 download: ensure dest dir: %w", err)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("s3 download: create dest: %w", err)
	}
	defer out.Close()

	if _, err := c.downloader.Download(ctx, out, &awss3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("s3 download %s: %w", key, err)
	}
	return out.Close()
}

// Upload stores a local file under key.
func (c *Client) Upload(ctx context.Context, sourcePath, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("s3 upload: empty key")
	}

	in, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("s3 upload: open source: %w", err)
	}
	defer in.Close()

	if _, err := c.uploader.Upload(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   io.Reader(in),
	}); err != nil {
		return fmt.Errorf("s3 upload %s: %w", key, err)
	}
	return nil
}

// Exists reports whether an object is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, errors.New("s3 exists: empty key")
	}

	_, err := c.api.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head %s: %w", key, err)
	}
	return true, nil
}
