// Package storage ships files off the host.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Options struct {
	Bucket    string
	Region    string
	Prefix    string
	AccessKey string
	SecretKey string
}

// S3Uploader puts local files into one bucket under a key prefix.
type S3Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Uploader(ctx context.Context, opts S3Options) (*S3Uploader, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket not set")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Uploader{
		client: s3.NewFromConfig(cfg),
		bucket: opts.Bucket,
		prefix: opts.Prefix,
	}, nil
}

// ObjectKey is the key a local file is stored under.
func (u *S3Uploader) ObjectKey(localPath string) string {
	return path.Join(strings.TrimSuffix(u.prefix, "/"), filepath.Base(localPath))
}

// Upload stores the file and returns its object key.
func (u *S3Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	key := u.ObjectKey(localPath)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/vnd.sqlite3"),
	})
	if err != nil {
		return "", fmt.Errorf("S3 upload failed: %w", err)
	}
	return key, nil
}
