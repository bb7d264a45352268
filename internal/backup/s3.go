// Package backup ships ledger snapshots to an S3 compatible bucket.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"lottery-ledger/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/logger"
)

// ObjectPutter is the part of the S3 client the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Snapshotter writes a consistent copy of the ledger.
type Snapshotter interface {
	WriteSnapshot(w io.Writer) (int64, error)
}

// NewS3Client builds a client for the configured bucket. Static keys are
// used when set, otherwise the default AWS credential chain.
func NewS3Client(ctx context.Context, cfg config.Backup) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	}), nil
}

// Uploader stores snapshots under prefix in bucket.
type Uploader struct {
	client ObjectPutter
	bucket string
	prefix string
}

func NewUploader(client ObjectPutter, bucket, prefix string) *Uploader {
	return &Uploader{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key of a snapshot taken at t.
func (u *Uploader) Key(t time.Time) string {
	prefix := u.prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + "ledger-" + t.UTC().Format("20060102T150405Z") + ".db"
}

// Upload snapshots src and stores it, returning the object key.
func (u *Uploader) Upload(ctx context.Context, src Snapshotter, now time.Time) (string, error) {
	buf := new(bytes.Buffer)
	n, err := src.WriteSnapshot(buf)
	if err != nil {
		return "", fmt.Errorf("failed to snapshot ledger: %w", err)
	}

	key := u.Key(now)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(n),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot to %s/%s: %w", u.bucket, key, err)
	}
	logger.Infof("Uploaded %d byte ledger snapshot to %s/%s", n, u.bucket, key)
	return key, nil
}
