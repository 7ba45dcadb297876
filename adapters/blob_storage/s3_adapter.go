package blob_storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/khoahotran/linkgraph/internal/application/service"
	"github.com/khoahotran/linkgraph/internal/config"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

type s3Adapter struct {
	client *s3.Client
	bucket string
}

// NewS3Adapter uses static keys when configured and the default AWS chain
// otherwise. A custom endpoint switches to path-style addressing (MinIO).
func NewS3Adapter(ctx context.Context, cfg config.Config, log logger.Logger) (service.BlobStore, error) {
	if cfg.S3.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket has not config")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3.Region)}
	if cfg.S3.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			o.UsePathStyle = true
		}
	})

	log.Info("S3 blob store ready", zap.String("bucket", cfg.S3.Bucket), zap.String("region", cfg.S3.Region))
	return &s3Adapter{client: client, bucket: cfg.S3.Bucket}, nil
}

// Put returns the object key, which is what Get expects.
func (a *s3Adapter) Put(ctx context.Context, path string, data []byte) (string, error) {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload s3: %w", err)
	}
	return path, nil
}

func (a *s3Adapter) Get(ctx context.Context, path string) ([]byte, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download s3: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
