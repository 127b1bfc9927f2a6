package export

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Uploader is the subset of *manager.Uploader used by S3Publisher.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type S3Config struct {
	Bucket   string
	Key      string
	Region   string
	Endpoint string // S3-compatible endpoint; enables path-style addressing
}

// S3Publisher uploads the exported workbook to a fixed bucket and key.
type S3Publisher struct {
	uploader Uploader
	bucket   string
	key      string
}

func NewS3Publisher(ctx context.Context, cfg S3Config) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("export bucket is required")
	}
	if cfg.Key == "" {
		cfg.Key = "access_log.xlsx"
	}

	var loadOpts []func(*awscfg.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awscfg.WithRegion(cfg.Region))
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3PublisherWithUploader(manager.NewUploader(client), cfg.Bucket, cfg.Key), nil
}

func NewS3PublisherWithUploader(u Uploader, bucket, key string) *S3Publisher {
	return &S3Publisher{uploader: u, bucket: bucket, key: key}
}

func (p *S3Publisher) Publish(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	_, err = p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(p.key),
		Body:        f,
		ContentType: aws.String(xlsxContentType),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", p.bucket, p.key, err)
	}
	return nil
}
