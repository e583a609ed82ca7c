package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/ManuelReschke/Payline/internal/pkg/config"
)

// S3Archiver writes payloads to an S3 or S3-compatible bucket.
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
	log    *zap.Logger
	now    func() time.Time
}

// NewS3Archiver creates an archiver from cfg. Static credentials are used when
// given, otherwise the default AWS credential chain applies.
func NewS3Archiver(ctx context.Context, cfg config.ArchiveConfig, lg *zap.Logger) (*S3Archiver, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("webhook archive is disabled")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3-compatible services (MinIO, B2) need path-style URLs
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	return &S3Archiver{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    lg,
		now:    time.Now,
	}, nil
}

// Ping checks that the bucket is reachable.
func (a *S3Archiver) Ping(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", a.bucket, err)
	}
	return nil
}

func (a *S3Archiver) Archive(ctx context.Context, provider, eventID string, payload []byte) error {
	key := ObjectKey(a.prefix, provider, eventID, a.now())
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(payload))),
		Metadata: map[string]string{
			"provider": provider,
			"event-id": eventID,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload webhook payload: %w", err)
	}
	a.log.Debug("webhook payload archived", zap.String("bucket", a.bucket), zap.String("key", key))
	return nil
}
