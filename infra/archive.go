package infra

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Maestro-111/search-engine/config"
)

const logContentType = "text/plain; charset=utf-8"

// LogArchive stores the captured output of finished jobs.
type LogArchive interface {
	Upload(ctx context.Context, key string, body []byte) error
}

// InitLogArchive returns nil when archiving is disabled.
func InitLogArchive(cfg *config.EnvConfig) LogArchive {
	switch cfg.Archive.Backend {
	case "":
		return nil
	case "minio":
		archive, err := NewMinioArchive(cfg)
		if err != nil {
			log.Fatalf("MinIO archive initialization failed: %v", err)
		}
		return archive
	case "s3":
		archive, err := NewS3Archive(cfg)
		if err != nil {
			log.Fatalf("S3 archive initialization failed: %v", err)
		}
		return archive
	default:
		log.Fatalf("Unknown ARCHIVE_BACKEND %q, expected minio or s3", cfg.Archive.Backend)
		return nil
	}
}

type MinioArchive struct {
	Client *minio.Client
	Bucket string
}

func NewMinioArchive(cfg *config.EnvConfig) (*MinioArchive, error) {
	if cfg.Minio.Endpoint == "" {
		return nil, fmt.Errorf("MinIO endpoint is not configured")
	}

	client, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.Minio.RootUser, cfg.Minio.RootPassword, ""),
		Secure: cfg.Minio.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Archive.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check archive bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Archive.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create archive bucket: %w", err)
		}
	}

	return &MinioArchive{Client: client, Bucket: cfg.Archive.Bucket}, nil
}

func (m *MinioArchive) Upload(ctx context.Context, key string, body []byte) error {
	_, err := m.Client.PutObject(ctx, m.Bucket, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: logContentType})
	if err != nil {
		return fmt.Errorf("failed to upload %s to MinIO: %w", key, err)
	}
	return nil
}

// S3Archive writes to any S3-compatible endpoint (Garage, AWS).
type S3Archive struct {
	Client *s3.Client
	Bucket string
}

func NewS3Archive(cfg *config.EnvConfig) (*S3Archive, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Archive{Client: client, Bucket: cfg.Archive.Bucket}, nil
}

func (a *S3Archive) Upload(ctx context.Context, key string, body []byte) error {
	_, err := a.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(logContentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}
	return nil
}
