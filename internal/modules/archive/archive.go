// Package archive copies the raw extract files of a processed batch to
// S3-compatible object storage (AWS S3, Cloudflare R2, MinIO).
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// File is one raw extract file to archive.
type File struct {
	Name    string
	Content []byte
}

// Archiver stores the raw files of one batch.
type Archiver interface {
	Archive(ctx context.Context, account, date, artifactHash string, files []File) error
}

// Config configures the S3 archiver.
type Config struct {
	Bucket    string
	Endpoint  string // empty for AWS; set for R2 or MinIO
	Region    string
	AccessKey string
	SecretKey string
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archiver uploads batch files under {account}/{date}/{artifact hash}/{file}.
// Re-archiving an identical batch writes the same keys.
type S3Archiver struct {
	bucket   string
	uploader uploader
	log      zerolog.Logger
}

// NewS3Archiver builds an archiver with static credentials.
func NewS3Archiver(ctx context.Context, cfg Config, log zerolog.Logger) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Archiver(cfg.Bucket, manager.NewUploader(client), log), nil
}

func newS3Archiver(bucket string, up uploader, log zerolog.Logger) *S3Archiver {
	return &S3Archiver{
		bucket:   bucket,
		uploader: up,
		log:      log.With().Str("component", "archive").Str("bucket", bucket).Logger(),
	}
}

// ObjectKey returns the object key for one archived file.
func ObjectKey(account, date, artifactHash, name string) string {
	return path.Join(account, date, artifactHash, name)
}

// Archive uploads every file; the first failure aborts the remaining uploads.
func (a *S3Archiver) Archive(ctx context.Context, account, date, artifactHash string, files []File) error {
	for _, f := range files {
		key := ObjectKey(account, date, artifactHash, f.Name)
		_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(f.Content),
			ContentType: aws.String("text/csv"),
		})
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}
		a.log.Debug().Str("key", key).Int("bytes", len(f.Content)).Msg("Archived extract file")
	}

	a.log.Info().
		Str("account", account).
		Str("date", date).
		Int("files", len(files)).
		Msg("Batch archived")
	return nil
}
