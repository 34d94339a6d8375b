package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/ajitpratap0/jvparquet/pkg/errors"
)

const defaultUploadPartSize = 5 * 1024 * 1024 // 5MB

// S3Config locates the bucket segments are uploaded to
type S3Config struct {
	Bucket   string `yaml:"bucket" json:"bucket" mapstructure:"bucket"`
	Prefix   string `yaml:"prefix" json:"prefix" mapstructure:"prefix"`
	Region   string `yaml:"region" json:"region" mapstructure:"region"`
	Endpoint string `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`
	PartSize int64  `yaml:"part_size" json:"part_size" mapstructure:"part_size"`
}

// Uploader is the part of manager.Uploader the sink uses
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Sink stages segments in a local directory and uploads them on Commit
type S3Sink struct {
	uploader   Uploader
	bucket     string
	prefix     string
	stagingDir string
	logger     *zap.Logger
}

// NewS3Sink builds an uploader from the default AWS credential chain
func NewS3Sink(ctx context.Context, cfg S3Config, stagingDir string, logger *zap.Logger) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "storage.bucket is required for s3 storage")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	partSize := cfg.PartSize
	if partSize <= 0 {
		partSize = defaultUploadPartSize
	}
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
	})

	return NewS3SinkWithUploader(uploader, cfg, stagingDir, logger)
}

// NewS3SinkWithUploader creates a sink around an existing uploader
func NewS3SinkWithUploader(uploader Uploader, cfg S3Config, stagingDir string, logger *zap.Logger) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "storage.bucket is required for s3 storage")
	}
	if stagingDir == "" {
		stagingDir = filepath.Join(os.TempDir(), "jvparquet-staging")
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create staging directory").
			WithDetail("path", stagingDir)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Sink{
		uploader:   uploader,
		bucket:     cfg.Bucket,
		prefix:     strings.Trim(cfg.Prefix, "/"),
		stagingDir: stagingDir,
		logger:     logger.With(zap.String("component", "s3_sink"), zap.String("bucket", cfg.Bucket)),
	}, nil
}

// StagingPath returns a hidden file under the staging directory
func (s *S3Sink) StagingPath(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	staging := filepath.Join(s.stagingDir, filepath.FromSlash(stagingName(key)))
	if err := os.MkdirAll(filepath.Dir(staging), 0o755); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to create staging directory").
			WithDetail("path", filepath.Dir(staging))
	}
	return staging, nil
}

// Commit uploads the staged file and removes it
func (s *S3Sink) Commit(ctx context.Context, staging, key string) (string, error) {
	defer os.Remove(staging)

	if err := validateKey(key); err != nil {
		return "", err
	}

	f, err := os.Open(staging)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to open staged segment").
			WithDetail("path", staging)
	}
	defer f.Close()

	return s.upload(ctx, key, f, "application/vnd.apache.parquet")
}

// Put uploads data to key
func (s *S3Sink) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return s.upload(ctx, key, bytes.NewReader(data), "application/json")
}

func (s *S3Sink) upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	start := time.Now()
	objectKey := s.objectKey(key)

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.Wrap(err, errors.ErrorTypeTimeout, "upload cancelled").
				WithDetail("key", objectKey)
		}
		return "", errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload to S3").
			WithDetail("key", objectKey)
	}

	location := s.Location(key)
	s.logger.Debug("object uploaded",
		zap.String("location", location),
		zap.Duration("duration", time.Since(start)))
	return location, nil
}

// Location returns the s3:// URI of key
func (s *S3Sink) Location(key string) string {
	return "s3://" + s.bucket + "/" + s.objectKey(key)
}

func (s *S3Sink) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}
