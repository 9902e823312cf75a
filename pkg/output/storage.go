// Package output writes result tables, the run manifest and the optional results
// database to a local directory or an S3 prefix.
package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Storage reads and writes result files relative to a base location
type Storage interface {
	// ReadFile reads a file
	ReadFile(ctx context.Context, name string) ([]byte, error)

	// WriteFile writes a file, creating parents as needed
	WriteFile(ctx context.Context, name string, data []byte) error

	// Exists checks if a file exists
	Exists(ctx context.Context, name string) (bool, error)

	// Location returns the base path or s3:// URL
	Location() string
}

// LocalStorage implements Storage for a local directory
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage backend
func NewLocalStorage(basePath string) *LocalStorage {
	return &LocalStorage{basePath: basePath}
}

func (s *LocalStorage) ReadFile(_ context.Context, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.basePath, name))
}

func (s *LocalStorage) WriteFile(_ context.Context, name string, data []byte) error {
	fullPath := filepath.Join(s.basePath, name)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(fullPath, data, 0o644)
}

func (s *LocalStorage) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.basePath, name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *LocalStorage) Location() string {
	return s.basePath
}

// S3Storage implements Storage for an S3 bucket prefix
type S3Storage struct {
	bucket     string
	prefix     string
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
}

// ParseS3URL splits s3://bucket/prefix
func ParseS3URL(url string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(url, "s3://") {
		return "", "", fmt.Errorf("invalid S3 path: %s (must start with s3://)", url)
	}
	parts := strings.SplitN(strings.TrimPrefix(url, "s3://"), "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid S3 path: %s (missing bucket)", url)
	}
	if len(parts) > 1 {
		prefix = strings.Trim(parts[1], "/")
	}
	return parts[0], prefix, nil
}

// NewS3Storage creates an S3 backend using the default AWS credential chain
func NewS3Storage(ctx context.Context, url string) (*S3Storage, error) {
	bucket, prefix, err := ParseS3URL(url)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)

	return &S3Storage{
		bucket:     bucket,
		prefix:     prefix,
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
	}, nil
}

func (s *S3Storage) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *S3Storage) ReadFile(ctx context.Context, name string) ([]byte, error) {
	key := s.key(name)

	buf := manager.NewWriteAtBuffer([]byte{})
	_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", s.bucket, key, err)
	}
	return buf.Bytes(), nil
}

func (s *S3Storage) WriteFile(ctx context.Context, name string, data []byte) error {
	key := s.key(name)

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *S3Storage) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, err
}

func (s *S3Storage) Location() string {
	if s.prefix == "" {
		return "s3://" + s.bucket
	}
	return "s3://" + s.bucket + "/" + s.prefix
}

// NewStorage creates the appropriate storage backend based on location
func NewStorage(ctx context.Context, location string) (Storage, error) {
	if strings.HasPrefix(location, "s3://") {
		return NewS3Storage(ctx, location)
	}
	return NewLocalStorage(location), nil
}
