// Package storage сохраняет изображения академий в S3-совместимом хранилище.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Options содержит параметры подключения к хранилищу.
type Options struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint задаёт адрес S3-совместимого сервиса (MinIO, localstack).
	Endpoint string
	// PublicBaseURL используется для публичных ссылок вместо адреса бакета.
	PublicBaseURL string
}

// S3Storage загружает объекты в бакет и возвращает их публичные URL.
type S3Storage struct {
	client   *s3.Client
	bucket   string
	region   string
	endpoint string
	baseURL  string
}

// NewS3Storage создаёт клиент хранилища.
func NewS3Storage(ctx context.Context, opts Options) (*S3Storage, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimRight(opts.Endpoint, "/")
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
	})

	return &S3Storage{
		client:   client,
		bucket:   opts.Bucket,
		region:   opts.Region,
		endpoint: endpoint,
		baseURL:  strings.TrimRight(opts.PublicBaseURL, "/"),
	}, nil
}

// Upload сохраняет объект под ключом folder/<uuid><ext> и возвращает его URL.
func (s *S3Storage) Upload(ctx context.Context, folder, filename, contentType string, body io.Reader, size int64) (string, error) {
	key := path.Join(folder, uuid.NewString()+strings.ToLower(filepath.Ext(filename)))

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return s.URL(key), nil
}

// URL возвращает публичную ссылку на объект.
func (s *S3Storage) URL(key string) string {
	switch {
	case s.baseURL != "":
		return fmt.Sprintf("%s/%s", s.baseURL, key)
	case s.endpoint != "":
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
	}
}

// Delete удаляет объект по публичной ссылке, выданной Upload.
func (s *S3Storage) Delete(ctx context.Context, url string) error {
	prefix := s.URL("")
	key := strings.TrimPrefix(url, prefix)
	if key == url || key == "" {
		return fmt.Errorf("url %q does not belong to bucket %s", url, s.bucket)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}
