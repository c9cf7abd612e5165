// Package objectstore хранит аватары пользователей в S3-совместимом хранилище.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/config"
	"github.com/magabrotheeeer/lms-identity/internal/models"
)

// S3Store загружает и удаляет объекты в одном бакете.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	baseURL  string
}

// NewS3 создаёт клиент и проверяет, что бакет существует.
func NewS3(ctx context.Context, cfg config.S3) (*S3Store, error) {
	const op = "objectstore.NewS3"
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%s: bucket is not configured", op)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
			return nil, fmt.Errorf("%s: bucket '%s' does not exist", op, cfg.Bucket)
		}
		return nil, fmt.Errorf("%s: failed to check if bucket exists: %w", op, err)
	}

	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		baseURL:  publicBaseURL(cfg),
	}, nil
}

// Upload сохраняет файл под новым уникальным ключом и возвращает его идентификатор и URL.
func (s *S3Store) Upload(ctx context.Context, file models.Upload) (models.Avatar, error) {
	const op = "objectstore.Upload"
	key := objectKey(s.prefix, file.Name)

	input := &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         file.Body,
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	}
	if file.ContentType != "" {
		input.ContentType = aws.String(file.ContentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return models.Avatar{}, apperr.Upstream(op, err)
	}
	return models.Avatar{
		PublicID:  key,
		SecureURL: s.baseURL + "/" + key,
	}, nil
}

// Delete удаляет объект по идентификатору. Пустой идентификатор игнорируется.
func (s *S3Store) Delete(ctx context.Context, publicID string) error {
	const op = "objectstore.Delete"
	if publicID == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(publicID),
	})
	if err != nil {
		return apperr.Upstream(op, err)
	}
	return nil
}

func objectKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	key := "avatars/" + uuid.NewString() + ext
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

func publicBaseURL(cfg config.S3) string {
	switch {
	case cfg.PublicBaseURL != "":
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}
