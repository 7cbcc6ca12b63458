package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	config "github.com/linkhubhq/linkhub-api/configs"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// MediaResolver is what platform adapters need from media storage: raw bytes
// for direct uploads, and a public URL for platforms that ingest by URL.
type MediaResolver interface {
	Resolve(ctx context.Context, key string) ([]byte, string, error)
	EnsurePublic(ctx context.Context, key string) (string, error)
}

type MediaService interface {
	MediaResolver
	Upload(ctx context.Context, files []*multipart.FileHeader) ([]string, error)
}

type mediaService struct {
	cfg    config.Config
	client *s3.Client
}

func NewMediaService(cfg config.Config) MediaService {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2.AccessKey, cfg.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Error(err.Error())
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2.AccountID))
	})

	return &mediaService{cfg: cfg, client: client}
}

var allowedMediaTypes = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "webp": {}, "mp4": {}, "mov": {},
}

// Upload stores draft attachments and returns their storage keys.
func (s *mediaService) Upload(ctx context.Context, files []*multipart.FileHeader) ([]string, error) {
	keys := make([]string, 0, len(files))

	for _, file := range files {
		fileContent, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("error opening file: %w", err)
		}

		fileBytes, err := io.ReadAll(fileContent)
		fileContent.Close()
		if err != nil {
			return nil, fmt.Errorf("error reading file content: %w", err)
		}

		fileType, err := filetype.Match(fileBytes)
		if err != nil || fileType == types.Unknown {
			return nil, fmt.Errorf("unsupported file type: %w", err)
		}
		if _, ok := allowedMediaTypes[fileType.Extension]; !ok {
			return nil, fmt.Errorf("file type %s is not allowed", fileType.Extension)
		}

		key, err := gonanoid.New()
		if err != nil {
			return nil, err
		}

		input := &s3.PutObjectInput{
			Bucket:      aws.String(s.cfg.R2.BucketName),
			Key:         aws.String(key),
			Body:        bytes.NewReader(fileBytes),
			ContentType: aws.String(fileType.MIME.Value),
		}
		if _, err := s.client.PutObject(ctx, input); err != nil {
			slog.Info(err.Error())
			return nil, fmt.Errorf("error uploading file: %w", err)
		}

		keys = append(keys, key)
	}

	return keys, nil
}

// Resolve fetches a stored object and sniffs its content type.
func (s *mediaService) Resolve(ctx context.Context, key string) ([]byte, string, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.R2.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Info(err.Error())
		return nil, "", fmt.Errorf("error fetching media %s: %w", key, err)
	}
	defer output.Body.Close()

	fileBytes, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, "", fmt.Errorf("error reading media %s: %w", key, err)
	}

	mimeType := aws.ToString(output.ContentType)
	if fileType, err := filetype.Match(fileBytes); err == nil && fileType != types.Unknown {
		mimeType = fileType.MIME.Value
	}

	return fileBytes, mimeType, nil
}

// EnsurePublic verifies the object exists and returns its public bucket URL.
// This is the hosted-media hop platforms like Facebook and Instagram need; a
// missing object fails the publish attempt.
func (s *mediaService) EnsurePublic(ctx context.Context, key string) (string, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.R2.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("media %s is not available: %w", key, err)
	}

	return fmt.Sprintf("%s/%s", s.cfg.R2.PublicBaseURL, key), nil
}
