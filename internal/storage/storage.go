package storage

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	DefaultUploadExpiry = 15 * time.Minute
	DefaultResultExpiry = time.Hour
)

// Storage hands out presigned URLs for intake uploads and processed results.
type Storage struct {
	client       *s3.Client
	presigner    *s3.PresignClient
	bucket       string
	maxBytes     int64
	uploadExpiry time.Duration
	resultExpiry time.Duration
}

type Config struct {
	Endpoint       string
	PublicEndpoint string // Used for presigned URLs; falls back to Endpoint if empty
	Bucket         string
	AccessKey      string
	SecretKey      string
	Region         string
	MaxUploadBytes int64
	UploadExpiry   time.Duration
	ResultExpiry   time.Duration
}

func New(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "eu-central-1"
	}
	if cfg.UploadExpiry <= 0 {
		cfg.UploadExpiry = DefaultUploadExpiry
	}
	if cfg.ResultExpiry <= 0 {
		cfg.ResultExpiry = DefaultResultExpiry
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	presignEndpoint := cfg.Endpoint
	if cfg.PublicEndpoint != "" {
		presignEndpoint = cfg.PublicEndpoint
	}
	presignClient := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if presignEndpoint != "" {
			o.BaseEndpoint = aws.String(presignEndpoint)
		}
		o.UsePathStyle = true
	})

	return &Storage{
		client:       client,
		presigner:    s3.NewPresignClient(presignClient),
		bucket:       cfg.Bucket,
		maxBytes:     cfg.MaxUploadBytes,
		uploadExpiry: cfg.UploadExpiry,
		resultExpiry: cfg.ResultExpiry,
	}, nil
}

// UploadKey is where the original file of an intake session is stored.
func UploadKey(userID, sessionID, contentType string) string {
	return path.Join("uploads", userID, sessionID+extensionFor(contentType))
}

// ResultKey is where the processed output of an intake session is stored.
func ResultKey(sessionID string) string {
	return path.Join("processed", sessionID+".mp4")
}

func extensionFor(contentType string) string {
	switch contentType {
	case "video/quicktime":
		return ".mov"
	case "video/x-msvideo":
		return ".avi"
	default:
		return ".mp4"
	}
}

func (s *Storage) UploadURL(ctx context.Context, key string, contentType string, contentLength int64) (string, error) {
	if s == nil {
		return "", fmt.Errorf("storage not initialized")
	}
	if s.maxBytes > 0 && contentLength > s.maxBytes {
		return "", fmt.Errorf("file too large: %d > %d", contentLength, s.maxBytes)
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
	if contentLength > 0 {
		input.ContentLength = aws.Int64(contentLength)
	}
	req, err := s.presigner.PresignPutObject(ctx, input, s3.WithPresignExpires(s.uploadExpiry))
	if err != nil {
		return "", fmt.Errorf("presign upload: %w", err)
	}
	return req.URL, nil
}

func (s *Storage) DownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return req.URL, nil
}

// ResultURL presigns the processed output of sessionID.
func (s *Storage) ResultURL(ctx context.Context, sessionID string) (string, error) {
	return s.DownloadURL(ctx, ResultKey(sessionID), s.resultExpiry)
}

// PublishResult copies the uploaded original at uploadKey to the result key of
// sessionID and presigns it. Simulated processing has no output of its own, so
// the original stands in for the processed file.
func (s *Storage) PublishResult(ctx context.Context, uploadKey, sessionID string) (string, error) {
	resultKey := ResultKey(sessionID)
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(resultKey),
		CopySource: aws.String(path.Join(s.bucket, uploadKey)),
	})
	if err != nil {
		return "", fmt.Errorf("copy %s to %s: %w", uploadKey, resultKey, err)
	}
	return s.ResultURL(ctx, sessionID)
}

// SetCORS lets browsers PUT uploads and GET results from allowedOrigins.
func (s *Storage) SetCORS(ctx context.Context, allowedOrigins []string) error {
	_, err := s.client.PutBucketCors(ctx, &s3.PutBucketCorsInput{
		Bucket: aws.String(s.bucket),
		CORSConfiguration: &types.CORSConfiguration{
			CORSRules: []types.CORSRule{
				{
					AllowedOrigins: allowedOrigins,
					AllowedMethods: []string{"GET", "PUT"},
					AllowedHeaders: []string{"*"},
					MaxAgeSeconds:  aws.Int32(3600),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("set bucket CORS: %w", err)
	}
	return nil
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}
