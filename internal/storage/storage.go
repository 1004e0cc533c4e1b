package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Store persists uploaded files and returns an opaque storage key. Keys are
// never exposed as raw URLs in API payloads.
type Store interface {
	Save(ctx context.Context, r io.Reader, filename string, folder string) (string, error)
	Delete(ctx context.Context, key string) error
}

type S3Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

type S3Store struct {
	client *s3.Client
	bucket string
}

func NewS3Store(cfg S3Config) *S3Store {
	client := s3.NewFromConfig(aws.Config{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		),
	}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket}
}

func (s *S3Store) Save(ctx context.Context, r io.Reader, filename string, folder string) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	key := fmt.Sprintf("%s/%s/%s%s",
		folder,
		time.Now().UTC().Format("2006/01"),
		uuid.NewString(),
		ext,
	)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	return key, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

var _ Store = (*S3Store)(nil)

// LogStore is a no-op Store for environments without object storage. Keys
// are generated so the rest of the flow behaves normally.
type LogStore struct{}

func (LogStore) Save(_ context.Context, _ io.Reader, filename string, folder string) (string, error) {
	key := fmt.Sprintf("%s/%s-%s", folder, uuid.NewString(), filename)
	log.Printf("storage (log only) save %s", key)
	return key, nil
}

func (LogStore) Delete(_ context.Context, key string) error {
	log.Printf("storage (log only) delete %s", key)
	return nil
}

var _ Store = LogStore{}
