package s3

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultPhotoTTL = 10 * time.Minute

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	PhotoTTL  time.Duration
}

func NewClient(cfg Config) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return client, nil
}

// PhotoSigner turns stored photo keys into short-lived GET links. Uploads are
// owned by a different service; this side only reads.
type PhotoSigner struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

func NewPhotoSigner(client *minio.Client, bucket string, ttl time.Duration) *PhotoSigner {
	if ttl <= 0 {
		ttl = defaultPhotoTTL
	}
	return &PhotoSigner{
		client: client,
		bucket: strings.TrimSpace(bucket),
		ttl:    ttl,
	}
}

func (s *PhotoSigner) SignPhoto(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("photo key is empty")
	}
	if IsAbsoluteURL(key) {
		return key, nil
	}
	if s == nil || s.client == nil {
		return "", fmt.Errorf("s3 client is nil")
	}
	if s.bucket == "" {
		return "", fmt.Errorf("s3 bucket is empty")
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, strings.TrimPrefix(key, "/"), s.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign photo %q: %w", key, err)
	}
	return presigned.String(), nil
}

func IsAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
