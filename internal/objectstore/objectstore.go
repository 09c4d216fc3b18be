// Package objectstore provides the GET/PUT abstraction the dispatcher uses
// to move track audio and reports in and out of MinIO/S3, including the
// key-generation and dual s3://, http(s):// URL parsing the webhook
// payloads rely on.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store is the narrow interface the job handlers depend on.
type Store interface {
	Get(ctx context.Context, sourceURL string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
}

// MinIO backs Store with a path-style MinIO/S3 client.
type MinIO struct {
	client   *minio.Client
	bucket   string
	endpoint string
}

// Config holds the MINIO_* environment variables, each with the same
// default as the Rust worker's from_env().
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinIO constructs a path-style client (force_path_style=true,
// region us-east-1) from cfg.
func NewMinIO(cfg Config) (*MinIO, error) {
	endpointHost := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	client, err := minio.New(endpointHost, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       "us-east-1",
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: new client: %w", err)
	}
	return &MinIO{client: client, bucket: cfg.Bucket, endpoint: cfg.Endpoint}, nil
}

// Get downloads sourceURL, which may be either an s3://bucket/key URL or
// an http(s)://host/bucket/key URL.
func (m *MinIO) Get(ctx context.Context, sourceURL string) ([]byte, error) {
	bucket, key, err := ParseURL(sourceURL)
	if err != nil {
		return nil, err
	}
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("objectstore: get %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("objectstore: read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Put uploads data to the configured bucket under key and returns the full
// URL other services can later parse with ParseURL.
func (m *MinIO) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("objectstore: put %s/%s: %w", m.bucket, key, err)
	}
	return fmt.Sprintf("%s/%s/%s", m.endpoint, m.bucket, key), nil
}

// GenerateKey builds "<prefix>/<trackId>/<unix_ms>-<suffix>", matching the
// original's S3Client::generate_key.
func GenerateKey(prefix, trackID, suffix string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%d-%s", prefix, trackID, now.UnixMilli(), suffix)
}

// ParseURL extracts (bucket, key) from either an "s3://bucket/key" or an
// "http(s)://host[:port]/bucket/key" URL.
func ParseURL(rawURL string) (bucket, key string, err error) {
	if rest, ok := strings.CutPrefix(rawURL, "s3://"); ok {
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) == 2 {
			return parts[0], parts[1], nil
		}
		return "", "", fmt.Errorf("objectstore: malformed s3 url %q", rawURL)
	}

	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		parsed, parseErr := url.Parse(rawURL)
		if parseErr != nil {
			return "", "", fmt.Errorf("objectstore: invalid url %q: %w", rawURL, parseErr)
		}
		path := strings.TrimPrefix(parsed.Path, "/")
		parts := strings.SplitN(path, "/", 2)
		if len(parts) == 2 {
			return parts[0], parts[1], nil
		}
		return "", "", fmt.Errorf("objectstore: malformed url path %q", rawURL)
	}

	return "", "", fmt.Errorf("objectstore: could not parse url: %q", rawURL)
}
