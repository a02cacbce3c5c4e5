package media

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/storage/v1"
)

const gcsPublicHost = "https://storage.googleapis.com"

// GCSStorage uploads assets to a Google Cloud Storage bucket.
type GCSStorage struct {
	service *storage.Service
	bucket  string
	prefix  string
}

// NewGCSStorage creates a bucket uploader authenticated by tokenSource
func NewGCSStorage(ctx context.Context, tokenSource oauth2.TokenSource, bucket, prefix string) (*GCSStorage, error) {
	service, err := storage.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}
	return &GCSStorage{service: service, bucket: bucket, prefix: prefix}, nil
}

// Store uploads localPath as objectName and returns its public URL
func (s *GCSStorage) Store(ctx context.Context, localPath, objectName string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	name := path.Join(s.prefix, objectName)
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	obj, err := s.service.Objects.
		Insert(s.bucket, &storage.Object{
			Name:         name,
			ContentType:  contentType,
			CacheControl: "public, max-age=31536000",
		}).
		Media(f, googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("upload %s to gs://%s: %w", name, s.bucket, err)
	}

	return fmt.Sprintf("%s/%s/%s", gcsPublicHost, obj.Bucket, obj.Name), nil
}
