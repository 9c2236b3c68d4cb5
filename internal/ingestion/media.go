package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"replyforce_backend/platform/config"
)

// MediaArchiver copies an inbound attachment out of the platform CDN into
// durable storage. Platform media urls expire; archived copies do not.
type MediaArchiver interface {
	Archive(ctx context.Context, tenantID, messageID uuid.UUID, mediaURL, contentType string) (string, error)
}

// MinIOArchiver stores attachments in an S3-compatible bucket.
type MinIOArchiver struct {
	client *minio.Client
	bucket string
	http   *http.Client
}

// NewMinIOArchiver connects to the configured endpoint. Returns nil (archiving
// disabled) when no endpoint is configured.
func NewMinIOArchiver(cfg config.MediaConfig) (*MinIOArchiver, error) {
	if !cfg.IsMediaArchiveEnabled() {
		return nil, nil
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	return &MinIOArchiver{
		client: client,
		bucket: cfg.GetMediaBucket(),
		http:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// EnsureBucket creates the media bucket if it does not exist yet. Called once
// at startup.
func (a *MinIOArchiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check media bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create media bucket: %w", err)
	}
	return nil
}

// Archive downloads the attachment and stores it under
// {tenant}/{message}{ext}. Returns the object key.
func (a *MinIOArchiver) Archive(ctx context.Context, tenantID, messageID uuid.UUID, mediaURL, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("media request: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch media: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch media: unexpected status %d", resp.StatusCode)
	}

	objectKey := fmt.Sprintf("%s/%s%s", tenantID, messageID, mediaExtension(mediaURL, contentType))

	_, err = a.client.PutObject(ctx, a.bucket, objectKey, resp.Body, resp.ContentLength, minio.PutObjectOptions{
		ContentType: resp.Header.Get("Content-Type"),
	})
	if err != nil {
		return "", fmt.Errorf("store media object: %w", err)
	}
	return objectKey, nil
}

func mediaExtension(mediaURL, contentType string) string {
	if ext := path.Ext(strings.SplitN(mediaURL, "?", 2)[0]); ext != "" && len(ext) <= 5 {
		return ext
	}
	switch contentType {
	case "IMAGE":
		return ".jpg"
	case "VIDEO":
		return ".mp4"
	case "AUDIO":
		return ".ogg"
	default:
		return ""
	}
}
