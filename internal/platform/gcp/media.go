package gcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type MediaConfig struct {
	Bucket string
	// Prefix is prepended to every object key, e.g. "chat-media".
	Prefix string
	// URLTTL bounds the lifetime of signed retrieval URLs.
	URLTTL time.Duration
	// EmulatorHost switches to an unauthenticated fake-gcs-server endpoint.
	EmulatorHost string
	// CredentialsFile is a service account key path; empty uses ADC.
	CredentialsFile string
}

// MediaBucket stores chat media in a single GCS bucket and hands out V4
// signed URLs for reads.
type MediaBucket struct {
	log      *logger.Logger
	client   *storage.Client
	bucket   string
	prefix   string
	urlTTL   time.Duration
	emulator string
}

func NewMediaBucket(ctx context.Context, log *logger.Logger, cfg MediaConfig) (*MediaBucket, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("missing media bucket name")
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = 15 * time.Minute
	}

	var (
		client *storage.Client
		err    error
	)
	emulator := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
	if emulator != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", emulator)
		client, err = storage.NewClient(ctx, option.WithoutAuthentication())
	} else {
		opts := append(credentialOptions(cfg.CredentialsFile), option.WithScopes(storage.ScopeReadWrite))
		client, err = storage.NewClient(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	mlog := log.With("service", "MediaBucket")
	mlog.Info("Media storage initialized", "bucket", cfg.Bucket, "emulator_host", emulator)
	return &MediaBucket{
		log:      mlog,
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		urlTTL:   cfg.URLTTL,
		emulator: emulator,
	}, nil
}

// Upload writes data under a fresh key and returns that key.
func (m *MediaBucket) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty media payload")
	}
	key := NewObjectKey(m.prefix, contentType)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := m.client.Bucket(m.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write media object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close media writer: %w", err)
	}
	return key, nil
}

// URL resolves key to a time-limited retrieval URL.
func (m *MediaBucket) URL(_ context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("empty media key")
	}
	if m.emulator != "" {
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", m.emulator, m.bucket, key), nil
	}
	return m.client.Bucket(m.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(m.urlTTL),
	})
}

func (m *MediaBucket) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}

// NewObjectKey builds "<prefix>/<yyyy>/<mm>/<uuid><ext>" for contentType.
func NewObjectKey(prefix, contentType string) string {
	ext := ""
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	now := time.Now().UTC()
	key := fmt.Sprintf("%04d/%02d/%s%s", now.Year(), int(now.Month()), uuid.NewString(), ext)
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
