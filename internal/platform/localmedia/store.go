// Package localmedia keeps chat media on local disk for single-process
// deployments without a bucket. URLs point at the static route the HTTP
// router mounts over Dir.
package localmedia

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/platform/gcp"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type Store struct {
	log     *logger.Logger
	dir     string
	baseURL string
}

func New(log *logger.Logger, dir, baseURL string) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("missing media dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{
		log:     log.With("service", "LocalMedia"),
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) Upload(_ context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty media payload")
	}
	key := gcp.NewObjectKey("", contentType)
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create media subdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}
	return key, nil
}

func (s *Store) URL(_ context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid media key %q", key)
	}
	return s.baseURL + "/" + key, nil
}
