package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"pairchat/internal/metrics"
)

// LocalStore writes uploads to a directory served by the HTTP server under
// /uploads. Development default.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: baseURL}, nil
}

func (s *LocalStore) Upload(ctx context.Context, name string, payload io.Reader) (string, error) {
	dest := filepath.Join(s.dir, filepath.Base(name))

	f, err := os.Create(dest)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}

	if _, err := io.Copy(f, payload); err != nil {
		f.Close()
		os.Remove(dest)
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	if s.baseURL != "" {
		return fmt.Sprintf("%s/uploads/%s", s.baseURL, filepath.Base(name)), nil
	}
	return "/uploads/" + filepath.Base(name), nil
}
