package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"pairchat/internal/metrics"
)

// HTTPStore talks to a third-party blob service: multipart POST, JSON
// {"url": "..."} response.
type HTTPStore struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewHTTPStore(endpoint, token string) *HTTPStore {
	return &HTTPStore{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPStore) Upload(ctx context.Context, name string, payload io.Reader) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if _, err := io.Copy(part, payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: unexpected status %d", ErrUpload, resp.StatusCode)
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: decode response: %v", ErrUpload, err)
	}
	if result.URL == "" {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: empty url in response", ErrUpload)
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	return result.URL, nil
}
