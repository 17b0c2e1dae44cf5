package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// HTTPTransport downloads with net/http.
type HTTPTransport struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPTransport creates a transport. A zero timeout means none.
func NewHTTPTransport(timeout time.Duration, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPTransport{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Download streams url into dest.
func (t *HTTPTransport) Download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to start download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	// Truncated bodies must not end up looking like a cached download.
	if resp.ContentLength > 0 && written != resp.ContentLength {
		return fmt.Errorf("incomplete download: got %d bytes, expected %d bytes", written, resp.ContentLength)
	}

	t.logger.Debug("downloaded archive", "url", url, "bytes", written, "elapsed", time.Since(start).Round(time.Millisecond))

	return nil
}
