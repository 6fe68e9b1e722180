// Package remote implements signed-URL transfer against the platform's
// object storage. A Location wraps one LocationSpec and supports download
// to a directory and upload of a local file.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nsbb/platform-sdk/internal/domain"
)

// Location is an addressable remote object.
type Location struct {
	spec       domain.LocationSpec
	httpClient *http.Client
	logger     *zap.Logger
}

// Transfer builds Locations that share one HTTP client and logger.
type Transfer struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// TransferConfig configures a Transfer.
type TransferConfig struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewTransfer creates a Transfer. A zero timeout defaults to 5 minutes,
// which has to cover whole-object uploads and downloads, not just headers.
func NewTransfer(cfg TransferConfig) *Transfer {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transfer{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Location binds a spec to this transfer's client.
func (t *Transfer) Location(spec domain.LocationSpec) *Location {
	return &Location{spec: spec, httpClient: t.httpClient, logger: t.logger}
}

// FromSignedURL binds a bare signed URL as a read location.
func (t *Transfer) FromSignedURL(signedURL string) *Location {
	return t.Location(domain.LocationSpecFromSignedURL(signedURL))
}

// DownloadBytes fetches the object into memory.
func (l *Location) DownloadBytes(ctx context.Context) ([]byte, error) {
	method := l.spec.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, l.spec.SignedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := l.httpClient.Do(req)
	if err != nil {
		l.logger.Warn("remote_download_network_error", zap.Error(err))
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	l.logger.Debug("remote_download_response",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("storage returned status %d", resp.StatusCode)
	}
	return body, nil
}

// Download fetches the object into destDir and returns the local path. The
// filename is taken from the URL path; when the URL yields no usable name a
// random one is generated.
func (l *Location) Download(ctx context.Context, destDir string) (string, error) {
	data, err := l.DownloadBytes(ctx)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}

	localPath := filepath.Join(destDir, l.filename())
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write download: %w", err)
	}

	l.logger.Debug("remote_download_written",
		zap.String("path", localPath),
		zap.Int("bytes", len(data)),
	)
	return localPath, nil
}

// Upload sends a local file to the location.
func (l *Location) Upload(ctx context.Context, localPath, contentType string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", localPath, err)
	}
	return l.UploadBytes(ctx, data, contentType)
}

// UploadBytes sends raw content to the location.
func (l *Location) UploadBytes(ctx context.Context, data []byte, contentType string) error {
	method := l.spec.Method
	if method == "" || method == http.MethodGet {
		method = http.MethodPut
	}

	req, err := http.NewRequestWithContext(ctx, method, l.spec.SignedURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := l.httpClient.Do(req)
	if err != nil {
		l.logger.Warn("remote_upload_network_error", zap.Error(err))
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	l.logger.Debug("remote_upload_response",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("storage returned status %d", resp.StatusCode)
	}
	return nil
}

func (l *Location) filename() string {
	u, err := url.Parse(l.spec.SignedURL)
	if err == nil {
		if name := path.Base(u.Path); name != "" && name != "." && name != "/" {
			return name
		}
	}
	return uuid.New().String()
}
