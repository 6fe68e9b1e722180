// Package platform talks to the controlling service's job API.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/nsbb/platform-sdk/internal/domain"
)

// JobMetadata carries the metadata fields the platform recognizes for a job.
type JobMetadata struct {
	FrameCount      int64   `json:"frame_count"`
	DurationSeconds float64 `json:"duration_seconds"`
	SizeBytes       int64   `json:"size_bytes"`
}

// Client reports job-level state and metadata to the controlling service.
type Client interface {
	UpdateJobState(ctx context.Context, jobID string, state domain.TaskState, failureType domain.FailureType) error
	PostJobMetadata(ctx context.Context, jobID string, metadata JobMetadata) error
	UploadJobOutputAsData(ctx context.Context, jobID, localPath string) (string, error)
}

// HTTPClient is the production Client implementation.
type HTTPClient struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientConfig configures an HTTPClient.
type ClientConfig struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewClient creates an HTTPClient. A zero timeout defaults to 30 seconds.
func NewClient(cfg ClientConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		apiToken:   cfg.APIToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type jobStateRequest struct {
	State       domain.TaskState   `json:"state"`
	FailureType domain.FailureType `json:"failure_type,omitempty"`
}

// UpdateJobState reports the coarse job state. The failure type is sent only
// when the state is FAILED.
func (c *HTTPClient) UpdateJobState(ctx context.Context, jobID string, state domain.TaskState, failureType domain.FailureType) error {
	req := jobStateRequest{State: state}
	if state == domain.StateFailed {
		req.FailureType = failureType
	}

	url := fmt.Sprintf("%s/api/v1/jobs/%s/state", c.baseURL, jobID)
	if err := c.postJSON(ctx, url, req, nil); err != nil {
		return fmt.Errorf("failed to update job state: %w", err)
	}

	c.logger.Info("job_state_posted",
		zap.String("job_id", jobID),
		zap.String("state", string(state)),
		zap.String("failure_type", string(req.FailureType)),
	)
	return nil
}

// PostJobMetadata reports input metadata for the job.
func (c *HTTPClient) PostJobMetadata(ctx context.Context, jobID string, metadata JobMetadata) error {
	url := fmt.Sprintf("%s/api/v1/jobs/%s/metadata", c.baseURL, jobID)
	if err := c.postJSON(ctx, url, metadata, nil); err != nil {
		return fmt.Errorf("failed to post job metadata: %w", err)
	}

	c.logger.Info("job_metadata_posted", zap.String("job_id", jobID))
	return nil
}

type uploadDataResponse struct {
	DataID string `json:"data_id"`
}

// UploadJobOutputAsData uploads a job output through the platform's data
// ingestion path and returns the assigned data ID.
func (c *HTTPClient) UploadJobOutputAsData(ctx context.Context, jobID, localPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", localPath, err)
	}

	url := fmt.Sprintf("%s/api/v1/jobs/%s/data?filename=%s", c.baseURL, jobID, filepath.Base(localPath))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiToken))

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("job_data_upload_network_error", zap.Error(err), zap.String("job_id", jobID))
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var uploadResp uploadDataResponse
	if err := json.Unmarshal(respBody, &uploadResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	c.logger.Info("job_data_uploaded",
		zap.String("job_id", jobID),
		zap.String("data_id", uploadResp.DataID),
		zap.Int("bytes", len(data)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return uploadResp.DataID, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiToken))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
