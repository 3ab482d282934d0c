package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Maestro-111/search-engine/config"
	"github.com/Maestro-111/search-engine/entity"
)

var ErrRemoteJobNotFound = errors.New("job not found or expired")

// JobServiceError is returned for any unexpected response status
type JobServiceError struct {
	StatusCode int
	Body       string
}

func (e *JobServiceError) Error() string {
	return fmt.Sprintf("job service responded HTTP %d: %s", e.StatusCode, e.Body)
}

// JobServiceClient talks to the job API on behalf of the chain consumer
type JobServiceClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func InitJobServiceClient(cfg *config.EnvConfig) *JobServiceClient {
	if cfg.Chain.JobServiceURL == "" {
		panic("Job service URL is not configured")
	}
	return NewJobServiceClient(cfg.Chain.JobServiceURL, cfg.Chain.RequestTimeout)
}

func NewJobServiceClient(baseURL string, timeout time.Duration) *JobServiceClient {
	return &JobServiceClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Submit posts params to /{kind} and returns the queued status.
func (c *JobServiceClient) Submit(ctx context.Context, kind entity.JobKind, params map[string]any, parentJobID string) (*entity.JobStatusResponse, error) {
	body := make(map[string]any, len(params)+1)
	for k, v := range params {
		body[k] = v
	}
	if parentJobID != "" {
		body["parent_job_id"] = parentJobID
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/"+url.PathEscape(string(kind)), bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to create submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *JobServiceClient) Status(ctx context.Context, jobID string) (*entity.JobStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/status/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}
	return c.do(req)
}

func (c *JobServiceClient) do(req *http.Request) (*entity.JobStatusResponse, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call job service: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		var status entity.JobStatusResponse
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return nil, fmt.Errorf("failed to decode job service response: %w", err)
		}
		if status.JobID == "" || status.Status == "" {
			return nil, errors.New("job service returned an incomplete status")
		}
		return &status, nil
	case http.StatusNotFound:
		return nil, ErrRemoteJobNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &JobServiceError{StatusCode: resp.StatusCode, Body: string(body)}
	}
}
