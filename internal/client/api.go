// Package client is the submitting side of the job API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"assessment-jobs/internal/errors"
	"assessment-jobs/internal/models"
)

const (
	// DefaultTimeout is the default timeout for a single API request.
	DefaultTimeout = 10 * time.Second
	// MaxResponseSize is the maximum response body size (4MB).
	MaxResponseSize = 4 * 1024 * 1024
)

// Client is an HTTP client for the job API.
type Client struct {
	BaseURL    string
	ClientID   string
	HTTPClient *http.Client
}

// NewClient creates an API client. timeout <= 0 uses DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateJob submits a generation request.
func (c *Client) CreateJob(ctx context.Context, req *models.CreateJobRequest) (*models.CreateJobResponse, error) {
	var resp models.CreateJobResponse
	if err := c.do(ctx, http.MethodPost, "/api/create-job", req, &resp); err != nil {
		return nil, errors.Wrap(err, "create job")
	}
	return &resp, nil
}

// PollStatus fetches the current status of a job.
func (c *Client) PollStatus(ctx context.Context, jobID string) (*models.JobStatusResponse, error) {
	var resp models.JobStatusResponse
	path := "/api/poll-status?jobId=" + url.QueryEscape(jobID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, errors.Wrap(err, "poll status")
	}
	return &resp, nil
}

// GetResource fetches a resource, used as the poller's fallback check.
func (c *Client) GetResource(ctx context.Context, id string) (*models.ResourceResponse, error) {
	var resp models.ResourceResponse
	if err := c.do(ctx, http.MethodGet, "/api/resource/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, errors.Wrap(err, "get resource")
	}
	return &resp, nil
}

// DeleteResource runs the guarded delete-or-archive.
func (c *Client) DeleteResource(ctx context.Context, id string) (*models.DeleteResourceResponse, error) {
	var resp models.DeleteResourceResponse
	if err := c.do(ctx, http.MethodDelete, "/api/resource/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, errors.Wrap(err, "delete resource")
	}
	return &resp, nil
}

// PatchResource applies activate, deactivate or publish.
func (c *Client) PatchResource(ctx context.Context, id string, req *models.PatchResourceRequest) (*models.PatchResourceResponse, error) {
	var resp models.PatchResourceResponse
	if err := c.do(ctx, http.MethodPatch, "/api/resource/"+url.PathEscape(id), req, &resp); err != nil {
		return nil, errors.Wrapf(err, "%s resource", req.Action)
	}
	return &resp, nil
}

// do performs a JSON request. Transport failures and 5xx responses are marked
// ErrTransientNetwork; API error bodies are mapped back to their class.
func (c *Client) do(ctx context.Context, method, path string, body, target interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.ClientID != "" {
		req.Header.Set("X-Client-ID", c.ClientID)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.Mark(errors.Wrap(err, "request failed"), errors.ErrTransientNetwork)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return errors.Mark(errors.Wrap(err, "failed to read response body"), errors.ErrTransientNetwork)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, raw)
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to decode JSON response (body: %s)", truncate(raw)), errors.ErrTransientNetwork)
	}
	return nil
}

func statusError(status int, raw []byte) error {
	code, message := "", strings.TrimSpace(string(raw))

	var body models.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		code, message = body.Code, body.Error
	}
	if message == "" {
		message = http.StatusText(status)
	}
	if code == "" {
		code = codeForStatus(status)
	}

	err := errors.FromCode(code, fmt.Sprintf("api returned %d: %s", status, message))
	if status >= 500 {
		return errors.Mark(err, errors.ErrTransientNetwork)
	}
	return err
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return errors.CodeValidation
	case http.StatusNotFound:
		return errors.CodeNotFound
	case http.StatusConflict:
		return errors.CodeConflict
	case http.StatusTooManyRequests:
		return errors.CodeRateLimited
	default:
		return errors.CodeInternal
	}
}

func truncate(raw []byte) string {
	const limit = 200
	if len(raw) <= limit {
		return string(raw)
	}
	return string(raw[:limit]) + "..."
}
