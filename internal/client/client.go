// Package client is a Go client for the emotion analysis HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/emoscope/internal/api"
	"github.com/phrazzld/emoscope/internal/api/shared"
	"github.com/phrazzld/emoscope/internal/domain"
	"github.com/sethvargo/go-retry"
)

// Errors returned by the client.
var (
	// ErrTaskFailed is returned by Wait when the task finished as failed.
	ErrTaskFailed = errors.New("analysis task failed")

	// ErrUnavailable is returned when the server answers 503.
	ErrUnavailable = errors.New("server unavailable")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	TraceID    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	if e.TraceID != "" {
		msg += " (trace " + e.TraceID + ")"
	}
	return msg
}

// Unwrap maps status codes onto the domain sentinels.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return domain.ErrInvalidInput
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusServiceUnavailable:
		return ErrUnavailable
	}
	return nil
}

// Client talks to one server.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// New creates a client for the server at baseURL. A nil httpClient uses a
// client with a 30 second timeout.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: u, http: httpClient}, nil
}

// Submit starts the analysis of a post URL and returns the task ID.
func (c *Client) Submit(ctx context.Context, postURL string) (uuid.UUID, error) {
	var resp api.SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/predict_url", api.PredictURLRequest{URL: postURL}, &resp); err != nil {
		return uuid.Nil, err
	}

	id, err := uuid.Parse(resp.TaskID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("server returned invalid task id %q: %w", resp.TaskID, err)
	}
	return id, nil
}

// Result polls a task once.
func (c *Client) Result(ctx context.Context, id uuid.UUID) (*api.ResultResponse, error) {
	var resp api.ResultResponse
	if err := c.do(ctx, http.MethodGet, "/api/result/"+id.String(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Wait polls a task every interval until it reaches a terminal state or ctx
// is done. A failed task is returned together with an error wrapping
// ErrTaskFailed.
func (c *Client) Wait(ctx context.Context, id uuid.UUID, interval time.Duration) (*api.ResultResponse, error) {
	if interval <= 0 {
		interval = time.Second
	}

	var last *api.ResultResponse
	err := retry.Do(ctx, retry.NewConstant(interval), func(ctx context.Context) error {
		resp, err := c.Result(ctx, id)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
				return err
			}
			return retry.RetryableError(err)
		}
		last = resp
		if resp.Status == "pending" {
			return retry.RetryableError(errors.New("task pending"))
		}
		return nil
	})
	if err != nil {
		return last, err
	}

	if last.Status == "failed" {
		return last, fmt.Errorf("%w: %s", ErrTaskFailed, last.Error)
	}
	return last, nil
}

// PredictText classifies text synchronously.
func (c *Client) PredictText(ctx context.Context, text string) (*domain.TextAnalysis, error) {
	var resp domain.TextAnalysis
	if err := c.do(ctx, http.MethodPost, "/api/predict_text", api.PredictTextRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	var resp api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("unexpected health status %q", resp.Status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp shared.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&errResp)
		if errResp.Error == "" {
			errResp.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error, TraceID: errResp.TraceID}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
