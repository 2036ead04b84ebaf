// Package inference classifies text and images by calling an HTTP model
// server. The server answers with raw logits which are ranked locally.
package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/emoscope/internal/classify"
	"github.com/phrazzld/emoscope/internal/domain"
	"github.com/sethvargo/go-retry"
)

// Config holds settings for the model server client.
type Config struct {
	TextEndpoint  string
	ImageEndpoint string
	TopK          int
	Timeout       time.Duration
	MaxRetries    uint64
}

// textRequest is the body sent to the text endpoint.
type textRequest struct {
	Text string `json:"text"`
}

// imageRequest is the body sent to the image endpoint.
type imageRequest struct {
	Image    string `json:"image"`
	MIMEType string `json:"mime_type"`
}

// response is what the model server returns. Labels may be omitted when
// the server uses the standard label order.
type response struct {
	Labels []string  `json:"labels"`
	Logits []float64 `json:"logits"`
}

// Client implements classify.TextClassifier and classify.ImageClassifier.
type Client struct {
	http    *http.Client
	config  Config
	logger  *slog.Logger
	backoff time.Duration
}

var (
	_ classify.TextClassifier  = (*Client)(nil)
	_ classify.ImageClassifier = (*Client)(nil)
)

// NewClient creates a model server client. A nil httpClient uses
// http.DefaultClient.
func NewClient(httpClient *http.Client, config Config, logger *slog.Logger) (*Client, error) {
	if config.TextEndpoint == "" || config.ImageEndpoint == "" {
		return nil, errors.New("inference endpoints cannot be empty")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if config.TopK <= 0 {
		config.TopK = domain.MaxPredictions
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		http:    httpClient,
		config:  config,
		logger:  logger.With("component", "inference_client"),
		backoff: 250 * time.Millisecond,
	}, nil
}

// ClassifyText implements classify.TextClassifier.
func (c *Client) ClassifyText(ctx context.Context, text string) ([]domain.Prediction, error) {
	if domain.IsBlank(text) {
		return nil, classify.ErrEmptyInput
	}

	resp, err := c.call(ctx, c.config.TextEndpoint, textRequest{Text: text})
	if err != nil {
		return nil, err
	}
	return c.rank(resp, classify.TextLabels)
}

// ClassifyImage implements classify.ImageClassifier. The image is sent as
// base64-encoded PNG.
func (c *Client) ClassifyImage(ctx context.Context, img image.Image) ([]domain.Prediction, error) {
	if img == nil {
		return nil, classify.ErrEmptyInput
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encode image: %v", domain.ErrClassificationFailed, err)
	}

	resp, err := c.call(ctx, c.config.ImageEndpoint, imageRequest{
		Image:    base64.StdEncoding.EncodeToString(buf.Bytes()),
		MIMEType: "image/png",
	})
	if err != nil {
		return nil, err
	}
	return c.rank(resp, classify.ImageLabels)
}

func (c *Client) rank(resp *response, defaultLabels []string) ([]domain.Prediction, error) {
	labels := resp.Labels
	if len(labels) == 0 {
		labels = defaultLabels
	}
	return classify.Rank(labels, resp.Logits, c.config.TopK)
}

// statusError is returned for non-2xx model server responses.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body != "" {
		return fmt.Sprintf("model server returned %d: %s", e.code, e.body)
	}
	return fmt.Sprintf("model server returned %d", e.code)
}

func (c *Client) call(ctx context.Context, endpoint string, payload interface{}) (*response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", domain.ErrClassificationFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var out *response
	backoff := retry.WithMaxRetries(c.config.MaxRetries, retry.NewFibonacci(c.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := c.post(ctx, endpoint, body)
		if err != nil {
			if isRetryable(err) {
				c.logger.Debug("retrying model server call", "endpoint", endpoint, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		out = resp
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrClassificationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrClassificationFailed, err)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{code: resp.StatusCode, body: string(bytes.TrimSpace(snippet))}
	}

	var out response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", classify.ErrInvalidResponse, err)
	}
	return &out, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, classify.ErrInvalidResponse) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}
