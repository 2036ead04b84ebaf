package retrieval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phrazzld/emoscope/internal/redact"
	"github.com/sethvargo/go-retry"
	"golang.org/x/net/html"
)

// Config holds settings for the OpenGraph retriever.
type Config struct {
	// Timeout bounds one Fetch call, retries included.
	Timeout time.Duration

	// UserAgent is sent with every page request.
	UserAgent string

	// MaxRetries is the number of retries for transient failures.
	MaxRetries uint64

	// MaxBodyBytes caps how much of a page is read.
	MaxBodyBytes int64
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      20 * time.Second,
		UserAgent:    "Mozilla/5.0 (compatible; emoscope/1.0)",
		MaxRetries:   2,
		MaxBodyBytes: 4 << 20,
	}
}

// OpenGraphRetriever fetches a post page and extracts its caption and media
// from OpenGraph and standard meta tags.
type OpenGraphRetriever struct {
	client  *http.Client
	config  Config
	logger  *slog.Logger
	backoff time.Duration
}

// NewOpenGraphRetriever creates a retriever. A nil client uses http.DefaultClient.
func NewOpenGraphRetriever(client *http.Client, config Config, logger *slog.Logger) *OpenGraphRetriever {
	if client == nil {
		client = http.DefaultClient
	}
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}

	return &OpenGraphRetriever{
		client:  client,
		config:  config,
		logger:  logger.With("component", "opengraph_retriever"),
		backoff: 250 * time.Millisecond,
	}
}

// Fetch implements Retriever.
func (r *OpenGraphRetriever) Fetch(ctx context.Context, rawURL string) (*Content, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	log := r.logger.With("url", redact.URL(target.String()))

	var page []byte
	backoff := retry.WithMaxRetries(r.config.MaxRetries, retry.NewFibonacci(r.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		body, err := r.get(ctx, target)
		if err != nil {
			if isRetryable(err) {
				log.Debug("retrying page fetch", "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		page = body
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrFetchFailed, target.String(), err)
	}

	meta, err := parseMeta(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrFetchFailed, target.String(), err)
	}

	content := &Content{
		Text:      extractCaption(meta),
		MediaURLs: extractMedia(meta, target),
	}
	if content.Text == "" {
		content.Text = NoCaptionSentinel
	}

	log.Debug("retrieved post content",
		"text_length", len(content.Text),
		"media_count", len(content.MediaURLs))

	return content, nil
}

// statusError is returned for non-2xx page responses.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func (r *OpenGraphRetriever) get(ctx context.Context, target *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode}
	}

	return io.ReadAll(io.LimitReader(resp.Body, r.config.MaxBodyBytes))
}

// isRetryable reports whether a page fetch error is worth retrying.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}

// parseMeta collects <meta> tags keyed by their property or name attribute.
// Values are kept in document order; keys are lower-cased.
func parseMeta(r io.Reader) (map[string][]string, error) {
	meta := make(map[string][]string)
	z := html.NewTokenizer(r)

	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return meta, nil
			}
			return nil, z.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "meta" || !hasAttr {
				continue
			}

			var key, content string
			for {
				attr, val, more := z.TagAttr()
				switch strings.ToLower(string(attr)) {
				case "property", "name":
					if key == "" {
						key = strings.ToLower(string(val))
					}
				case "content":
					content = string(val)
				}
				if !more {
					break
				}
			}
			if key != "" && content != "" {
				meta[key] = append(meta[key], content)
			}
		}
	}
}

func firstMeta(meta map[string][]string, keys ...string) string {
	for _, key := range keys {
		for _, v := range meta[key] {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// extractCaption picks the post text. Instagram descriptions look like
// `12 likes, 3 comments - user on June 1, 2024: "caption"`; only the quoted
// caption is kept when that shape is present.
func extractCaption(meta map[string][]string) string {
	text := firstMeta(meta, "og:description", "description", "twitter:description", "og:title")
	if text == "" {
		return ""
	}

	if idx := strings.Index(text, `: "`); idx >= 0 {
		quoted := strings.TrimSuffix(strings.TrimSpace(text[idx+3:]), ".")
		if strings.HasSuffix(quoted, `"`) {
			if caption := strings.TrimSpace(strings.TrimSuffix(quoted, `"`)); caption != "" {
				return caption
			}
		}
	}
	return text
}

// extractMedia returns absolute, de-duplicated media references in preference order.
func extractMedia(meta map[string][]string, base *url.URL) []string {
	seen := make(map[string]bool)
	var refs []string

	for _, key := range []string{"og:image:secure_url", "og:image", "og:image:url", "twitter:image"} {
		for _, v := range meta[key] {
			ref, err := base.Parse(strings.TrimSpace(v))
			if err != nil || (ref.Scheme != "http" && ref.Scheme != "https") {
				continue
			}
			s := ref.String()
			if !seen[s] {
				seen[s] = true
				refs = append(refs, s)
			}
		}
	}
	return refs
}
