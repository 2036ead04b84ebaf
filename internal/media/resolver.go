package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/phrazzld/emoscope/internal/domain"
	"github.com/sethvargo/go-retry"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// supportedTypes lists the media types the resolver can decode.
var supportedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Config holds settings for the media resolver.
type Config struct {
	Timeout    time.Duration
	MaxBytes   int64
	MaxRetries uint64
	UserAgent  string

	// MaxPixels caps width*height of a decoded image.
	MaxPixels int64
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:    15 * time.Second,
		MaxBytes:   20 << 20,
		MaxRetries: 2,
		UserAgent:  "Mozilla/5.0 (compatible; emoscope/1.0)",
		MaxPixels:  40_000_000,
	}
}

// Resolved is a fetched and decoded media item.
type Resolved struct {
	Image       image.Image
	Inline      domain.InlineMedia
	Bytes       []byte
	ContentType string
}

// Resolver turns a media reference into a decoded image and an inline
// rendering. It is safe for concurrent use.
type Resolver struct {
	client  *http.Client
	config  Config
	logger  *slog.Logger
	backoff time.Duration
}

// NewResolver creates a Resolver. A nil client uses http.DefaultClient.
func NewResolver(client *http.Client, config Config, logger *slog.Logger) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = defaults.MaxBytes
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.MaxPixels <= 0 {
		config.MaxPixels = defaults.MaxPixels
	}

	return &Resolver{
		client:  client,
		config:  config,
		logger:  logger.With("component", "media_resolver"),
		backoff: 200 * time.Millisecond,
	}
}

// Resolve fetches ref, which may be an http(s) URL or a data URL, and
// decodes it. Every failure is a *FetchError wrapping ErrFetchFailed.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Resolved, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, &FetchError{Ref: ref, Err: errors.New("empty media reference")}
	}

	var data []byte
	if strings.HasPrefix(ref, dataURLPrefix) {
		_, decoded, err := DecodeInline(domain.InlineMedia(ref))
		if err != nil {
			return nil, &FetchError{Ref: "data:", Err: err}
		}
		if int64(len(decoded)) > r.config.MaxBytes {
			return nil, &FetchError{Ref: "data:", Err: ErrTooLarge}
		}
		data = decoded
	} else {
		fetched, err := r.download(ctx, ref)
		if err != nil {
			return nil, err
		}
		data = fetched
	}

	return r.decode(ref, data)
}

func (r *Resolver) download(ctx context.Context, ref string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	var data []byte
	backoff := retry.WithMaxRetries(r.config.MaxRetries, retry.NewFibonacci(r.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		body, err := r.get(ctx, ref)
		if err != nil {
			if isRetryable(err) {
				r.logger.Debug("retrying media fetch", "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		data = body
		return nil
	})
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &FetchError{Ref: ref, Err: err}
	}
	return data, nil
}

func (r *Resolver) get(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, &FetchError{Ref: ref, Err: err}
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return nil, &FetchError{Ref: ref, Err: fmt.Errorf("unsupported scheme %q", req.URL.Scheme)}
	}
	req.Header.Set("User-Agent", r.config.UserAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{Ref: ref, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	if resp.ContentLength > r.config.MaxBytes {
		return nil, &FetchError{Ref: ref, Err: ErrTooLarge}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.config.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > r.config.MaxBytes {
		return nil, &FetchError{Ref: ref, Err: ErrTooLarge}
	}
	return data, nil
}

func (r *Resolver) decode(ref string, data []byte) (*Resolved, error) {
	if strings.HasPrefix(ref, dataURLPrefix) {
		ref = "data:"
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), supportedTypes...) {
		return nil, &FetchError{Ref: ref, Err: fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())}
	}

	// Check dimensions from the header before allocating the pixel buffer.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &FetchError{Ref: ref, Err: fmt.Errorf("decode %s: %w", mtype.String(), err)}
	}
	if int64(cfg.Width)*int64(cfg.Height) > r.config.MaxPixels {
		return nil, &FetchError{Ref: ref, Err: fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &FetchError{Ref: ref, Err: fmt.Errorf("decode %s: %w", mtype.String(), err)}
	}

	contentType := mtype.String()
	return &Resolved{
		Image:       img,
		Inline:      EncodeInline(contentType, data),
		Bytes:       data,
		ContentType: contentType,
	}, nil
}

// isRetryable reports whether a download error is worth retrying.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode >= 500 || fe.StatusCode == http.StatusTooManyRequests
	}
	return true
}
