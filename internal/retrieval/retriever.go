package retrieval

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/phrazzld/emoscope/internal/domain"
)

// NoCaptionSentinel is the text reported for posts that have no caption.
// The pipeline treats it as "no text" and skips text classification.
const NoCaptionSentinel = "No caption found."

// Errors returned by retrievers. Both wrap domain.ErrRetrievalFailed.
var (
	ErrInvalidURL  = fmt.Errorf("%w: invalid post URL", domain.ErrRetrievalFailed)
	ErrFetchFailed = fmt.Errorf("%w: failed to fetch post", domain.ErrRetrievalFailed)
)

// Content is what a retriever extracts from a post.
type Content struct {
	// Text is the caption or description of the post.
	Text string

	// MediaURLs lists media references in page order. It may be empty.
	MediaURLs []string
}

// FirstMedia returns the first media reference, or "" when there is none.
func (c *Content) FirstMedia() string {
	if c == nil {
		return ""
	}
	for _, ref := range c.MediaURLs {
		if strings.TrimSpace(ref) != "" {
			return ref
		}
	}
	return ""
}

// HasText reports whether the content carries real caption text.
func (c *Content) HasText() bool {
	if c == nil {
		return false
	}
	return !domain.IsBlank(c.Text) && c.Text != NoCaptionSentinel
}

// Retriever extracts text and media references from a post URL.
// Implementations must be safe for concurrent use.
type Retriever interface {
	Fetch(ctx context.Context, rawURL string) (*Content, error)
}

var shortcodeRegex = regexp.MustCompile(`/(p|reel|reels|tv)/([^/?#]+)`)

// Shortcode extracts the Instagram post shortcode from a URL path.
func Shortcode(u *url.URL) (string, bool) {
	match := shortcodeRegex.FindStringSubmatch(u.Path)
	if match == nil {
		return "", false
	}
	return match[2], true
}

// IsInstagramHost reports whether host belongs to Instagram.
func IsInstagramHost(host string) bool {
	host = strings.ToLower(host)
	return host == "instagram.com" || strings.HasSuffix(host, ".instagram.com") ||
		host == "instagr.am"
}

// NormalizeURL validates a post URL and returns its canonical form.
// Instagram post and reel links are rewritten to https://www.instagram.com/p/<shortcode>/;
// Instagram links without a shortcode are rejected.
func NormalizeURL(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	if IsInstagramHost(u.Hostname()) {
		code, ok := Shortcode(u)
		if !ok {
			return nil, fmt.Errorf("%w: no post shortcode in Instagram URL", ErrInvalidURL)
		}
		return &url.URL{Scheme: "https", Host: "www.instagram.com", Path: "/p/" + code + "/"}, nil
	}

	return u, nil
}
