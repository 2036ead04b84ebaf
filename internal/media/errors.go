package media

import (
	"errors"
	"fmt"

	"github.com/phrazzld/emoscope/internal/domain"
)

var (
	// ErrFetchFailed is wrapped by every Resolve failure.
	ErrFetchFailed = fmt.Errorf("%w: media could not be resolved", domain.ErrMediaFetchFailed)

	// ErrTooLarge is returned when media exceeds the configured byte limit.
	ErrTooLarge = errors.New("media exceeds size limit")

	// ErrTooManyPixels is returned when image dimensions exceed the configured pixel limit.
	ErrTooManyPixels = errors.New("image dimensions exceed pixel limit")

	// ErrUnsupportedType is returned for media that is not a decodable image.
	ErrUnsupportedType = errors.New("unsupported media type")

	// ErrInvalidInline is returned by DecodeInline for malformed data URLs.
	ErrInvalidInline = errors.New("invalid inline media")
)

// FetchError describes why a media reference could not be resolved.
type FetchError struct {
	// Ref is the media reference that was requested.
	Ref string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("media fetch %s: status %d: %v", e.Ref, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("media fetch %s: %v", e.Ref, e.Err)
}

// Unwrap exposes both the cause and ErrFetchFailed to errors.Is.
func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchFailed, e.Err}
}
