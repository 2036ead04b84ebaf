package media

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/phrazzld/emoscope/internal/domain"
)

const dataURLPrefix = "data:"

// EncodeInline renders media bytes as a self-contained data URL,
// data:<mime>;base64,<payload>.
func EncodeInline(contentType string, data []byte) domain.InlineMedia {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return domain.InlineMedia(dataURLPrefix + contentType + ";base64," + base64.StdEncoding.EncodeToString(data))
}

// DecodeInline splits a data URL produced by EncodeInline back into its
// content type and bytes.
func DecodeInline(inline domain.InlineMedia) (string, []byte, error) {
	s := string(inline)
	if !strings.HasPrefix(s, dataURLPrefix) {
		return "", nil, fmt.Errorf("%w: not a data URL", ErrInvalidInline)
	}

	header, payload, ok := strings.Cut(s[len(dataURLPrefix):], ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload separator", ErrInvalidInline)
	}

	contentType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: payload is not base64", ErrInvalidInline)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidInline, err)
	}
	return contentType, data, nil
}
