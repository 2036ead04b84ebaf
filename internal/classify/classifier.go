package classify

import (
	"context"
	"fmt"
	"image"

	"github.com/phrazzld/emoscope/internal/domain"
)

// TextClassifier scores a piece of text against a fixed set of emotion labels.
// Implementations must be safe for concurrent use.
type TextClassifier interface {
	// ClassifyText returns at most domain.MaxPredictions predictions sorted by
	// descending score.
	ClassifyText(ctx context.Context, text string) ([]domain.Prediction, error)
}

// ImageClassifier scores a decoded image against a fixed set of emotion labels.
// Implementations must be safe for concurrent use.
type ImageClassifier interface {
	// ClassifyImage returns at most domain.MaxPredictions predictions sorted by
	// descending score.
	ClassifyImage(ctx context.Context, img image.Image) ([]domain.Prediction, error)
}

// Errors returned by classifier implementations. Both wrap
// domain.ErrClassificationFailed.
var (
	ErrEmptyInput      = fmt.Errorf("%w: empty classifier input", domain.ErrClassificationFailed)
	ErrInvalidResponse = fmt.Errorf("%w: invalid classifier response", domain.ErrClassificationFailed)
)

// TextClassifierFunc adapts a function to the TextClassifier interface.
type TextClassifierFunc func(ctx context.Context, text string) ([]domain.Prediction, error)

// ClassifyText calls f(ctx, text).
func (f TextClassifierFunc) ClassifyText(ctx context.Context, text string) ([]domain.Prediction, error) {
	return f(ctx, text)
}

// ImageClassifierFunc adapts a function to the ImageClassifier interface.
type ImageClassifierFunc func(ctx context.Context, img image.Image) ([]domain.Prediction, error)

// ClassifyImage calls f(ctx, img).
func (f ImageClassifierFunc) ClassifyImage(ctx context.Context, img image.Image) ([]domain.Prediction, error) {
	return f(ctx, img)
}
