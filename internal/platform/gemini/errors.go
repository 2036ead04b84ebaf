package gemini

import (
	"errors"
	"fmt"

	"github.com/phrazzld/emoscope/internal/domain"
)

// Error definitions for the gemini package.
var (
	// ErrInvalidConfig is returned when the classifier cannot be configured.
	ErrInvalidConfig = errors.New("invalid gemini configuration")

	// ErrContentBlocked is returned when the model refuses the input on safety grounds.
	ErrContentBlocked = fmt.Errorf("%w: content blocked by safety filters", domain.ErrClassificationFailed)
)
