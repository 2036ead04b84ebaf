package task

import (
	"errors"
	"fmt"

	"github.com/phrazzld/emoscope/internal/domain"
)

// Registry and runner errors
var (
	ErrTaskNotFound        = fmt.Errorf("%w: task not found", domain.ErrNotFound)
	ErrTaskExists          = errors.New("task already exists")
	ErrTaskAlreadyTerminal = errors.New("task already finished")
	ErrRunnerStopped       = errors.New("task runner is stopped")
)

// Dependency errors returned by NewAnalysisTask
var (
	ErrNilRetriever       = errors.New("retriever cannot be nil")
	ErrNilResolver        = errors.New("media resolver cannot be nil")
	ErrNilTextClassifier  = errors.New("text classifier cannot be nil")
	ErrNilImageClassifier = errors.New("image classifier cannot be nil")
	ErrNilLogger          = errors.New("logger cannot be nil")
	ErrEmptyURL           = errors.New("post URL cannot be empty")
)
