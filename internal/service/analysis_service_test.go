package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/emoscope/internal/classify"
	"github.com/phrazzld/emoscope/internal/domain"
	"github.com/phrazzld/emoscope/internal/platform/logger"
	"github.com/phrazzld/emoscope/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTaskRunner is a mock implementation of the TaskRunner
type MockTaskRunner struct {
	mock.Mock
}

func (m *MockTaskRunner) Submit(ctx context.Context, t task.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

// MockAnalysisTaskFactory is a mock factory for creating analysis tasks
type MockAnalysisTaskFactory struct {
	mock.Mock
}

func (m *MockAnalysisTaskFactory) CreateTask(url string) (task.Task, error) {
	args := m.Called(url)
	t, _ := args.Get(0).(task.Task)
	return t, args.Error(1)
}

// MockRegistry is a mock implementation of task.Registry
type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) Create(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRegistry) SetTerminal(ctx context.Context, id uuid.UUID, outcome task.Outcome) error {
	return m.Called(ctx, id, outcome).Error(0)
}

func (m *MockRegistry) Get(ctx context.Context, id uuid.UUID) (*task.Record, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*task.Record)
	return rec, args.Error(1)
}

func (m *MockRegistry) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

// factoryFunc adapts a function to AnalysisTaskFactory
type factoryFunc func(url string) (task.Task, error)

func (f factoryFunc) CreateTask(url string) (task.Task, error) {
	return f(url)
}

type serviceFixture struct {
	runner     *MockTaskRunner
	factory    *MockAnalysisTaskFactory
	registry   *MockRegistry
	classifier classify.TextClassifierFunc
	svc        AnalysisService
}

func newServiceFixture(t *testing.T, classifier classify.TextClassifierFunc) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		runner:     &MockTaskRunner{},
		factory:    &MockAnalysisTaskFactory{},
		registry:   &MockRegistry{},
		classifier: classifier,
	}
	if f.classifier == nil {
		f.classifier = func(ctx context.Context, text string) ([]domain.Prediction, error) {
			return []domain.Prediction{{Label: "joy", Score: 0.9}}, nil
		}
	}

	svc, err := NewAnalysisService(f.runner, f.factory, f.registry, f.classifier, logger.Discard())
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestNewAnalysisService_Validation(t *testing.T) {
	t.Parallel()

	runner := &MockTaskRunner{}
	factory := &MockAnalysisTaskFactory{}
	registry := &MockRegistry{}
	classifier := classify.TextClassifierFunc(func(ctx context.Context, text string) ([]domain.Prediction, error) {
		return nil, nil
	})

	tests := []struct {
		name    string
		build   func() (AnalysisService, error)
		wantErr error
	}{
		{"nil runner", func() (AnalysisService, error) {
			return NewAnalysisService(nil, factory, registry, classifier, logger.Discard())
		}, ErrNilTaskRunner},
		{"nil factory", func() (AnalysisService, error) {
			return NewAnalysisService(runner, nil, registry, classifier, logger.Discard())
		}, ErrNilTaskFactory},
		{"nil registry", func() (AnalysisService, error) {
			return NewAnalysisService(runner, factory, nil, classifier, logger.Discard())
		}, ErrNilRegistry},
		{"nil classifier", func() (AnalysisService, error) {
			return NewAnalysisService(runner, factory, registry, nil, logger.Discard())
		}, ErrNilTextClassifier},
		{"nil logger", func() (AnalysisService, error) {
			return NewAnalysisService(runner, factory, registry, classifier, nil)
		}, ErrNilLogger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := tt.build()
			assert.Nil(t, svc)
			assert.ErrorIs(t, err, tt.wantErr)

			var svcErr *AnalysisServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.Equal(t, "create_service", svcErr.Operation)
		})
	}
}

func TestSubmitURL_Success(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, nil)
	mt := task.NewMockTask()

	f.factory.On("CreateTask", "https://www.instagram.com/p/ABC123/").Return(mt, nil)
	f.runner.On("Submit", mock.Anything, mt).Return(nil)

	id, err := f.svc.SubmitURL(context.Background(), "  https://instagram.com/reel/ABC123/?igsh=xyz ")
	require.NoError(t, err)
	assert.Equal(t, mt.ID(), id)

	f.factory.AssertExpectations(t)
	f.runner.AssertExpectations(t)
}

func TestSubmitURL_InvalidInput(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "   ", "\n\t", "not a url", "ftp://example.com/x", "https://www.instagram.com/explore/"} {
		t.Run(raw, func(t *testing.T) {
			f := newServiceFixture(t, nil)

			id, err := f.svc.SubmitURL(context.Background(), raw)
			assert.Equal(t, uuid.Nil, id)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "url", verr.Field)

			f.factory.AssertNotCalled(t, "CreateTask", mock.Anything)
			f.runner.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
		})
	}
}

func TestSubmitURL_RunnerErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		submitErr error
		wantIs    error
		wrapped   bool
	}{
		{"queue full", fmt.Errorf("%w: capacity reached", task.ErrQueueFull), task.ErrQueueFull, false},
		{"runner stopped", task.ErrRunnerStopped, task.ErrRunnerStopped, false},
		{"registry failure", errors.New("registry unavailable"), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t, nil)
			mt := task.NewMockTask()
			f.factory.On("CreateTask", mock.Anything).Return(mt, nil)
			f.runner.On("Submit", mock.Anything, mt).Return(tt.submitErr)

			id, err := f.svc.SubmitURL(context.Background(), "https://example.com/post/1")
			require.Error(t, err)
			assert.Equal(t, uuid.Nil, id)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}

			var svcErr *AnalysisServiceError
			assert.Equal(t, tt.wrapped, errors.As(err, &svcErr))
			if tt.wrapped {
				assert.Equal(t, "submit_url", svcErr.Operation)
			}
		})
	}
}

func TestSubmitURL_FactoryError(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, nil)
	f.factory.On("CreateTask", mock.Anything).Return(nil, task.ErrEmptyURL)

	_, err := f.svc.SubmitURL(context.Background(), "https://example.com/post/1")
	assert.ErrorIs(t, err, task.ErrEmptyURL)
	f.runner.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestPoll(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, nil)
	known := uuid.New()
	unknown := uuid.New()
	rec := &task.Record{ID: known, Status: task.StatusPending, CreatedAt: time.Now()}

	f.registry.On("Get", mock.Anything, known).Return(rec, nil)
	f.registry.On("Get", mock.Anything, unknown).Return(nil, task.ErrTaskNotFound)

	got, err := f.svc.Poll(context.Background(), known)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, got.Status)

	_, err = f.svc.Poll(context.Background(), unknown)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPredictText(t *testing.T) {
	t.Parallel()

	var calls int
	f := newServiceFixture(t, func(ctx context.Context, text string) ([]domain.Prediction, error) {
		calls++
		preds := make([]domain.Prediction, 0, 10)
		for i := 0; i < 10; i++ {
			preds = append(preds, domain.Prediction{Label: fmt.Sprintf("l%d", i), Score: float64(i)})
		}
		return preds, nil
	})

	out, err := f.svc.PredictText(context.Background(), "I love this")
	require.NoError(t, err)
	assert.Equal(t, "I love this", out.Text)
	require.Len(t, out.TextPredictions, domain.MaxPredictions)
	assert.Equal(t, "l9", out.TextPredictions[0].Label)

	_, err = f.svc.PredictText(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 1, calls)
}

func TestPredictText_ClassifierFailure(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, func(ctx context.Context, text string) ([]domain.Prediction, error) {
		return nil, errors.New("model offline")
	})

	_, err := f.svc.PredictText(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrClassificationFailed)

	var svcErr *AnalysisServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "predict_text", svcErr.Operation)
}

// TestSubmitThenPoll_WithRunner exercises the service against a real runner
// and in-memory registry.
func TestSubmitThenPoll_WithRunner(t *testing.T) {
	t.Parallel()

	registry := task.NewMemoryRegistry(task.DefaultMemoryRegistryConfig(), logger.Discard())
	runner := task.NewTaskRunner(registry, task.TaskRunnerConfig{
		WorkerCount: 2,
		QueueSize:   16,
		TaskTimeout: time.Second,
	}, logger.Discard())

	release := make(chan struct{})
	var once sync.Once
	factory := factoryFunc(func(url string) (task.Task, error) {
		mt := task.NewMockTask()
		mt.ExecuteFn = func(ctx context.Context) (*domain.Result, error) {
			<-release
			return domain.NewResult("caption"), nil
		}
		return mt, nil
	})

	svc, err := NewAnalysisService(runner, factory, registry,
		classify.TextClassifierFunc(func(ctx context.Context, text string) ([]domain.Prediction, error) {
			return nil, nil
		}), logger.Discard())
	require.NoError(t, err)
	require.NoError(t, runner.Start())
	defer func() {
		once.Do(func() { close(release) })
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = runner.Stop(ctx)
	}()

	id, err := svc.SubmitURL(context.Background(), "https://example.com/post/1")
	require.NoError(t, err)

	rec, err := svc.Poll(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, rec.Status)

	once.Do(func() { close(release) })

	require.Eventually(t, func() bool {
		rec, err := svc.Poll(context.Background(), id)
		return err == nil && rec.Status == task.StatusComplete
	}, 2*time.Second, 5*time.Millisecond)

	first, err := svc.Poll(context.Background(), id)
	require.NoError(t, err)
	second, err := svc.Poll(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "caption", first.Result.Text)
}
