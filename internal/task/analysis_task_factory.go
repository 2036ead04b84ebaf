package task

// AnalysisTaskFactory builds AnalysisTasks that share one set of
// dependencies.
type AnalysisTaskFactory struct {
	deps AnalysisDependencies
}

// NewAnalysisTaskFactory validates deps and returns a factory.
func NewAnalysisTaskFactory(deps AnalysisDependencies) (*AnalysisTaskFactory, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &AnalysisTaskFactory{deps: deps}, nil
}

// CreateTask creates a task that analyses url.
func (f *AnalysisTaskFactory) CreateTask(url string) (Task, error) {
	t, err := NewAnalysisTask(url, f.deps)
	if err != nil {
		return nil, err
	}
	return t, nil
}
