// Package service contains the application use cases of the emotion
// analysis API. It sits between the HTTP layer and the task machinery:
// it validates submissions, builds analysis tasks, hands them to the task
// runner and reads their state back from the registry.
//
// Service methods return domain sentinel errors (ErrInvalidInput,
// ErrNotFound) for expected conditions and wrap everything else in
// *AnalysisServiceError. The API layer maps both to HTTP status codes.
package service
