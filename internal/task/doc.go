// Package task manages background analysis jobs: the task registry that
// holds each job's state, the bounded queue and worker pool that execute
// jobs without blocking request handling, and the analysis pipeline itself.
//
// A task is created pending in a Registry before it is queued and moves to
// complete or failed exactly once. The runner records every outcome,
// including panics and shutdown cancellation, so no task stays pending
// after the runner stops.
package task
