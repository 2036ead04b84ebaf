// Package events publishes task lifecycle events to in-process handlers.
//
// The task runner reports every recorded outcome through a completion
// callback. InMemoryEventEmitter turns those outcomes into TaskEvents and
// fans them out to registered handlers, so components such as the outcome
// logger observe task results without the runner knowing about them.
package events
