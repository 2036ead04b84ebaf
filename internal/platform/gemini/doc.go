// Package gemini implements the text and image emotion classifiers on top
// of Google's Gemini API.
//
// The model is prompted with the fixed label set of each classifier and
// asked for structured JSON output constrained to those labels. Scores the
// model reports are renormalised and ranked so the result has the same
// shape as the local model server's output.
//
// Transient API failures are retried with Fibonacci backoff. Responses
// blocked by safety filters and malformed responses are not retried.
package gemini
