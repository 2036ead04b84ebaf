// Package classify defines the text and image classifier boundaries used by
// the analysis pipeline, together with the ranking helpers (softmax, top-k)
// that turn raw model output into ordered emotion predictions.
package classify
