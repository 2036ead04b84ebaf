package domain

import "strings"

// MaxPredictions is the maximum number of ranked labels kept per classifier.
const MaxPredictions = 7

// Prediction is a single emotion label with its confidence score.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// InlineMedia is a self-contained data URL (data:<mime>;base64,<payload>)
// that can be embedded in a result without a follow-up fetch.
type InlineMedia string

// Result is the assembled output of one analysis task.
type Result struct {
	// Text is the retrieved caption, possibly empty.
	Text string `json:"caption"`

	// Media is set only when a media reference was fetched successfully.
	Media *InlineMedia `json:"media_data_url,omitempty"`

	TextPredictions  []Prediction `json:"text_predictions"`
	ImagePredictions []Prediction `json:"image_predictions"`

	// Warnings lists stage failures that were isolated instead of failing the task.
	Warnings []string `json:"warnings,omitempty"`
}

// NewResult creates a Result with empty (non-nil) prediction lists.
func NewResult(text string) *Result {
	return &Result{
		Text:             text,
		TextPredictions:  []Prediction{},
		ImagePredictions: []Prediction{},
	}
}

// Clone returns a deep copy of the result.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	c := &Result{
		Text:             r.Text,
		TextPredictions:  append([]Prediction{}, r.TextPredictions...),
		ImagePredictions: append([]Prediction{}, r.ImagePredictions...),
	}
	if r.Media != nil {
		m := *r.Media
		c.Media = &m
	}
	if len(r.Warnings) > 0 {
		c.Warnings = append([]string{}, r.Warnings...)
	}
	return c
}

// TextAnalysis is the synchronous text-only analysis output.
type TextAnalysis struct {
	Text            string       `json:"caption"`
	TextPredictions []Prediction `json:"text_predictions"`
}

// IsBlank reports whether s contains only whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
