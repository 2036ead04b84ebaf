package classify

import (
	"fmt"
	"math"
	"sort"

	"github.com/phrazzld/emoscope/internal/domain"
)

// Softmax converts raw logits into probabilities that sum to one.
// The maximum logit is subtracted first so large values do not overflow.
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}

	maxLogit := math.Inf(-1)
	for _, l := range logits {
		if l > maxLogit {
			maxLogit = l
		}
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		probs[i] = math.Exp(l - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// Rank applies softmax to logits, pairs each probability with its label and
// returns the k most likely labels in descending order.
func Rank(labels []string, logits []float64, k int) ([]domain.Prediction, error) {
	if len(labels) != len(logits) {
		return nil, fmt.Errorf("%w: %d labels for %d logits", ErrInvalidResponse, len(labels), len(logits))
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: no logits", ErrInvalidResponse)
	}

	probs := Softmax(logits)
	preds := make([]domain.Prediction, len(labels))
	for i, label := range labels {
		preds[i] = domain.Prediction{Label: label, Score: probs[i]}
	}
	return TopK(preds, k), nil
}

// Normalize rescales model-reported scores so they sum to one, then ranks them.
// Negative scores are clamped to zero. If every score is zero the input order
// is kept and scores are left untouched.
func Normalize(preds []domain.Prediction, k int) []domain.Prediction {
	out := make([]domain.Prediction, len(preds))
	var sum float64
	for i, p := range preds {
		score := p.Score
		if score < 0 || math.IsNaN(score) {
			score = 0
		}
		out[i] = domain.Prediction{Label: p.Label, Score: score}
		sum += score
	}
	if sum > 0 {
		for i := range out {
			out[i].Score /= sum
		}
	}
	return TopK(out, k)
}

// TopK returns a copy of preds sorted by descending score and truncated to k
// entries (k is capped at domain.MaxPredictions). Ties keep their input order.
func TopK(preds []domain.Prediction, k int) []domain.Prediction {
	if k <= 0 || k > domain.MaxPredictions {
		k = domain.MaxPredictions
	}

	sorted := append([]domain.Prediction{}, preds...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}
