package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/phrazzld/emoscope/internal/classify"
	"github.com/phrazzld/emoscope/internal/domain"
	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"
)

// Config holds settings for the Gemini classifier.
type Config struct {
	APIKey     string
	ModelName  string
	TopK       int
	Timeout    time.Duration
	MaxRetries uint64
}

// contentGenerator is the part of the genai client the classifier uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// promptData is passed to the prompt templates
type promptData struct {
	Labels string
}

var (
	textPrompt = template.Must(template.New("text").Parse(
		`Rate how strongly the following social media caption expresses each of these emotions: {{.Labels}}. ` +
			`Return a score between 0 and 1 for every label.`))

	imagePrompt = template.Must(template.New("image").Parse(
		`Rate how strongly the facial expression in this image shows each of these emotions: {{.Labels}}. ` +
			`Return a score between 0 and 1 for every label.`))
)

// responseSchema is the structured output requested from the model.
type responseSchema struct {
	Predictions []domain.Prediction `json:"predictions"`
}

// Classifier implements classify.TextClassifier and classify.ImageClassifier
// by prompting a Gemini model with a fixed label set.
type Classifier struct {
	models  contentGenerator
	config  Config
	logger  *slog.Logger
	backoff time.Duration
}

var (
	_ classify.TextClassifier  = (*Classifier)(nil)
	_ classify.ImageClassifier = (*Classifier)(nil)
)

// NewClassifier creates a Gemini-backed classifier.
func NewClassifier(ctx context.Context, config Config, logger *slog.Logger) (*Classifier, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}
	if config.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	return newClassifier(client.Models, config, logger), nil
}

func newClassifier(models contentGenerator, config Config, logger *slog.Logger) *Classifier {
	if config.TopK <= 0 {
		config.TopK = domain.MaxPredictions
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Classifier{
		models:  models,
		config:  config,
		logger:  logger.With("component", "gemini_classifier", "model", config.ModelName),
		backoff: time.Second,
	}
}

// ClassifyText implements classify.TextClassifier.
func (c *Classifier) ClassifyText(ctx context.Context, text string) ([]domain.Prediction, error) {
	if domain.IsBlank(text) {
		return nil, classify.ErrEmptyInput
	}

	prompt, err := renderPrompt(textPrompt, classify.TextLabels)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{{Text: prompt}, {Text: text}}
	return c.classify(ctx, parts, classify.TextLabels)
}

// ClassifyImage implements classify.ImageClassifier.
func (c *Classifier) ClassifyImage(ctx context.Context, img image.Image) ([]domain.Prediction, error) {
	if img == nil {
		return nil, classify.ErrEmptyInput
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encode image: %v", domain.ErrClassificationFailed, err)
	}

	prompt, err := renderPrompt(imagePrompt, classify.ImageLabels)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		{Text: prompt},
		{InlineData: &genai.Blob{Data: buf.Bytes(), MIMEType: "image/png"}},
	}
	return c.classify(ctx, parts, classify.ImageLabels)
}

func renderPrompt(tmpl *template.Template, labels []string) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, promptData{Labels: strings.Join(labels, ", ")}); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return b.String(), nil
}

// generationConfig requests JSON constrained to the label set.
func generationConfig(labels []string) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"predictions": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"label": {Type: genai.TypeString, Enum: labels},
							"score": {Type: genai.TypeNumber},
						},
						Required: []string{"label", "score"},
					},
				},
			},
			Required: []string{"predictions"},
		},
	}
}

func (c *Classifier) classify(ctx context.Context, parts []*genai.Part, labels []string) ([]domain.Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	contents := []*genai.Content{{Role: "user", Parts: parts}}
	cfg := generationConfig(labels)

	var raw string
	attempt := 0
	backoff := retry.WithMaxRetries(c.config.MaxRetries, retry.NewFibonacci(c.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		c.logger.DebugContext(ctx, "calling Gemini API", "attempt", attempt)

		resp, err := c.models.GenerateContent(ctx, c.config.ModelName, contents, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			c.logger.WarnContext(ctx, "Gemini API call failed", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}

		text, err := responseText(resp)
		if err != nil {
			return err
		}
		raw = text
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrClassificationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: gemini: %v", domain.ErrClassificationFailed, err)
	}

	var parsed responseSchema
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", classify.ErrInvalidResponse, err)
	}

	preds := filterLabels(parsed.Predictions, labels)
	if len(preds) == 0 {
		return nil, fmt.Errorf("%w: no known labels in response", classify.ErrInvalidResponse)
	}
	return classify.Normalize(preds, c.config.TopK), nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", classify.ErrInvalidResponse)
	}

	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return "", ErrContentBlocked
	}
	if cand.Content == nil {
		return "", fmt.Errorf("%w: empty candidate", classify.ErrInvalidResponse)
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: empty response text", classify.ErrInvalidResponse)
	}
	return b.String(), nil
}

// filterLabels drops labels outside the allowed set and duplicate labels,
// keeping the first occurrence.
func filterLabels(preds []domain.Prediction, allowed []string) []domain.Prediction {
	known := make(map[string]bool, len(allowed))
	for _, l := range allowed {
		known[l] = true
	}

	seen := make(map[string]bool, len(preds))
	out := make([]domain.Prediction, 0, len(preds))
	for _, p := range preds {
		label := strings.ToLower(strings.TrimSpace(p.Label))
		if !known[label] || seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, domain.Prediction{Label: label, Score: p.Score})
	}
	return out
}
