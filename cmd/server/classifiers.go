package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/emoscope/internal/classify"
	"github.com/phrazzld/emoscope/internal/config"
	"github.com/phrazzld/emoscope/internal/platform/gemini"
	"github.com/phrazzld/emoscope/internal/platform/inference"
)

// classifiers bundles the text and image classifier of one backend.
type classifiers struct {
	text  classify.TextClassifier
	image classify.ImageClassifier
}

// setupClassifiers builds the classifiers selected by cfg.Backend.
func setupClassifiers(ctx context.Context, cfg config.ClassifierConfig, logger *slog.Logger) (*classifiers, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch cfg.Backend {
	case "http":
		c, err := inference.NewClient(&http.Client{}, inference.Config{
			TextEndpoint:  cfg.TextEndpoint,
			ImageEndpoint: cfg.ImageEndpoint,
			TopK:          cfg.TopK,
			Timeout:       timeout,
			MaxRetries:    cfg.MaxRetries,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create model server client: %w", err)
		}
		return &classifiers{text: c, image: c}, nil

	case "gemini":
		c, err := gemini.NewClassifier(ctx, gemini.Config{
			APIKey:     cfg.GeminiAPIKey,
			ModelName:  cfg.ModelName,
			TopK:       cfg.TopK,
			Timeout:    timeout,
			MaxRetries: cfg.MaxRetries,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini classifier: %w", err)
		}
		return &classifiers{text: c, image: c}, nil

	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Backend)
	}
}
