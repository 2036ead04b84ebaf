package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEnv sets up environment variables for testing
func setupEnv(t *testing.T, envVars map[string]string) func() {
	// Save current environment values
	originalValues := make(map[string]string)
	for name := range envVars {
		originalValues[name] = os.Getenv(name)
	}

	// Set new environment variables
	for name, value := range envVars {
		err := os.Setenv(name, value)
		require.NoError(t, err, "Failed to set environment variable %s", name)
	}

	// Return cleanup function
	return func() {
		for name, value := range originalValues {
			if value == "" {
				os.Unsetenv(name)
			} else {
				os.Setenv(name, value)
			}
		}
	}
}

// TestLoadDefaults verifies that Load works with no environment at all and
// produces the documented defaults.
func TestLoadDefaults(t *testing.T) {
	cleanup := setupEnv(t, map[string]string{
		"EMOSCOPE_SERVER_PORT":      "",
		"EMOSCOPE_SERVER_LOG_LEVEL": "",
		"EMOSCOPE_REGISTRY_BACKEND": "",
		ConfigFileEnv:               "",
	})
	defer cleanup()

	cfg, err := Load()

	require.NoError(t, err, "Load() should not return an error with default values")
	require.NotNil(t, cfg)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "memory", cfg.Registry.Backend)
	assert.Equal(t, "isolate", cfg.Task.TextFailurePolicy)
	assert.Equal(t, 15, cfg.Media.FetchTimeoutSeconds)
	assert.Equal(t, int64(40_000_000), cfg.Media.MaxPixels)
	assert.Equal(t, 7, cfg.Classifier.TopK)
	assert.Equal(t, "http", cfg.Classifier.Backend)
}

// TestLoadFromEnv verifies that the Load function correctly reads values from environment variables.
func TestLoadFromEnv(t *testing.T) {
	cleanup := setupEnv(t, map[string]string{
		"EMOSCOPE_SERVER_PORT":               "9090",
		"EMOSCOPE_SERVER_LOG_LEVEL":          "debug",
		"EMOSCOPE_SERVER_ALLOWED_ORIGINS":    "http://a.example,http://b.example",
		"EMOSCOPE_TASK_WORKER_COUNT":         "8",
		"EMOSCOPE_TASK_TEXT_FAILURE_POLICY":  "fail",
		"EMOSCOPE_REGISTRY_BACKEND":          "redis",
		"EMOSCOPE_REGISTRY_REDIS_ADDR":       "localhost:6379",
		"EMOSCOPE_CLASSIFIER_BACKEND":        "gemini",
		"EMOSCOPE_CLASSIFIER_GEMINI_API_KEY": "test-api-key",
	})
	defer cleanup()

	cfg, err := Load()

	require.NoError(t, err, "Load() should not return an error with valid environment variables")
	require.NotNil(t, cfg)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 8, cfg.Task.WorkerCount)
	assert.Equal(t, "fail", cfg.Task.TextFailurePolicy)
	assert.Equal(t, "redis", cfg.Registry.Backend)
	assert.Equal(t, "localhost:6379", cfg.Registry.RedisAddr)
	assert.Equal(t, "gemini", cfg.Classifier.Backend)
	assert.Equal(t, "test-api-key", cfg.Classifier.GeminiAPIKey)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "emoscope.yaml")
	content := []byte(`
server:
  port: 7070
task:
  queue_size: 5
media:
  fetch_timeout_seconds: 3
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cleanup := setupEnv(t, map[string]string{
		ConfigFileEnv:          path,
		"EMOSCOPE_SERVER_PORT": "7171",
	})
	defer cleanup()

	cfg, err := Load()
	require.NoError(t, err)

	// Environment wins over the file, the file wins over defaults.
	assert.Equal(t, 7171, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Task.QueueSize)
	assert.Equal(t, 3, cfg.Media.FetchTimeoutSeconds)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	cleanup := setupEnv(t, map[string]string{
		ConfigFileEnv: filepath.Join(t.TempDir(), "missing.yaml"),
	})
	defer cleanup()

	cfg, err := Load()
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

// TestLoadValidationErrors verifies that the Load function correctly validates the configuration.
func TestLoadValidationErrors(t *testing.T) {
	testCases := []struct {
		name    string
		envVars map[string]string
	}{
		{
			name:    "Invalid port number",
			envVars: map[string]string{"EMOSCOPE_SERVER_PORT": "999999"},
		},
		{
			name:    "Invalid log level",
			envVars: map[string]string{"EMOSCOPE_SERVER_LOG_LEVEL": "invalid-level"},
		},
		{
			name:    "Unknown registry backend",
			envVars: map[string]string{"EMOSCOPE_REGISTRY_BACKEND": "etcd"},
		},
		{
			name:    "Redis backend without address",
			envVars: map[string]string{"EMOSCOPE_REGISTRY_BACKEND": "redis"},
		},
		{
			name:    "Postgres backend without database URL",
			envVars: map[string]string{"EMOSCOPE_REGISTRY_BACKEND": "postgres"},
		},
		{
			name:    "Gemini backend without API key",
			envVars: map[string]string{"EMOSCOPE_CLASSIFIER_BACKEND": "gemini"},
		},
		{
			name:    "Top k above model limit",
			envVars: map[string]string{"EMOSCOPE_CLASSIFIER_TOP_K": "8"},
		},
		{
			name:    "Unknown text failure policy",
			envVars: map[string]string{"EMOSCOPE_TASK_TEXT_FAILURE_POLICY": "ignore"},
		},
		{
			name:    "Zero workers",
			envVars: map[string]string{"EMOSCOPE_TASK_WORKER_COUNT": "0"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cleanup := setupEnv(t, tc.envVars)
			defer cleanup()

			cfg, err := Load()

			require.Error(t, err, "Load() should return an error with invalid configuration")
			assert.Contains(t, err.Error(), "validation failed")
			assert.Nil(t, cfg, "Config should be nil when an error occurs")
		})
	}
}
