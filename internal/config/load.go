package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "EMOSCOPE"

// ConfigFileEnv names the environment variable that points at an explicit config file.
const ConfigFileEnv = EnvPrefix + "_CONFIG_FILE"

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// An explicit file must exist; the implicit ./config.yaml is optional.
	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// setDefaults registers a default for every key. Viper only maps environment
// variables onto keys it already knows about, so keys without a meaningful
// default are registered with their zero value.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("task.worker_count", 4)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.timeout_seconds", 120)
	v.SetDefault("task.text_failure_policy", "isolate")

	v.SetDefault("registry.backend", "memory")
	v.SetDefault("registry.result_ttl_minutes", 60)
	v.SetDefault("registry.max_entries", 10000)
	v.SetDefault("registry.eviction_interval_seconds", 60)
	v.SetDefault("registry.redis_addr", "")
	v.SetDefault("registry.redis_password", "")
	v.SetDefault("registry.redis_db", 0)
	v.SetDefault("registry.redis_key_prefix", "emoscope:task:")
	v.SetDefault("registry.database_url", "")

	v.SetDefault("retriever.timeout_seconds", 20)
	v.SetDefault("retriever.user_agent", "Mozilla/5.0 (compatible; emoscope/1.0)")
	v.SetDefault("retriever.max_retries", 2)

	v.SetDefault("media.fetch_timeout_seconds", 15)
	v.SetDefault("media.max_bytes", 20<<20)
	v.SetDefault("media.max_pixels", 40_000_000)
	v.SetDefault("media.max_retries", 2)

	v.SetDefault("classifier.backend", "http")
	v.SetDefault("classifier.top_k", 7)
	v.SetDefault("classifier.timeout_seconds", 30)
	v.SetDefault("classifier.max_retries", 2)
	v.SetDefault("classifier.text_endpoint", "http://localhost:8500/v1/classify/text")
	v.SetDefault("classifier.image_endpoint", "http://localhost:8500/v1/classify/image")
	v.SetDefault("classifier.gemini_api_key", "")
	v.SetDefault("classifier.model_name", "gemini-2.0-flash")
}
