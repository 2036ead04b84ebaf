package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Task       TaskConfig       `mapstructure:"task"       validate:"required"`
	Registry   RegistryConfig   `mapstructure:"registry"   validate:"required"`
	Retriever  RetrieverConfig  `mapstructure:"retriever"  validate:"required"`
	Media      MediaConfig      `mapstructure:"media"      validate:"required"`
	Classifier ClassifierConfig `mapstructure:"classifier" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port"                     validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level"                validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gt=0"`
	// AllowedOrigins is sent back in Access-Control-Allow-Origin. "*" allows any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// TaskConfig contains settings for background analysis tasks.
type TaskConfig struct {
	WorkerCount    int `mapstructure:"worker_count"    validate:"gt=0"`
	QueueSize      int `mapstructure:"queue_size"      validate:"gt=0"`
	TimeoutSeconds int `mapstructure:"timeout_seconds" validate:"gt=0"`

	// TextFailurePolicy decides what a text classification failure does to a task:
	// "isolate" degrades text predictions to empty, "fail" fails the whole task.
	TextFailurePolicy string `mapstructure:"text_failure_policy" validate:"required,oneof=isolate fail"`
}

// RegistryConfig contains settings for the task registry backend.
type RegistryConfig struct {
	Backend                 string `mapstructure:"backend"                  validate:"required,oneof=memory redis postgres"`
	ResultTTLMinutes        int    `mapstructure:"result_ttl_minutes"       validate:"gt=0"`
	MaxEntries              int    `mapstructure:"max_entries"              validate:"gte=0"`
	EvictionIntervalSeconds int    `mapstructure:"eviction_interval_seconds" validate:"gt=0"`

	RedisAddr      string `mapstructure:"redis_addr"       validate:"required_if=Backend redis"`
	RedisPassword  string `mapstructure:"redis_password"`
	RedisDB        int    `mapstructure:"redis_db"         validate:"gte=0"`
	RedisKeyPrefix string `mapstructure:"redis_key_prefix"`

	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Backend postgres,omitempty,url"`
}

// RetrieverConfig contains settings for post content retrieval.
type RetrieverConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gt=0"`
	UserAgent      string `mapstructure:"user_agent"      validate:"required"`
	MaxRetries     uint64 `mapstructure:"max_retries"`
}

// MediaConfig contains settings for media fetching.
type MediaConfig struct {
	FetchTimeoutSeconds int    `mapstructure:"fetch_timeout_seconds" validate:"gt=0"`
	MaxBytes            int64  `mapstructure:"max_bytes"             validate:"gt=0"`
	MaxPixels           int64  `mapstructure:"max_pixels"            validate:"gt=0"`
	MaxRetries          uint64 `mapstructure:"max_retries"`
}

// ClassifierConfig contains settings for the text and image classifiers.
type ClassifierConfig struct {
	Backend        string `mapstructure:"backend"         validate:"required,oneof=http gemini"`
	TopK           int    `mapstructure:"top_k"           validate:"gt=0,lte=7"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gt=0"`
	MaxRetries     uint64 `mapstructure:"max_retries"`

	TextEndpoint  string `mapstructure:"text_endpoint"  validate:"required_if=Backend http,omitempty,url"`
	ImageEndpoint string `mapstructure:"image_endpoint" validate:"required_if=Backend http,omitempty,url"`

	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required_if=Backend gemini"`
	ModelName    string `mapstructure:"model_name"     validate:"required_if=Backend gemini"`
}
