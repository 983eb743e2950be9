package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the EquipLens server and worker.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AI       AIConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Pipeline PipelineConfig
}

type ServerConfig struct {
	Port               int    `env:"EQUIPLENS_PORT" env-default:"8080"`
	Env                string `env:"EQUIPLENS_ENV" env-default:"development"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" env-default:"120"`
}

type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" env-default:"5m"`
	MigrationsDir   string        `env:"MIGRATIONS_DIR" env-default:"migrations"`
}

type RedisConfig struct {
	URL string `env:"REDIS_URL"`
}

// AIConfig selects the generative provider. An empty Provider disables AI
// and every insight comes from the rule-based fallback.
type AIConfig struct {
	Provider             string `env:"AI_PROVIDER"`
	InferenceTimeoutSecs int    `env:"AI_INFERENCE_TIMEOUT_SECS" env-default:"60"`
	MaxRetries           int    `env:"AI_MAX_RETRIES" env-default:"2"`
	Ollama               OllamaConfig
	VLLM                 VLLMConfig
	OpenAI               OpenAIConfig
	Anthropic            AnthropicConfig
	Gemini               GeminiConfig
}

// InferenceTimeout bounds a single provider call.
func (c AIConfig) InferenceTimeout() time.Duration {
	return time.Duration(c.InferenceTimeoutSecs) * time.Second
}

// Enabled reports whether a provider is configured.
func (c AIConfig) Enabled() bool {
	return c.Provider != ""
}

type OllamaConfig struct {
	BaseURL string `env:"OLLAMA_BASE_URL" env-default:"http://localhost:11434"`
	Model   string `env:"OLLAMA_MODEL" env-default:"llama3"`
}

type VLLMConfig struct {
	BaseURL string `env:"VLLM_BASE_URL" env-default:"http://localhost:8000"`
	Model   string `env:"VLLM_MODEL"`
}

type OpenAIConfig struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	Model   string `env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
	BaseURL string `env:"OPENAI_BASE_URL"`
}

type AnthropicConfig struct {
	APIKey string `env:"ANTHROPIC_API_KEY"`
	Model  string `env:"ANTHROPIC_MODEL" env-default:"claude-sonnet-4-5-20250929"`
}

type GeminiConfig struct {
	APIKey  string `env:"GEMINI_API_KEY"`
	Model   string `env:"GEMINI_MODEL" env-default:"gemini-2.5-flash"`
	BaseURL string `env:"GEMINI_BASE_URL" env-default:"https://generativelanguage.googleapis.com/v1beta/openai/"`
}

// CacheConfig holds the insight cache TTL per namespace.
type CacheConfig struct {
	SuggestionsTTL        time.Duration `env:"CACHE_TTL_SUGGESTIONS" env-default:"24h"`
	ExecutiveSummaryTTL   time.Duration `env:"CACHE_TTL_EXECUTIVE_SUMMARY" env-default:"12h"`
	OutlierExplanationTTL time.Duration `env:"CACHE_TTL_OUTLIER_EXPLANATION" env-default:"1h"`
	OptimizationsTTL      time.Duration `env:"CACHE_TTL_OPTIMIZATIONS" env-default:"2h"`
}

type StorageConfig struct {
	UploadDir     string `env:"UPLOAD_DIR" env-default:"./data/uploads"`
	MaxUploadSize int64  `env:"MAX_UPLOAD_BYTES" env-default:"33554432"`
}

type PipelineConfig struct {
	WorkerEnabled     bool          `env:"WORKER_ENABLED" env-default:"true"`
	WorkerConcurrency int           `env:"WORKER_CONCURRENCY" env-default:"4"`
	RetentionLimit    int           `env:"RETENTION_LIMIT" env-default:"5"`
	TaskWaitTimeout   time.Duration `env:"TASK_WAIT_TIMEOUT" env-default:"60s"`
	TaskMaxAttempts   int           `env:"TASK_MAX_ATTEMPTS" env-default:"3"`
	QueueStream       string        `env:"QUEUE_STREAM" env-default:"equiplens:tasks"`
	QueueGroup        string        `env:"QUEUE_GROUP" env-default:"equiplens-workers"`
	ReclaimIdle       time.Duration `env:"QUEUE_RECLAIM_IDLE" env-default:"5m"`
}

var validProviders = map[string]bool{
	"ollama":    true,
	"vllm":      true,
	"openai":    true,
	"anthropic": true,
	"gemini":    true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadAI reads only what the offline CLI needs: the AI provider and the
// cache TTLs. Database and Redis settings are ignored.
func LoadAI() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.AI.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if err := c.AI.validate(); err != nil {
		return err
	}

	if c.Pipeline.RetentionLimit < 1 {
		return fmt.Errorf("RETENTION_LIMIT must be at least 1, got %d", c.Pipeline.RetentionLimit)
	}
	if c.Pipeline.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", c.Pipeline.WorkerConcurrency)
	}
	if c.Pipeline.TaskMaxAttempts < 1 {
		return fmt.Errorf("TASK_MAX_ATTEMPTS must be at least 1, got %d", c.Pipeline.TaskMaxAttempts)
	}

	return nil
}

func (c AIConfig) validate() error {
	if c.Provider == "" {
		return nil
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of ollama, vllm, openai, anthropic, gemini; got %q", c.Provider)
	}

	switch c.Provider {
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
		}
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER is gemini")
		}
	case "vllm":
		if c.VLLM.Model == "" {
			return fmt.Errorf("VLLM_MODEL is required when AI_PROVIDER is vllm")
		}
	}

	for name, url := range map[string]string{
		"OLLAMA_BASE_URL": c.Ollama.BaseURL,
		"VLLM_BASE_URL":   c.VLLM.BaseURL,
		"GEMINI_BASE_URL": c.Gemini.BaseURL,
	} {
		if url != "" && !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return fmt.Errorf("%s must start with http:// or https://, got %q", name, url)
		}
	}

	if c.InferenceTimeoutSecs <= 0 {
		return fmt.Errorf("AI_INFERENCE_TIMEOUT_SECS must be positive, got %d", c.InferenceTimeoutSecs)
	}

	return nil
}
