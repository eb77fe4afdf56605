// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrConfiguration marks configuration problems that must stop startup.
var ErrConfiguration = errors.New("configuration error")

// Store backends.
const (
	StoreBackendFile   = "file"
	StoreBackendSQLite = "sqlite"
)

// DefaultAssistantName is the persona used when ASSISTANT_NAME is unset.
const DefaultAssistantName = "studor"

// Config holds all application configuration.
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string

	AssistantName string
	OpenAI        OpenAIConfig

	ResourcesDir     string
	KnowledgePath    string
	InstructionsPath string

	StoreBackend string
	DBPath       string

	PollInterval time.Duration
	PollTimeout  time.Duration
}

// OpenAIConfig controls the remote assistant service client.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	resourcesDir := getEnv("RESOURCES_DIR", "./resources")

	maxRetries, retriesErr := getEnvInt("OPENAI_MAX_RETRIES", 2)
	pollInterval, intervalErr := getEnvDuration("POLL_INTERVAL", time.Second)
	pollTimeout, timeoutErr := getEnvDuration("POLL_TIMEOUT", 2*time.Minute)
	if err := errors.Join(retriesErr, intervalErr, timeoutErr); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w: %w", ErrConfiguration, err)
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		AssistantName:  getEnv("ASSISTANT_NAME", DefaultAssistantName),
		OpenAI: OpenAIConfig{
			APIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			BaseURL:    getEnv("OPENAI_BASE_URL", ""),
			Model:      getEnv("ASSISTANT_MODEL", "gpt-4o-mini"),
			MaxRetries: maxRetries,
		},
		ResourcesDir:     resourcesDir,
		KnowledgePath:    getEnv("KNOWLEDGE_PATH", filepath.Join(resourcesDir, "personas.txt")),
		InstructionsPath: getEnv("INSTRUCTIONS_PATH", filepath.Join(resourcesDir, "instructions.tmpl")),
		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", StoreBackendFile)),
		DBPath:           getEnv("DB_PATH", "./data/elenchus.db"),
		PollInterval:     pollInterval,
		PollTimeout:      pollTimeout,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrConfiguration)
	}
	if c.Port == "" {
		return fmt.Errorf("%w: PORT cannot be empty", ErrConfiguration)
	}
	if strings.TrimSpace(c.AssistantName) == "" {
		return fmt.Errorf("%w: ASSISTANT_NAME cannot be empty", ErrConfiguration)
	}
	if strings.ContainsAny(c.AssistantName, `/\`) {
		return fmt.Errorf("%w: ASSISTANT_NAME must not contain path separators", ErrConfiguration)
	}
	if c.OpenAI.Model == "" {
		return fmt.Errorf("%w: ASSISTANT_MODEL cannot be empty", ErrConfiguration)
	}
	if c.OpenAI.MaxRetries < 0 {
		return fmt.Errorf("%w: OPENAI_MAX_RETRIES must be >= 0", ErrConfiguration)
	}
	switch c.StoreBackend {
	case StoreBackendFile:
		if c.ResourcesDir == "" {
			return fmt.Errorf("%w: RESOURCES_DIR cannot be empty", ErrConfiguration)
		}
	case StoreBackendSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("%w: DB_PATH cannot be empty", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown STORE_BACKEND %q", ErrConfiguration, c.StoreBackend)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: POLL_INTERVAL must be > 0", ErrConfiguration)
	}
	if c.PollTimeout < c.PollInterval {
		return fmt.Errorf("%w: POLL_TIMEOUT must be >= POLL_INTERVAL", ErrConfiguration)
	}
	return nil
}

// WriteTimeout returns the HTTP write timeout needed to cover a full poll.
func (c *Config) WriteTimeout() time.Duration {
	return c.PollTimeout + 30*time.Second
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// getEnvInt returns fallback when key is unset or empty, and an error when
// the value is not an integer.
func getEnvInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return n, nil
}

// getEnvDuration is getEnvInt for time.ParseDuration values such as "90s".
func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
