// Package config loads runtime configuration from a JSON file, the
// environment and built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/cover-letter-studio/internal/schemas"
)

// Defaults
const (
	DefaultPort         = 8080
	DefaultRedisChannel = "letter-progress"
	DefaultLogMode      = "dev"
	DefaultTimeout      = 60 * time.Second
	DefaultCallTimeout  = 45 * time.Second
)

// Config is the application configuration. Every field is optional in the
// file; durations are Go duration strings such as "60s".
type Config struct {
	DatabaseURL string `json:"database_url,omitempty"`
	APIKey      string `json:"api_key,omitempty"`

	LLMProvider   string `json:"llm_provider,omitempty"`
	VertexProject string `json:"vertex_project,omitempty"`
	VertexRegion  string `json:"vertex_region,omitempty"`

	GenerationTimeout     string `json:"generation_timeout,omitempty"`
	GenerationCallTimeout string `json:"generation_call_timeout,omitempty"`

	RedisAddr    string `json:"redis_addr,omitempty"`
	RedisChannel string `json:"redis_channel,omitempty"`

	LogMode        string   `json:"log_mode,omitempty"`
	Port           int      `json:"port,omitempty"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`

	// CLI only
	OwnerID    string `json:"owner_id,omitempty"`
	UseBrowser bool   `json:"use_browser,omitempty"`
}

// LoadConfig loads configuration from a JSON file. The file is checked
// against the embedded config schema before decoding.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := schemas.Validate(schemas.Config, data); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv reads the configuration from environment variables.
func FromEnv() Config {
	cfg := Config{
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		APIKey:                os.Getenv("GEMINI_API_KEY"),
		LLMProvider:           os.Getenv("LLM_PROVIDER"),
		VertexProject:         os.Getenv("VERTEX_PROJECT"),
		VertexRegion:          os.Getenv("VERTEX_REGION"),
		GenerationTimeout:     os.Getenv("GENERATION_TIMEOUT"),
		GenerationCallTimeout: os.Getenv("GENERATION_CALL_TIMEOUT"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisChannel:          os.Getenv("REDIS_CHANNEL"),
		LogMode:               os.Getenv("LOG_MODE"),
	}
	if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
		cfg.Port = port
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	return cfg
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		LLMProvider:           "gemini",
		GenerationTimeout:     DefaultTimeout.String(),
		GenerationCallTimeout: DefaultCallTimeout.String(),
		RedisChannel:          DefaultRedisChannel,
		LogMode:               DefaultLogMode,
		Port:                  DefaultPort,
	}
}

// Load merges the optional file at path over the environment over the
// defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := FromEnv()
	if path != "" {
		file, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = file.MergeWithDefaults(cfg)
	}
	cfg = cfg.MergeWithDefaults(Defaults())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Required settings depend on the command and are checked there.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' out of range: %d", c.Port)
	}
	switch c.LLMProvider {
	case "", "gemini", "vertex":
	default:
		return fmt.Errorf("config error: unknown llm_provider %q", c.LLMProvider)
	}
	if c.LLMProvider == "vertex" && c.VertexProject == "" {
		return fmt.Errorf("config error: 'vertex_project' is required for the vertex provider")
	}

	timeout, err := c.Deadline()
	if err != nil {
		return err
	}
	callTimeout, err := c.CallTimeout()
	if err != nil {
		return err
	}
	if callTimeout > timeout {
		return fmt.Errorf("config error: 'generation_call_timeout' (%s) exceeds 'generation_timeout' (%s)", callTimeout, timeout)
	}
	return nil
}

// Deadline is the whole-run generation deadline.
func (c *Config) Deadline() (time.Duration, error) {
	return parseDuration("generation_timeout", c.GenerationTimeout, DefaultTimeout)
}

// CallTimeout bounds a single model call.
func (c *Config) CallTimeout() (time.Duration, error) {
	return parseDuration("generation_call_timeout", c.GenerationCallTimeout, DefaultCallTimeout)
}

func parseDuration(name, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config error: invalid '%s': %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config error: '%s' must be positive", name)
	}
	return d, nil
}

// MergeWithDefaults returns a new Config with empty fields filled from
// defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&result.DatabaseURL, defaults.DatabaseURL)
	fill(&result.APIKey, defaults.APIKey)
	fill(&result.LLMProvider, defaults.LLMProvider)
	fill(&result.VertexProject, defaults.VertexProject)
	fill(&result.VertexRegion, defaults.VertexRegion)
	fill(&result.GenerationTimeout, defaults.GenerationTimeout)
	fill(&result.GenerationCallTimeout, defaults.GenerationCallTimeout)
	fill(&result.RedisAddr, defaults.RedisAddr)
	fill(&result.RedisChannel, defaults.RedisChannel)
	fill(&result.LogMode, defaults.LogMode)
	fill(&result.OwnerID, defaults.OwnerID)

	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if len(result.AllowedOrigins) == 0 {
		result.AllowedOrigins = defaults.AllowedOrigins
	}

	// Bools cannot distinguish unset from false; CLI flags win for them.
	return result
}
