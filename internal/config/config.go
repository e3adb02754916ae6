// Package config provides configuration loading and validation for the service and CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/company-insights/internal/llm"
	"github.com/jonathan/company-insights/internal/server/ratelimit"
)

// Defaults
const (
	DefaultPort              = 8000
	DefaultRateLimit         = "5/minute"
	DefaultConverseRateLimit = "10/minute"
	DefaultLogLevel          = "info"
)

// Config represents the service configuration. It can be loaded from a YAML (or JSON)
// file and is then overlaid with environment variables and CLI flags.
type Config struct {
	// Secrets
	SecretKey    string `yaml:"secret_key,omitempty" json:"secret_key,omitempty"`         // Shared bearer token clients must present
	GeminiAPIKey string `yaml:"gemini_api_key,omitempty" json:"gemini_api_key,omitempty"` // Gemini API key

	// Model
	GeminiModel string `yaml:"gemini_model,omitempty" json:"gemini_model,omitempty"`

	// Limits, e.g. "5/minute"
	RateLimit         string `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	ConverseRateLimit string `yaml:"converse_rate_limit,omitempty" json:"converse_rate_limit,omitempty"`

	// Server
	Port int `yaml:"port,omitempty" json:"port,omitempty"`

	// Behavior
	UseBrowser bool   `yaml:"use_browser,omitempty" json:"use_browser,omitempty"` // Re-render thin pages in headless Chrome
	LogLevel   string `yaml:"log_level,omitempty" json:"log_level,omitempty"`
	Verbose    bool   `yaml:"verbose,omitempty" json:"verbose,omitempty"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		GeminiModel:       llm.DefaultModel,
		RateLimit:         DefaultRateLimit,
		ConverseRateLimit: DefaultConverseRateLimit,
		Port:              DefaultPort,
		LogLevel:          DefaultLogLevel,
	}
}

// LoadConfig loads configuration from a YAML or JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
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

	// YAML is a superset of JSON, so one decoder covers both.
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv overrides fields with any environment variables that are set.
func (c *Config) ApplyEnv() error {
	stringVars := map[string]*string{
		"SECRET_KEY":          &c.SecretKey,
		"GEMINI_API_KEY":      &c.GeminiAPIKey,
		"GEMINI_MODEL":        &c.GeminiModel,
		"RATE_LIMIT":          &c.RateLimit,
		"CONVERSE_RATE_LIMIT": &c.ConverseRateLimit,
		"LOG_LEVEL":           &c.LogLevel,
	}
	for key, field := range stringVars {
		if value := os.Getenv(key); value != "" {
			*field = value
		}
	}

	if value := os.Getenv("PORT"); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config error: PORT must be an integer: %w", err)
		}
		c.Port = port
	}

	if value := os.Getenv("USE_BROWSER"); value != "" {
		useBrowser, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config error: USE_BROWSER must be a boolean: %w", err)
		}
		c.UseBrowser = useBrowser
	}

	return nil
}

// Validate checks that the configuration has valid values.
// Secrets are checked by RequireSecrets since not every command needs them.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("config error: 'port' must be between 0 and 65535"))
	}
	if c.RateLimit != "" {
		if _, _, err := ratelimit.ParseRate(c.RateLimit); err != nil {
			errs = append(errs, fmt.Errorf("config error: 'rate_limit': %w", err))
		}
	}
	if c.ConverseRateLimit != "" {
		if _, _, err := ratelimit.ParseRate(c.ConverseRateLimit); err != nil {
			errs = append(errs, fmt.Errorf("config error: 'converse_rate_limit': %w", err))
		}
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config error: unknown log level %q", c.LogLevel))
	}

	return errors.Join(errs...)
}

// RequireSecrets reports missing secrets. The bearer secret is only needed to serve.
func (c *Config) RequireSecrets(needServerSecret bool) error {
	var errs []error
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		errs = append(errs, errors.New("config error: GEMINI_API_KEY is required"))
	}
	if needServerSecret && strings.TrimSpace(c.SecretKey) == "" {
		errs = append(errs, errors.New("config error: SECRET_KEY is required"))
	}
	return errors.Join(errs...)
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.SecretKey == "" {
		result.SecretKey = defaults.SecretKey
	}
	if result.GeminiAPIKey == "" {
		result.GeminiAPIKey = defaults.GeminiAPIKey
	}
	if result.GeminiModel == "" {
		result.GeminiModel = defaults.GeminiModel
	}
	if result.RateLimit == "" {
		result.RateLimit = defaults.RateLimit
	}
	if result.ConverseRateLimit == "" {
		result.ConverseRateLimit = defaults.ConverseRateLimit
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}

	// Int fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// Load reads the optional file at path, applies the environment, fills defaults and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		fileCfg, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	merged := cfg.MergeWithDefaults(Defaults())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// EffectiveLogLevel returns "debug" in verbose mode and the configured level otherwise.
func (c *Config) EffectiveLogLevel() string {
	if c.Verbose {
		return "debug"
	}
	return c.LogLevel
}
