package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Config represents the application configuration.
// Board data comes from the store or seed fixtures, not configuration.
type Config struct {
	Board     BoardConfig     `mapstructure:"board"`
	Storage   StorageConfig   `mapstructure:"storage"`
	AI        AIConfig        `mapstructure:"ai"`
	Forecast  ForecastConfig  `mapstructure:"forecast"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// BoardConfig selects the default board commands operate on.
// A repository-local .stride.toml typically pins this to the
// project's own board.
type BoardConfig struct {
	ID string `mapstructure:"id"`
}

// StorageConfig holds database configuration.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
	Path   string `mapstructure:"path"`   // SQLite database file
	DSN    string `mapstructure:"dsn"`    // Postgres connection string (STRIDE_STORAGE_DSN env var takes precedence)
}

// AIConfig holds AI provider configuration.
type AIConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Provider string `mapstructure:"provider"` // "anthropic", "ollama", "gemini"
	Model    string `mapstructure:"model"`    // e.g., "claude-sonnet-4-5"
	APIKey   string `mapstructure:"api_key"`  // Provider API key (env var and keychain take precedence)
	Endpoint string `mapstructure:"endpoint"` // Custom endpoint URL (e.g., for Ollama: http://localhost:11434)

	// Per-provider default models (used when Model is empty)
	AnthropicModel string `mapstructure:"anthropic_model"`
	OllamaModel    string `mapstructure:"ollama_model"`
	OllamaEndpoint string `mapstructure:"ollama_endpoint"`
	GeminiModel    string `mapstructure:"gemini_model"`
	GeminiAPIKey   string `mapstructure:"gemini_api_key"`
}

// ForecastConfig holds velocity forecasting parameters.
type ForecastConfig struct {
	WindowPeriods   int    `mapstructure:"window_periods"`   // Velocity periods considered (default: 8)
	ConfidenceLevel int    `mapstructure:"confidence_level"` // 90, 95, or 99
	Metric          string `mapstructure:"metric"`           // "tasks" or "points"
}

// WatchConfig holds continuous analysis configuration.
type WatchConfig struct {
	Interval string   `mapstructure:"interval"` // Analysis cadence, e.g. "1h"
	Boards   []string `mapstructure:"boards"`   // Boards to analyze each tick (default: board.id)
}

// TelemetryConfig holds Prometheus metrics configuration for watch mode.
type TelemetryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"` // Listen address for /metrics
}

// SecurityWarning represents a configuration security issue.
type SecurityWarning struct {
	Field   string
	Message string
}

// Load loads the configuration from file and environment variables.
func Load() (*Config, error) {
	config := &Config{}

	// Set defaults
	setDefaults()

	// Unmarshal the config
	if err := viper.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	// Expand paths
	if err := expandPaths(config); err != nil {
		return nil, errors.Wrap(err, "failed to expand paths")
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return config, nil
}

// CheckSecurityWarnings returns warnings for insecure configuration practices.
// Call this when loading config to warn users about API keys stored in config files.
func CheckSecurityWarnings(config *Config) []SecurityWarning {
	var warnings []SecurityWarning

	if config.AI.APIKey != "" && os.Getenv("STRIDE_AI_API_KEY") == "" &&
		os.Getenv("ANTHROPIC_API_KEY") == "" {
		warnings = append(warnings, SecurityWarning{
			Field:   "ai.api_key",
			Message: "AI API key is set in config file. For security, use the ANTHROPIC_API_KEY environment variable or 'stride config set-key' instead.",
		})
	}

	if config.AI.GeminiAPIKey != "" && os.Getenv("STRIDE_AI_GEMINI_API_KEY") == "" &&
		os.Getenv("GOOGLE_GENAI_API_KEY") == "" {
		warnings = append(warnings, SecurityWarning{
			Field:   "ai.gemini_api_key",
			Message: "Gemini API key is set in config file. For security, use the GOOGLE_GENAI_API_KEY environment variable or 'stride config set-key' instead.",
		})
	}

	if config.Storage.DSN != "" && os.Getenv("STRIDE_STORAGE_DSN") == "" {
		warnings = append(warnings, SecurityWarning{
			Field:   "storage.dsn",
			Message: "Database DSN is set in config file. If it embeds a password, prefer the STRIDE_STORAGE_DSN environment variable.",
		})
	}

	return warnings
}

// ValidDrivers is the list of supported storage drivers.
var ValidDrivers = []string{"sqlite", "postgres"}

// ValidateDriver validates that a storage driver is supported.
func ValidateDriver(driver string) error {
	if driver == "" {
		return nil // Empty is allowed, will use default
	}
	for _, valid := range ValidDrivers {
		if driver == valid {
			return nil
		}
	}
	return errors.Newf("invalid storage driver %q: must be one of: sqlite, postgres", driver)
}

// ValidateConfidenceLevel validates a forecast confidence level.
func ValidateConfidenceLevel(level int) error {
	switch level {
	case 0, 90, 95, 99:
		return nil
	}
	return errors.Newf("invalid confidence level %d: must be 90, 95, or 99", level)
}

// ValidateMetric validates a velocity metric name.
func ValidateMetric(metric string) error {
	switch metric {
	case "", "tasks", "points":
		return nil
	}
	return errors.Newf("invalid velocity metric %q: must be tasks or points", metric)
}

// Validate validates the configuration and returns any validation errors.
func (c *Config) Validate() error {
	if err := ValidateDriver(c.Storage.Driver); err != nil {
		return errors.Wrap(err, "storage.driver")
	}
	if err := ValidateConfidenceLevel(c.Forecast.ConfidenceLevel); err != nil {
		return errors.Wrap(err, "forecast.confidence_level")
	}
	if err := ValidateMetric(c.Forecast.Metric); err != nil {
		return errors.Wrap(err, "forecast.metric")
	}
	if c.Forecast.WindowPeriods < 0 {
		return errors.Newf("forecast.window_periods: must not be negative, got %d", c.Forecast.WindowPeriods)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fall back to current directory if home dir can't be determined
		homeDir = "."
	}

	// Board defaults (empty means commands require --board)
	viper.SetDefault("board.id", "")

	// Storage defaults
	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.path", filepath.Join(homeDir, ".local", "share", "stride", "stride.db"))
	viper.SetDefault("storage.dsn", "")

	// AI defaults. Enhancement is opt-in: rule-based suggestions never
	// require a provider.
	viper.SetDefault("ai.enabled", false)
	viper.SetDefault("ai.provider", "anthropic")
	viper.SetDefault("ai.model", "") // Empty means use per-provider default
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.endpoint", "") // Empty means use provider default

	// Per-provider AI model defaults (configurable)
	viper.SetDefault("ai.anthropic_model", "claude-sonnet-4-5")
	viper.SetDefault("ai.ollama_model", "llama3.3")
	viper.SetDefault("ai.ollama_endpoint", "http://localhost:11434")
	viper.SetDefault("ai.gemini_model", "gemini-2.0-flash")
	viper.SetDefault("ai.gemini_api_key", "")

	// Forecast defaults
	viper.SetDefault("forecast.window_periods", 8)
	viper.SetDefault("forecast.confidence_level", 95)
	viper.SetDefault("forecast.metric", "tasks")

	// Watch defaults
	viper.SetDefault("watch.interval", "1h")
	viper.SetDefault("watch.boards", []string{})

	// Telemetry defaults
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.addr", "127.0.0.1:9464")
}

// expandPaths expands ~ and environment variables in paths.
func expandPaths(config *Config) error {
	var err error

	config.Storage.Path, err = expandPath(config.Storage.Path)
	if err != nil {
		return err
	}

	return nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, path[1:]), nil
}
