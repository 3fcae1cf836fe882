// Package config loads the process configuration for the classification
// engine: where the rule catalog lives and how often it reloads, how to
// reach the terminology oracle, and how to log. It follows the teacher's
// Viper-backed Manager shape: defaults first, optional file, then
// environment overrides, unmarshaled into one struct.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CatalogConfig configures the rule catalog store.
type CatalogConfig struct {
	Path           string        `mapstructure:"path"`
	DefaultSource  string        `mapstructure:"default_source"`
	ReloadInterval time.Duration `mapstructure:"reload_interval"`
}

// TerminologyConfig configures the terminology normalizer and its optional
// external oracle.
type TerminologyConfig struct {
	OracleBaseURL          string        `mapstructure:"oracle_base_url"`
	OracleTimeout          time.Duration `mapstructure:"oracle_timeout"`
	NormalizationCacheSize int           `mapstructure:"normalization_cache_size"`
	CircuitBreakerMaxFails uint32        `mapstructure:"circuit_breaker_max_fails"`
	CircuitBreakerTimeout  time.Duration `mapstructure:"circuit_breaker_timeout"`
	RedisURL               string        `mapstructure:"redis_url"`
	ResponseCacheTTL       time.Duration `mapstructure:"response_cache_ttl"`
	RateLimitPerSecond     float64       `mapstructure:"rate_limit_per_second"`
	RateLimitBurst         int           `mapstructure:"rate_limit_burst"`
}

// LoggingConfig configures the process-wide logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the complete, unmarshaled process configuration.
type Config struct {
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Terminology TerminologyConfig `mapstructure:"terminology"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// Manager loads and validates Config using Viper, following the teacher's
// NewManager/loadConfig/setDefaults/Validate shape.
type Manager struct {
	v      *viper.Viper
	config *Config
}

// NewManager loads configuration from defaults, an optional config file,
// and AMR_-prefixed environment variables.
func NewManager() (*Manager, error) {
	m := &Manager{v: viper.New()}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	m.v.SetConfigName("config")
	m.v.SetConfigType("yaml")
	m.v.AddConfigPath(".")
	m.v.AddConfigPath("./config")
	m.v.AddConfigPath("/etc/amr-classifier/")

	m.v.SetEnvPrefix("AMR")
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.v.AutomaticEnv()

	m.setDefaults()

	if err := m.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := m.v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	m.v.SetDefault("catalog.path", "./catalog")
	m.v.SetDefault("catalog.default_source", "EUCAST")
	m.v.SetDefault("catalog.reload_interval", "5m")

	m.v.SetDefault("terminology.oracle_base_url", "")
	m.v.SetDefault("terminology.oracle_timeout", "2s")
	m.v.SetDefault("terminology.normalization_cache_size", 4096)
	m.v.SetDefault("terminology.circuit_breaker_max_fails", uint32(5))
	m.v.SetDefault("terminology.circuit_breaker_timeout", "30s")
	m.v.SetDefault("terminology.redis_url", "")
	m.v.SetDefault("terminology.response_cache_ttl", "1h")
	m.v.SetDefault("terminology.rate_limit_per_second", 20.0)
	m.v.SetDefault("terminology.rate_limit_burst", 10)

	m.v.SetDefault("logging.level", "info")
	m.v.SetDefault("logging.format", "json")
}

// GetConfig returns the complete loaded configuration.
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Reload re-reads configuration from file and environment.
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate checks the loaded configuration for values the rest of the
// module cannot safely default around.
func (m *Manager) Validate() error {
	cfg := m.config

	if cfg.Catalog.Path == "" {
		return fmt.Errorf("catalog path is required")
	}
	if cfg.Catalog.ReloadInterval < 0 {
		return fmt.Errorf("catalog reload interval must not be negative")
	}

	if cfg.Terminology.NormalizationCacheSize <= 0 {
		return fmt.Errorf("terminology normalization cache size must be positive")
	}
	if cfg.Terminology.OracleBaseURL != "" && cfg.Terminology.OracleTimeout <= 0 {
		return fmt.Errorf("terminology oracle timeout must be positive when an oracle is configured")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	return nil
}
