// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	tolerance, err := cfg.Reconciliation.ToleranceDecimal()
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Defaults shared by the YAML and environment loaders.
const (
	DefaultTolerance    = "0.01"
	DefaultMinMatchRate = 95.0
	DefaultThreshold    = 90 // also the floor: date (40) plus amount (50)
	DefaultDatabasePath = "reconciliations.db"
	DefaultPort         = "8085"
)

// Config represents the entire application configuration
type Config struct {
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	Statement      StatementConfig      `yaml:"statement"`
	Storage        StorageConfig        `yaml:"storage"`
	API            APIConfig            `yaml:"api"`
	Observability  ObservabilityConfig  `yaml:"observability"`
}

// ReconciliationConfig holds matching and review settings
type ReconciliationConfig struct {
	Tolerance    string  `yaml:"tolerance"`      // decimal string, e.g. "0.01"
	MinMatchRate float64 `yaml:"min_match_rate"` // percent below which a run needs review
	Threshold    int     `yaml:"threshold"`      // minimum score to accept a match
}

// ToleranceDecimal parses Tolerance. An empty value means DefaultTolerance.
func (c ReconciliationConfig) ToleranceDecimal() (decimal.Decimal, error) {
	s := strings.TrimSpace(c.Tolerance)
	if s == "" {
		s = DefaultTolerance
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid tolerance %q: %w", c.Tolerance, err)
	}
	return d, nil
}

// StatementConfig holds statement parsing settings
type StatementConfig struct {
	// ExtraAliases adds header names per column, e.g. {"date": ["Buchungstag"]}
	ExtraAliases map[string][]string `yaml:"extra_aliases"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// APIConfig holds HTTP server settings
type APIConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${RECON_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Reconciliation: ReconciliationConfig{
			Tolerance:    getEnv("RECON_TOLERANCE", DefaultTolerance),
			MinMatchRate: getEnvFloat("RECON_MIN_MATCH_RATE", DefaultMinMatchRate),
			Threshold:    getEnvInt("RECON_THRESHOLD", DefaultThreshold),
		},
		Storage: StorageConfig{
			DatabasePath: getEnv("RECON_DB_PATH", DefaultDatabasePath),
		},
		API: APIConfig{
			Port:           getEnv("PORT", DefaultPort),
			AllowedOrigins: splitList(os.Getenv("RECON_ALLOWED_ORIGINS")),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnv_WithPath("config.yaml")
}

// LoadOrEnv_WithPath tries to load from specified path, falls back to environment variables
func LoadOrEnv_WithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// Validate checks values that would make a run impossible
func (c *Config) Validate() error {
	tol, err := c.Reconciliation.ToleranceDecimal()
	if err != nil {
		return err
	}
	if tol.IsNegative() {
		return errors.New("reconciliation.tolerance cannot be negative")
	}
	if c.Reconciliation.MinMatchRate < 0 || c.Reconciliation.MinMatchRate > 100 {
		return fmt.Errorf("reconciliation.min_match_rate must be between 0 and 100, got %v", c.Reconciliation.MinMatchRate)
	}
	if c.Reconciliation.Threshold != 0 && c.Reconciliation.Threshold < DefaultThreshold {
		return fmt.Errorf("reconciliation.threshold must be at least %d, got %d", DefaultThreshold, c.Reconciliation.Threshold)
	}
	switch c.Observability.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("observability.logging.format must be text or json, got %q", c.Observability.Logging.Format)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Reconciliation.Tolerance == "" {
		c.Reconciliation.Tolerance = DefaultTolerance
	}
	if c.Reconciliation.MinMatchRate == 0 {
		c.Reconciliation.MinMatchRate = DefaultMinMatchRate
	}
	if c.Reconciliation.Threshold == 0 {
		c.Reconciliation.Threshold = DefaultThreshold
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = DefaultDatabasePath
	}
	if c.API.Port == "" {
		c.API.Port = DefaultPort
	}
	if len(c.API.AllowedOrigins) == 0 {
		c.API.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvFloat retrieves a float environment variable with a fallback default
func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		var result float64
		if _, err := fmt.Sscanf(val, "%g", &result); err == nil {
			return result
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
