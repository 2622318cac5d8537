// Package config reads application configuration from the environment.
// Only this package calls os.Getenv.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the screener.
type Config struct {
	Env string // development, staging, production

	// Data cache
	CacheDir string
	UseCache bool

	// Data providers
	Provider ProviderConfig

	// Narrative report generation
	DeepSeek DeepSeekConfig

	// Strategy parameter file (YAML)
	StrategyFile string

	// Report output directory
	OutputDir string

	// Logging
	LogLevel  string
	LogFormat string
}

// ProviderConfig holds market-data provider settings.
type ProviderConfig struct {
	EastmoneyBaseURL string
	SinaBaseURL      string
	IndustryBaseURL  string
	RequestsPerSec   float64 // provider rate limit
}

// DeepSeekConfig holds the chat-completion endpoint used for narrative
// market reports. Reports degrade to plain text when disabled.
type DeepSeekConfig struct {
	APIKey   string
	Endpoint string
	Model    string
	Enabled  bool
}

// Load reads configuration from environment variables, optionally seeded
// from a .env file.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		CacheDir: getEnv("CACHE_DIR", "data_cache"),
		UseCache: getEnvAsBool("USE_CACHE", true),

		Provider: ProviderConfig{
			EastmoneyBaseURL: getEnv("EASTMONEY_BASE_URL", "https://push2his.eastmoney.com"),
			SinaBaseURL:      getEnv("SINA_BASE_URL", "https://hq.sinajs.cn"),
			IndustryBaseURL:  getEnv("INDUSTRY_BASE_URL", "https://quote.eastmoney.com"),
			RequestsPerSec:   getEnvAsFloat("PROVIDER_RPS", 5),
		},

		DeepSeek: DeepSeekConfig{
			APIKey:   getEnv("DEEPSEEK_API_KEY", ""),
			Endpoint: getEnv("DEEPSEEK_ENDPOINT", "https://api.deepseek.com/chat/completions"),
			Model:    getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
			Enabled:  getEnvAsBool("DEEPSEEK_ENABLED", false),
		},

		StrategyFile: getEnv("STRATEGY_FILE", ""),
		OutputDir:    getEnv("OUTPUT_DIR", "."),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}
	if c.DeepSeek.Enabled && c.DeepSeek.APIKey == "" {
		return fmt.Errorf("DEEPSEEK_API_KEY is required when DEEPSEEK_ENABLED is true")
	}
	if c.Provider.RequestsPerSec <= 0 {
		return fmt.Errorf("PROVIDER_RPS must be positive")
	}
	return nil
}

// loadEnvFile tries to load .env from a few likely locations.
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
