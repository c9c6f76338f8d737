package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server            ServerConfig
	Output            OutputConfig
	Log               LogConfig
	MetricsEnabled    bool
	PdftotextFallback bool
}

type ServerConfig struct {
	Host        string
	Port        int
	BodyLimitMB int
	StaticDir   string
}

type OutputConfig struct {
	Dir       string
	Retention time.Duration
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from environment variables, after loading any of
// the given .env files that exist.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvAsInt("SERVER_PORT", 5000),
			BodyLimitMB: getEnvAsInt("BODY_LIMIT_MB", 10),
			StaticDir:   getEnv("STATIC_DIR", ""),
		},
		Output: OutputConfig{
			Dir:       getEnv("OUTPUT_DIR", "outputs"),
			Retention: getEnvAsDuration("OUTPUT_RETENTION", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvAsBool("LOG_PRETTY", false),
		},
		MetricsEnabled:    getEnvAsBool("METRICS_ENABLED", true),
		PdftotextFallback: getEnvAsBool("PDFTOTEXT_FALLBACK", true),
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT out of range: %d", cfg.Server.Port)
	}
	if cfg.Server.BodyLimitMB <= 0 {
		return nil, errors.New("BODY_LIMIT_MB must be positive")
	}
	if cfg.Output.Retention <= 0 {
		return nil, errors.New("OUTPUT_RETENTION must be positive")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
