package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cesargomez89/navidrums/internal/constants"
)

// Config holds all application configuration
type Config struct {
	LogLevel         string
	LogFormat        string
	TagWriteWindow   int
	CoverArtMaxBytes int64
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
		TagWriteWindow:   getEnvInt("TAG_WRITE_WINDOW", constants.DefaultTagWriteWindow),
		CoverArtMaxBytes: getEnvInt64("COVER_ART_MAX_BYTES", constants.DefaultCoverArtMaxBytes),
	}
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	// Validate LogLevel
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	// Validate LogFormat
	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	// Validate TagWriteWindow
	if c.TagWriteWindow <= 0 {
		errors = append(errors, "TAG_WRITE_WINDOW must be greater than 0")
	}

	// Validate CoverArtMaxBytes
	if c.CoverArtMaxBytes <= 0 {
		errors = append(errors, "COVER_ART_MAX_BYTES must be greater than 0")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getEnvInt retrieves an environment variable as int with a fallback default
func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvInt64 retrieves an environment variable as int64 with a fallback default
func getEnvInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
