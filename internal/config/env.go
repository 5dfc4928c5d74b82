package config

import (
	"fmt"
	"os"
	"strings"
)

// ApplyEnvOverrides applies TN_* environment variables on top of the file
// configuration. Command-line flags are applied after this.
func ApplyEnvOverrides(cfg *Config) {
	// Log settings
	if val := os.Getenv("TN_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := os.Getenv("TN_LOG_FORMAT"); val != "" {
		cfg.Log.Format = val
	}
	if val := os.Getenv("TN_LOG_OUTPUT"); val != "" {
		cfg.Log.Output = val
	}

	// Output settings
	if val := os.Getenv("TN_OUTPUT_DIR"); val != "" {
		cfg.Output.Dir = val
	}
	if val := os.Getenv("TN_JPEG_QUALITY"); val != "" {
		if quality, err := parseInt(val); err == nil {
			cfg.Output.JPEGQuality = quality
		}
	}
	if val := os.Getenv("TN_MIN_FREE_PERCENT"); val != "" {
		if percent, err := parseFloat64(val); err == nil {
			cfg.Output.MinFreePercent = percent
		}
	}

	// Decoder settings
	if val := os.Getenv("TN_DECODER_BACKEND"); val != "" {
		cfg.Decoder.Backend = val
	}
	if val := os.Getenv("TN_FFMPEG_PATH"); val != "" {
		cfg.Decoder.FFmpegPath = val
	}

	// Catalog settings
	cfg.Catalog.Enabled = GetEnvBool("TN_CATALOG_ENABLED", cfg.Catalog.Enabled)
	if val := os.Getenv("TN_CATALOG_PATH"); val != "" {
		cfg.Catalog.Path = val
	}
}

// Helper functions for parsing environment variables
func parseInt(s string) (int, error) {
	var result int
	_, err := fmt.Sscanf(s, "%d", &result)
	return result, err
}

func parseFloat64(s string) (float64, error) {
	var result float64
	_, err := fmt.Sscanf(s, "%f", &result)
	return result, err
}

// GetEnvBool gets a boolean environment variable
func GetEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	val = strings.ToLower(val)
	return val == "true" || val == "1" || val == "yes" || val == "on"
}
