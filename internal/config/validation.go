package config

import (
	"fmt"
	"strings"

	"github.com/phako/tn/internal/encoder"
)

// Validate validates the configuration with detailed error messages.
// Sample count, offset and loop caps are checked by the sampler itself.
func (c *Config) Validate() error {
	var errors []string

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errors = append(errors, fmt.Sprintf("invalid log.level: %s (must be: debug, info, warn, error, fatal)", c.Log.Level))
	}

	// Validate log format
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errors = append(errors, fmt.Sprintf("invalid log.format: %s (must be: text or json)", c.Log.Format))
	}

	// Validate sampling settings
	format, err := encoder.ParseFormat(c.Sampling.Format)
	if err != nil {
		errors = append(errors, fmt.Sprintf("invalid sampling.format: %s (must be: ppm or jpg)", c.Sampling.Format))
	} else if format == encoder.JPEG && !c.Output.JPEGEnabled {
		errors = append(errors, "sampling.format jpg requires output.jpeg_enabled")
	}

	// Validate output settings
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		errors = append(errors, fmt.Sprintf("output.jpeg_quality must be between 1 and 100, got: %d", c.Output.JPEGQuality))
	}
	if c.Output.MinFreePercent < 0 || c.Output.MinFreePercent > 100 {
		errors = append(errors, fmt.Sprintf("output.min_free_percent must be between 0 and 100, got: %.2f", c.Output.MinFreePercent))
	}

	// Validate decoder settings
	if c.Decoder.Backend != "ffmpeg" && c.Decoder.Backend != "mpeg" {
		errors = append(errors, fmt.Sprintf("invalid decoder.backend: %s (must be: ffmpeg or mpeg)", c.Decoder.Backend))
	}

	// Validate catalog settings
	if c.Catalog.Enabled && c.Catalog.Path == "" {
		errors = append(errors, "catalog.path is required when the catalog is enabled")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}
