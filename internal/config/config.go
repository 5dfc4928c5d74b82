package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/phako/tn/internal/encoder"
	"github.com/phako/tn/internal/sampler"
)

// Config represents the application configuration
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Sampling SamplingConfig `yaml:"sampling"`
	Output   OutputConfig   `yaml:"output"`
	Decoder  DecoderConfig  `yaml:"decoder"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SamplingConfig contains frame sampling configuration
type SamplingConfig struct {
	Count          int    `yaml:"count"`
	Offset         int    `yaml:"offset"`
	Format         string `yaml:"format"`
	SkipBlack      bool   `yaml:"skip_black"`
	WriteHistogram bool   `yaml:"write_histogram"`
	SlowSeek       bool   `yaml:"slow_seek"`
	MaxSkipFrames  int    `yaml:"max_skip_frames"`
	MaxSeekFrames  int    `yaml:"max_seek_frames"`
}

// OutputConfig contains output file configuration
type OutputConfig struct {
	Dir             string  `yaml:"dir"`
	JPEGEnabled     bool    `yaml:"jpeg_enabled"`
	JPEGQuality     int     `yaml:"jpeg_quality"`
	RenderHistogram bool    `yaml:"render_histogram"`
	MinFreePercent  float64 `yaml:"min_free_percent"`
}

// DecoderConfig selects the video decoder backend
type DecoderConfig struct {
	Backend    string `yaml:"backend"`
	FFmpegPath string `yaml:"ffmpeg_path"`
}

// CatalogConfig contains run catalog configuration
type CatalogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{
		Sampling: SamplingConfig{
			Count:         sampler.DefaultCount,
			MaxSkipFrames: sampler.DefaultMaxSkipFrames,
			MaxSeekFrames: sampler.DefaultMaxSeekFrames,
		},
		Output: OutputConfig{
			JPEGEnabled:     true,
			RenderHistogram: true,
		},
	}
	cfg.setDefaults()
	return cfg
}

// Load reads and parses the configuration file. An empty path yields the
// defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()
	if configPath == "" {
		return cfg, nil
	}

	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	// Unset keys keep their defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg.setDefaults()

	return cfg, nil
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Sampling.Format == "" {
		c.Sampling.Format = encoder.PPM.String()
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "."
	}
	if c.Output.JPEGQuality == 0 {
		c.Output.JPEGQuality = encoder.DefaultJPEGQuality
	}

	if c.Decoder.Backend == "" {
		c.Decoder.Backend = "ffmpeg"
	}

	if c.Catalog.Path == "" {
		c.Catalog.Path = "tn.db"
	}
}

// SamplerConfig converts the sampling section to a sampler configuration
func (c *Config) SamplerConfig() (sampler.Config, error) {
	format, err := encoder.ParseFormat(c.Sampling.Format)
	if err != nil {
		return sampler.Config{}, err
	}

	return sampler.Config{
		Count:          c.Sampling.Count,
		Offset:         c.Sampling.Offset,
		Format:         format,
		SkipBlack:      c.Sampling.SkipBlack,
		WriteHistogram: c.Sampling.WriteHistogram,
		SlowSeek:       c.Sampling.SlowSeek,
		MaxSkipFrames:  c.Sampling.MaxSkipFrames,
		MaxSeekFrames:  c.Sampling.MaxSeekFrames,
	}, nil
}
