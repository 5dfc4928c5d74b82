package sampler

import (
	"fmt"
	"strings"

	"github.com/phako/tn/internal/encoder"
)

const (
	// DefaultCount is the number of samples taken when none is configured
	DefaultCount = 32
	// DefaultMaxSkipFrames bounds the black-frame skip loop
	DefaultMaxSkipFrames = 10000
	// DefaultMaxSeekFrames bounds forward decoding while seeking
	DefaultMaxSeekFrames = 1000000
)

// Config is the immutable description of one sampling run
type Config struct {
	Count          int            // Number of samples, > 0
	Offset         int            // Index of the first output frame file
	Format         encoder.Format // Output image format
	SkipBlack      bool           // Skip near-black frames before emitting
	WriteHistogram bool           // Write histogram diagnostics per sample
	SlowSeek       bool           // Decode linearly instead of seeking
	MaxSkipFrames  int            // Decode budget of one black-skip loop
	MaxSeekFrames  int            // Decode budget of one seek
}

// DefaultConfig returns the configuration of a plain `tn <file>` run
func DefaultConfig() Config {
	return Config{
		Count:         DefaultCount,
		Format:        encoder.PPM,
		MaxSkipFrames: DefaultMaxSkipFrames,
		MaxSeekFrames: DefaultMaxSeekFrames,
	}
}

// Validate checks the configuration against the encoder's capabilities.
// Failures are reported as KindConfig errors.
func (c Config) Validate(enc encoder.Encoder) error {
	var problems []string

	if c.Count <= 0 {
		problems = append(problems, fmt.Sprintf("cannot create %d pictures, count must be > 0", c.Count))
	}
	if c.Offset < 0 {
		problems = append(problems, fmt.Sprintf("offset must be >= 0, got: %d", c.Offset))
	}
	if enc != nil && !enc.Supports(c.Format) {
		problems = append(problems, fmt.Sprintf("unsupported image format %s (supported: %s)", c.Format, encoder.SupportedString(enc)))
	}
	if c.MaxSkipFrames <= 0 {
		problems = append(problems, fmt.Sprintf("max_skip_frames must be > 0, got: %d", c.MaxSkipFrames))
	}
	if c.MaxSeekFrames <= 0 {
		problems = append(problems, fmt.Sprintf("max_seek_frames must be > 0, got: %d", c.MaxSeekFrames))
	}

	if len(problems) > 0 {
		return newError(KindConfig, "config", -1, fmt.Errorf("%s", strings.Join(problems, "; ")))
	}
	return nil
}

// Schedule returns the target timestamps (i+1)*step for i in [0, count),
// where step is duration/count
func Schedule(duration int64, count int) []int64 {
	if count <= 0 {
		return nil
	}

	step := duration / int64(count)
	targets := make([]int64, count)
	for i := range targets {
		targets[i] = int64(i+1) * step
	}
	return targets
}
