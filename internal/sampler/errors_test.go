package sampler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phako/tn/internal/encoder"
)

func TestError_Message(t *testing.T) {
	err := newError(KindSeek, "seek", 2, errors.New("stream ended before target 30"))
	assert.Equal(t, "seek failed at sample 2: stream ended before target 30", err.Error())

	err = newError(KindOpen, "open", -1, errors.New("no such file"))
	assert.Equal(t, "open failed: no such file", err.Error())

	assert.Equal(t, "exhausted", ErrExhausted.Error())
}

func TestError_Is(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("run: %w", newError(KindIO, "emit", 0, cause))

	assert.True(t, errors.Is(err, ErrIO))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrSeek))
	assert.Equal(t, KindIO, KindOf(err))
	assert.Equal(t, Kind(0), KindOf(cause))
}

func TestKind_String(t *testing.T) {
	kinds := map[Kind]string{
		KindConfig:    "config",
		KindOpen:      "open",
		KindDecode:    "decode",
		KindSeek:      "seek",
		KindExhausted: "exhausted",
		KindIO:        "io",
		KindCanceled:  "canceled",
		Kind(99):      "unknown",
	}
	for kind, want := range kinds {
		assert.Equal(t, want, kind.String())
	}
}

func TestConfig_Validate(t *testing.T) {
	enc := encoder.New()

	require.NoError(t, DefaultConfig().Validate(enc))

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"zero count", func(c *Config) { c.Count = 0 }, "count must be > 0"},
		{"negative count", func(c *Config) { c.Count = -3 }, "count must be > 0"},
		{"negative offset", func(c *Config) { c.Offset = -1 }, "offset"},
		{"unsupported format", func(c *Config) { c.Format = encoder.JPEG }, "unsupported image format jpg"},
		{"skip cap", func(c *Config) { c.MaxSkipFrames = 0 }, "max_skip_frames"},
		{"seek cap", func(c *Config) { c.MaxSeekFrames = -1 }, "max_seek_frames"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate(enc)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_ValidateAggregates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Count = 0
	cfg.Offset = -1

	err := cfg.Validate(encoder.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count")
	assert.Contains(t, err.Error(), "offset")
}
