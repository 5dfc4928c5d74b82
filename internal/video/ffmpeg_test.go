package video

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phako/tn/internal/logger"
)

func TestNewFFmpegWrapper(t *testing.T) {
	backend := setupTestFFmpeg(t)
	assert.NotEmpty(t, backend.ffmpeg.Path())
	assert.Equal(t, "ffmpeg", backend.Name())

	version, err := backend.ffmpeg.GetVersion()
	require.NoError(t, err)
	assert.NotEmpty(t, version)
}

func TestNewFFmpegWrapper_InvalidPath(t *testing.T) {
	_, err := NewFFmpegWrapper("/nonexistent/ffmpeg", logger.NewNopLogger())
	assert.Error(t, err)
}

func TestFFmpegSession_DecodeArgs(t *testing.T) {
	s := &ffmpegSession{
		path: "in.mkv",
		info: StreamInfo{TimeBase: Rational{Num: 1, Den: 1000}},
	}

	args := strings.Join(s.decodeArgs(), " ")
	assert.Contains(t, args, "-i in.mkv")
	assert.Contains(t, args, "rgb24")
	assert.Contains(t, args, "rawvideo")
	assert.Contains(t, args, "pipe:")
	assert.NotContains(t, args, "-ss")
	assert.NotContains(t, args, "skip_loop_filter")

	s.origin = 2500
	s.hurry = true
	args = strings.Join(s.decodeArgs(), " ")
	assert.Contains(t, args, "-ss 2.500000")
	assert.Contains(t, args, "-skip_loop_filter all")
}

func TestFFmpegBackend_DecodeAndSeek(t *testing.T) {
	backend := setupTestFFmpeg(t)
	path := generateTestClip(t, backend, "clip.mp4", "-pix_fmt", "yuv420p")

	ctx := context.Background()
	session, err := backend.Open(ctx, path)
	require.NoError(t, err)
	defer session.Close()

	info := session.Info()
	assert.Equal(t, 64, info.Width)
	assert.Equal(t, 48, info.Height)
	assert.Greater(t, info.Duration, int64(0))

	first, err := session.DecodeNext(ctx)
	require.NoError(t, err)
	assert.Len(t, first.RGB, 64*48*3)
	assert.Equal(t, int64(0), first.PTS)

	second, err := session.DecodeNext(ctx)
	require.NoError(t, err)
	assert.Greater(t, second.PTS, first.PTS)

	// two seconds in, past the black lead-in
	target := info.TimeBase.Ticks(2)
	require.NoError(t, session.Seek(ctx, target, true))
	session.SetHurry(true)
	frame, err := session.DecodeNext(ctx)
	session.SetHurry(false)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, frame.PTS, target-1)

	for {
		_, err = session.DecodeNext(ctx)
		if err != nil {
			break
		}
	}
	assert.True(t, errors.Is(err, ErrEndOfStream))

	_, err = session.DecodeNext(ctx)
	assert.True(t, errors.Is(err, ErrEndOfStream))
}

func TestFFmpegBackend_OpenMissingFile(t *testing.T) {
	backend := setupTestFFmpeg(t)
	_, err := backend.Open(context.Background(), "/nonexistent/clip.mp4")
	assert.Error(t, err)
}

func TestMPEGBackend_DecodeGeneratedClip(t *testing.T) {
	ffmpegBackend := setupTestFFmpeg(t)
	path := generateTestClip(t, ffmpegBackend, "clip.mpg", "-c:v", "mpeg1video", "-f", "mpeg")

	ctx := context.Background()
	session, err := NewMPEGBackend(logger.NewNopLogger()).Open(ctx, path)
	require.NoError(t, err)
	defer session.Close()

	info := session.Info()
	assert.Equal(t, 64, info.Width)
	assert.Equal(t, 48, info.Height)

	frame, err := session.DecodeNext(ctx)
	require.NoError(t, err)
	assert.Len(t, frame.RGB, frame.Width*frame.Height*3)

	require.NoError(t, session.Seek(ctx, info.TimeBase.Ticks(2), true))
	frame, err = session.DecodeNext(ctx)
	require.NoError(t, err)
	assert.Greater(t, frame.PTS, int64(0))
}
