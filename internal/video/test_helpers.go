package video

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/phako/tn/internal/logger"
)

// sampleMPEG is a 160x120, 30 fps MPEG-1 program stream of about nine
// seconds with an intra frame every 15 pictures
var sampleMPEG = filepath.Join("testdata", "sample.mpg")

func openSampleMPEG(t *testing.T) Session {
	session, err := NewMPEGBackend(logger.NewNopLogger()).Open(context.Background(), sampleMPEG)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", sampleMPEG, err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func setupTestFFmpeg(t *testing.T) *FFmpegBackend {
	backend, err := NewFFmpegBackend(BackendOptions{Logger: logger.NewNopLogger()})
	if err != nil {
		t.Skipf("FFmpeg not available, skipping test: %v", err)
	}
	return backend
}

// generateTestClip renders a short synthetic clip with ffmpeg's lavfi test
// source. The first second is black.
func generateTestClip(t *testing.T, backend *FFmpegBackend, name string, extra ...string) string {
	path := filepath.Join(t.TempDir(), name)
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "lavfi", "-i", "color=c=black:s=64x48:r=25:d=1",
		"-f", "lavfi", "-i", "testsrc=s=64x48:r=25:d=3",
		"-filter_complex", "[0:v][1:v]concat=n=2:v=1:a=0",
	}
	args = append(args, extra...)
	args = append(args, path)

	if out, err := exec.Command(backend.ffmpeg.Path(), args...).CombinedOutput(); err != nil {
		t.Skipf("Could not generate test clip: %v: %s", err, out)
	}
	return path
}
