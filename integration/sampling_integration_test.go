package integration

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phako/tn/internal/encoder"
	"github.com/phako/tn/internal/histogram"
	"github.com/phako/tn/internal/sampler"
	"github.com/phako/tn/internal/state"
	"github.com/phako/tn/internal/video"
)

// readPPM returns the dimensions and pixels of a binary PPM file
func readPPM(t *testing.T, path string) (int, int, []byte) {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	header := make([]string, 3)
	for i := range header {
		if header[i], err = r.ReadString('\n'); err != nil {
			t.Fatalf("Failed to read PPM header of %s: %v", path, err)
		}
	}
	if header[0] != "P6\n" || header[2] != "255\n" {
		t.Fatalf("Unexpected PPM header: %q", header)
	}
	var width, height int
	if _, err := fmt.Sscanf(header[1], "%d %d", &width, &height); err != nil {
		t.Fatalf("Failed to parse PPM size: %v", err)
	}

	pixels, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Failed to read pixels: %v", err)
	}
	return width, height, pixels
}

// TestSampling_SyntheticStreamWithCatalog runs the sampler end to end with
// the real encoder, output layout and run catalog
func TestSampling_SyntheticStreamWithCatalog(t *testing.T) {
	env := SetupTestEnvironment(t)
	defer env.Cleanup()

	backend := video.NewSyntheticBackend(40, 0, 10, 20, 30)
	backend.Frames[0].Black = true

	cfg := sampler.DefaultConfig()
	cfg.Count = 4
	cfg.Offset = 1
	cfg.SkipBlack = true
	cfg.WriteHistogram = true

	s := sampler.New(cfg, backend, env.Encoder, env.Layout, env.Logger,
		sampler.WithRenderer(histogram.NewPNGRenderer()),
		sampler.WithObserver(env.Catalog),
	)

	ctx, cancel := ContextWithTimeout(10 * time.Second)
	defer cancel()

	result, err := s.Run(ctx, "synthetic.mpg")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for i := 0; i < 4; i++ {
		width, height, pixels := readPPM(t, env.Layout.FramePath(i+1, "ppm"))
		if width != 2 || height != 2 {
			t.Errorf("Frame %d: expected 2x2, got %dx%d", i, width, height)
		}
		if len(pixels) != 12 {
			t.Fatalf("Frame %d: expected 12 bytes of pixels, got %d", i, len(pixels))
		}
		if pixels[0] != 200 {
			t.Errorf("Frame %d: expected a non-black frame, got level %d", i, pixels[0])
		}

		if _, err := os.Stat(env.Layout.HistogramDataPath(i)); err != nil {
			t.Errorf("Histogram data %d missing: %v", i, err)
		}
		if _, err := os.Stat(env.Layout.HistogramImagePath(i)); err != nil {
			t.Errorf("Histogram image %d missing: %v", i, err)
		}
	}

	run, err := env.Catalog.GetRun(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run == nil {
		t.Fatal("Run should be catalogued")
	}
	if run.Status != state.StatusCompleted {
		t.Errorf("Expected status '%s', got '%s'", state.StatusCompleted, run.Status)
	}
	if run.FramesWritten != 4 {
		t.Errorf("Expected 4 frames written, got %d", run.FramesWritten)
	}
	if run.Backend != "synthetic" || run.Step != 10 {
		t.Errorf("Unexpected run metadata: %+v", run)
	}

	frames, err := env.Catalog.ListFrames(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("ListFrames failed: %v", err)
	}
	if len(frames) != 4 {
		t.Fatalf("Expected 4 catalogued frames, got %d", len(frames))
	}
	// the black first frame was skipped
	if frames[0].PTS != 10 {
		t.Errorf("Expected first sample at pts 10, got %d", frames[0].PTS)
	}
	for i, f := range frames {
		if f.Path != result.Frames[i] {
			t.Errorf("Frame %d: expected path '%s', got '%s'", i, result.Frames[i], f.Path)
		}
		if f.HistogramPath != env.Layout.HistogramDataPath(i) {
			t.Errorf("Frame %d: unexpected histogram path '%s'", i, f.HistogramPath)
		}
	}
}

// TestSampling_FailedRunIsCatalogued checks that a failing run keeps its
// partial output and is recorded as failed
func TestSampling_FailedRunIsCatalogued(t *testing.T) {
	env := SetupTestEnvironment(t)
	defer env.Cleanup()

	// the stream ends long before its advertised duration
	backend := video.NewSyntheticBackend(400, 0, 10, 20)

	cfg := sampler.DefaultConfig()
	cfg.Count = 4

	s := sampler.New(cfg, backend, env.Encoder, env.Layout, env.Logger, sampler.WithObserver(env.Catalog))

	result, err := s.Run(context.Background(), "truncated.mpg")
	if sampler.KindOf(err) != sampler.KindSeek {
		t.Fatalf("Expected a seek failure, got %v", err)
	}

	if _, err := os.Stat(env.Layout.FramePath(0, "ppm")); err != nil {
		t.Errorf("Frame written before the failure should remain: %v", err)
	}

	run, err := env.Catalog.GetRun(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != state.StatusFailed {
		t.Errorf("Expected status '%s', got '%s'", state.StatusFailed, run.Status)
	}
	if run.FramesWritten != 1 || run.Error == "" {
		t.Errorf("Unexpected failed run state: %+v", run)
	}
}

// TestSampling_FFmpegClip samples a generated clip through the ffmpeg backend
func TestSampling_FFmpegClip(t *testing.T) {
	path := GenerateClip(t, "clip.mkv", "-c:v", "ffv1")

	env := SetupTestEnvironment(t)
	defer env.Cleanup()

	backend, err := video.NewFFmpegBackend(video.BackendOptions{Logger: env.Logger})
	if err != nil {
		t.Skipf("FFmpeg not available, skipping test: %v", err)
	}

	cfg := sampler.DefaultConfig()
	cfg.Count = 4
	cfg.Format = encoder.JPEG
	cfg.SkipBlack = true

	s := sampler.New(cfg, backend, env.Encoder, env.Layout, env.Logger, sampler.WithObserver(env.Catalog))

	ctx, cancel := ContextWithTimeout(60 * time.Second)
	defer cancel()

	result, err := s.Run(ctx, path)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Frames) != 4 {
		t.Fatalf("Expected 4 frames, got %d", len(result.Frames))
	}

	frames, err := env.Catalog.ListFrames(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("ListFrames failed: %v", err)
	}
	for i, f := range frames {
		if i > 0 && f.PTS < frames[i-1].PTS {
			t.Errorf("Sample %d: pts %d before %d", i, f.PTS, frames[i-1].PTS)
		}
		if _, err := os.Stat(f.Path); err != nil {
			t.Errorf("Sample %d: %v", i, err)
		}
	}
}

// TestSampling_MPEGClip samples a generated MPEG-1 clip with the pure Go
// backend
func TestSampling_MPEGClip(t *testing.T) {
	path := GenerateClip(t, "clip.mpg", "-c:v", "mpeg1video", "-f", "mpeg")

	env := SetupTestEnvironment(t)
	defer env.Cleanup()

	cfg := sampler.DefaultConfig()
	cfg.Count = 3
	cfg.SlowSeek = true

	s := sampler.New(cfg, video.NewMPEGBackend(env.Logger), env.Encoder, env.Layout, env.Logger)

	ctx, cancel := ContextWithTimeout(60 * time.Second)
	defer cancel()

	result, err := s.Run(ctx, path)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Frames) != 3 {
		t.Fatalf("Expected 3 frames, got %d", len(result.Frames))
	}
	for _, p := range result.Frames {
		width, height, _ := readPPM(t, p)
		if width != 64 || height != 48 {
			t.Errorf("Expected 64x48, got %dx%d", width, height)
		}
	}
}

// TestSampling_MPEGFixture samples the checked-in MPEG-1 file with fast
// seeking through the pure Go backend
func TestSampling_MPEGFixture(t *testing.T) {
	env := SetupTestEnvironment(t)
	defer env.Cleanup()

	cfg := sampler.DefaultConfig()
	cfg.Count = 4

	s := sampler.New(cfg, video.NewMPEGBackend(env.Logger), env.Encoder, env.Layout, env.Logger,
		sampler.WithObserver(env.Catalog))

	ctx, cancel := ContextWithTimeout(60 * time.Second)
	defer cancel()

	result, err := s.Run(ctx, filepath.Join("..", "internal", "video", "testdata", "sample.mpg"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Frames) != 4 {
		t.Fatalf("Expected 4 frames, got %d", len(result.Frames))
	}
	if len(result.SeekTargets) != 3 {
		t.Fatalf("Expected 3 seeks, got %v", result.SeekTargets)
	}

	frames, err := env.Catalog.ListFrames(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("ListFrames failed: %v", err)
	}
	if len(frames) != 4 {
		t.Fatalf("Expected 4 catalogued frames, got %d", len(frames))
	}
	for i, f := range frames[1:] {
		target := result.SeekTargets[i]
		// one 30 fps picture is 3000 ticks
		if f.PTS < target-1 || f.PTS > target+3000 {
			t.Errorf("Sample %d: pts %d not at target %d", i+1, f.PTS, target)
		}
	}

	for _, p := range result.Frames {
		width, height, _ := readPPM(t, p)
		if width != 160 || height != 120 {
			t.Errorf("Expected 160x120, got %dx%d", width, height)
		}
	}
}
