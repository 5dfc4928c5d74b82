package integration

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/phako/tn/internal/config"
	"github.com/phako/tn/internal/encoder"
	"github.com/phako/tn/internal/logger"
	"github.com/phako/tn/internal/state"
	"github.com/phako/tn/internal/storage"
)

// TestEnvironment provides a test environment for integration tests
type TestEnvironment struct {
	TempDir     string
	Config      *config.Config
	Layout      *storage.Layout
	Catalog     *state.Catalog
	Encoder     *encoder.FileEncoder
	Logger      *logger.Logger
	CleanupFunc func()
}

// SetupTestEnvironment creates a test environment
func SetupTestEnvironment(t *testing.T) *TestEnvironment {
	tmpDir := t.TempDir()

	cfg := config.Default()
	cfg.Output.Dir = filepath.Join(tmpDir, "out")
	cfg.Catalog.Enabled = true
	cfg.Catalog.Path = filepath.Join(tmpDir, "db", "tn.db")

	log := logger.NewNopLogger()

	layout, err := storage.NewLayout(storage.LayoutConfig{Dir: cfg.Output.Dir}, log)
	if err != nil {
		t.Fatalf("Failed to create layout: %v", err)
	}

	catalog, err := state.NewCatalog(cfg.Catalog.Path, log)
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}

	cleanup := func() {
		catalog.Close()
	}

	return &TestEnvironment{
		TempDir:     tmpDir,
		Config:      cfg,
		Layout:      layout,
		Catalog:     catalog,
		Encoder:     encoder.New(encoder.WithJPEG(cfg.Output.JPEGQuality)),
		Logger:      log,
		CleanupFunc: cleanup,
	}
}

// Cleanup cleans up the test environment
func (e *TestEnvironment) Cleanup() {
	if e.CleanupFunc != nil {
		e.CleanupFunc()
	}
}

// ContextWithTimeout creates a context with timeout for tests
func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// GenerateClip renders a clip with one black second followed by three
// seconds of test pattern. The test is skipped when ffmpeg is unavailable.
func GenerateClip(t *testing.T, name string, extra ...string) string {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("FFmpeg not available, skipping test")
	}

	path := filepath.Join(t.TempDir(), name)
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "lavfi", "-i", "color=c=black:s=64x48:r=25:d=1",
		"-f", "lavfi", "-i", "testsrc=s=64x48:r=25:d=3",
		"-filter_complex", "[0:v][1:v]concat=n=2:v=1:a=0",
	}
	args = append(args, extra...)
	args = append(args, path)

	if out, err := exec.Command(ffmpegPath, args...).CombinedOutput(); err != nil {
		t.Skipf("Could not generate test clip: %v: %s", err, out)
	}
	return path
}
