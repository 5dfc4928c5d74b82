package sampler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/phako/tn/internal/encoder"
	"github.com/phako/tn/internal/histogram"
	"github.com/phako/tn/internal/logger"
	"github.com/phako/tn/internal/storage"
	"github.com/phako/tn/internal/video"
)

func setupTestLayout(t *testing.T) *storage.Layout {
	layout, err := storage.NewLayout(storage.LayoutConfig{Dir: filepath.Join(t.TempDir(), "out")}, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("Failed to create layout: %v", err)
	}
	return layout
}

func setupTestSampler(t *testing.T, cfg Config, backend video.Backend, opts ...Option) (*Sampler, *storage.Layout) {
	layout := setupTestLayout(t)
	return New(cfg, backend, encoder.New(encoder.WithJPEG(encoder.DefaultJPEGQuality)), layout, logger.NewNopLogger(), opts...), layout
}

func testConfig(count int) Config {
	cfg := DefaultConfig()
	cfg.Count = count
	return cfg
}

// failingEncoder accepts every format and fails every write
type failingEncoder struct{}

func (failingEncoder) Encode(path string, rgb []byte, width, height int, format encoder.Format) error {
	return errors.New("disk full")
}

func (failingEncoder) Supports(encoder.Format) bool { return true }

// recordingRenderer counts renders without touching the disk
type recordingRenderer struct {
	paths []string
}

func (r *recordingRenderer) Render(h *histogram.Histogram, path string) error {
	r.paths = append(r.paths, path)
	return nil
}

// recordingObserver keeps every event it receives
type recordingObserver struct {
	mu       sync.Mutex
	started  []RunInfo
	frames   []FrameRecord
	finished []RunSummary
	err      error
}

func (o *recordingObserver) RunStarted(ctx context.Context, run RunInfo) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, run)
	return o.err
}

func (o *recordingObserver) FrameEmitted(ctx context.Context, frame FrameRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frames = append(o.frames, frame)
	return o.err
}

func (o *recordingObserver) RunFinished(ctx context.Context, summary RunSummary) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, summary)
	return o.err
}
