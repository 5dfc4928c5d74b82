package sampler

import (
	"context"
	"time"

	"github.com/phako/tn/internal/video"
)

// Observer receives progress events of a sampling run. Errors returned by an
// observer are logged and never abort the run.
type Observer interface {
	RunStarted(ctx context.Context, run RunInfo) error
	FrameEmitted(ctx context.Context, frame FrameRecord) error
	RunFinished(ctx context.Context, summary RunSummary) error
}

// RunInfo describes a run once its input is open
type RunInfo struct {
	RunID     string
	Input     string
	Backend   string
	Stream    video.StreamInfo
	Count     int
	Offset    int
	Format    string
	Step      int64
	StartedAt time.Time
}

// FrameRecord describes one emitted sample
type FrameRecord struct {
	RunID         string
	Sample        int    // Sample index i in [0, Count)
	Index         int    // File index, Sample + Offset
	PTS           int64  // Timestamp of the emitted frame
	Path          string // Written image
	HistogramPath string // Written histogram data, empty when disabled
}

// RunSummary is the outcome of a run
type RunSummary struct {
	RunID      string
	Frames     int
	Decoded    int
	Err        error
	FinishedAt time.Time
}
