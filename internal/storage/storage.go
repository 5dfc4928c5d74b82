package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/phako/tn/internal/logger"
)

// Layout names and places the files produced by a sampling run
type Layout struct {
	logger      *logger.Logger
	dir         string
	diskMonitor *DiskMonitor
}

// LayoutConfig contains output layout configuration
type LayoutConfig struct {
	Dir            string  // Output directory, created if missing
	MinFreePercent float64 // Warn when free space is below this percentage (0 disables)
}

// NewLayout creates the output directory and returns a layout for it
func NewLayout(config LayoutConfig, log *logger.Logger) (*Layout, error) {
	dir := config.Dir
	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	layout := &Layout{
		logger: log,
		dir:    dir,
	}

	if config.MinFreePercent > 0 {
		layout.diskMonitor = NewDiskMonitor(dir, 100-config.MinFreePercent, log)
	}

	return layout, nil
}

// Dir returns the output directory
func (l *Layout) Dir() string {
	return l.dir
}

// FramePath returns the path of frame image number index
func (l *Layout) FramePath(index int, suffix string) string {
	return filepath.Join(l.dir, fmt.Sprintf("frame_%05d.%s", index, suffix))
}

// HistogramDataPath returns the path of the text histogram for a sample
func (l *Layout) HistogramDataPath(sample int) string {
	return filepath.Join(l.dir, fmt.Sprintf("histogram_%05d.dat", sample))
}

// HistogramImagePath returns the path of the rendered histogram for a sample
func (l *Layout) HistogramImagePath(sample int) string {
	return filepath.Join(l.dir, fmt.Sprintf("histogram_%05d.png", sample))
}

// CheckSpace logs a warning when the output filesystem is nearly full.
// It never fails the run; it returns whether space is sufficient.
func (l *Layout) CheckSpace(ctx context.Context) bool {
	if l.diskMonitor == nil {
		return true
	}

	usage, err := l.diskMonitor.GetUsage(ctx)
	if err != nil {
		l.logger.Warn("Failed to check free disk space", "dir", l.dir, "error", err)
		return true
	}

	if usage.UsagePercent >= l.diskMonitor.MaxUsagePercent() {
		l.logger.Warn("Output filesystem is nearly full",
			"dir", l.dir,
			"usage_percent", usage.UsagePercent,
			"available_bytes", usage.AvailableBytes,
		)
		return false
	}
	return true
}
