package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"syscall"

	"github.com/phako/tn/internal/logger"
)

// DiskMonitor reports disk usage of the filesystem holding a path
type DiskMonitor struct {
	path            string
	maxUsagePercent float64
	logger          *logger.Logger
}

// DiskUsage contains disk usage information
type DiskUsage struct {
	TotalBytes     int64
	UsedBytes      int64
	AvailableBytes int64
	UsagePercent   float64
}

// NewDiskMonitor creates a new disk monitor
func NewDiskMonitor(path string, maxUsagePercent float64, log *logger.Logger) *DiskMonitor {
	return &DiskMonitor{
		path:            path,
		maxUsagePercent: maxUsagePercent,
		logger:          log,
	}
}

// MaxUsagePercent returns the configured usage ceiling
func (d *DiskMonitor) MaxUsagePercent() float64 {
	return d.maxUsagePercent
}

// GetUsage returns current disk usage
func (d *DiskMonitor) GetUsage(ctx context.Context) (*DiskUsage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(absPath, &stat); err != nil {
		return nil, fmt.Errorf("failed to stat filesystem: %w", err)
	}

	totalBytes := int64(stat.Blocks) * int64(stat.Bsize)
	availableBytes := int64(stat.Bavail) * int64(stat.Bsize)
	usedBytes := totalBytes - availableBytes

	var usagePercent float64
	if totalBytes > 0 {
		usagePercent = float64(usedBytes) / float64(totalBytes) * 100.0
	}

	return &DiskUsage{
		TotalBytes:     totalBytes,
		UsedBytes:      usedBytes,
		AvailableBytes: availableBytes,
		UsagePercent:   usagePercent,
	}, nil
}
