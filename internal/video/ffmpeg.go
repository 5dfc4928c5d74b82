package video

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/phako/tn/internal/logger"
)

// BackendOptions configures backend construction
type BackendOptions struct {
	Logger     *logger.Logger
	FFmpegPath string // Explicit ffmpeg binary; empty means search common locations
}

// FFmpegWrapper locates the ffmpeg binary and builds commands for it
type FFmpegWrapper struct {
	logger     *logger.Logger
	ffmpegPath string
}

// NewFFmpegWrapper creates a new FFmpeg wrapper. It fails when no working
// ffmpeg binary can be found.
func NewFFmpegWrapper(path string, log *logger.Logger) (*FFmpegWrapper, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	wrapper := &FFmpegWrapper{logger: log}

	ffmpegPath, err := wrapper.detectFFmpeg(path)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	wrapper.ffmpegPath = ffmpegPath

	log.Debug("FFmpeg wrapper initialized", "path", wrapper.ffmpegPath)
	return wrapper, nil
}

// detectFFmpeg finds a runnable ffmpeg executable
func (f *FFmpegWrapper) detectFFmpeg(preferred string) (string, error) {
	paths := []string{"ffmpeg", "/usr/bin/ffmpeg", "/usr/local/bin/ffmpeg"}
	if preferred != "" {
		paths = []string{preferred}
	}

	for _, path := range paths {
		cmd := exec.Command(path, "-version")
		if err := cmd.Run(); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no runnable ffmpeg in %s", strings.Join(paths, ", "))
}

// Path returns the ffmpeg binary in use
func (f *FFmpegWrapper) Path() string {
	return f.ffmpegPath
}

// BuildCommand builds an ffmpeg command with the given arguments
func (f *FFmpegWrapper) BuildCommand(ctx context.Context, args []string) *exec.Cmd {
	return exec.CommandContext(ctx, f.ffmpegPath, args...)
}

// GetVersion returns the first line of `ffmpeg -version`
func (f *FFmpegWrapper) GetVersion() (string, error) {
	output, err := exec.Command(f.ffmpegPath, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		return strings.TrimSpace(lines[0]), nil
	}
	return "unknown", nil
}
