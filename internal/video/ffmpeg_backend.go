package video

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/phako/tn/internal/logger"
)

func init() {
	ffmpeg.LogCompiledCommand = false
}

// FFmpegBackend decodes through an ffmpeg child process that writes raw
// RGB24 frames to a pipe
type FFmpegBackend struct {
	ffmpeg *FFmpegWrapper
	logger *logger.Logger
}

// NewFFmpegBackend creates a backend around the ffmpeg binary
func NewFFmpegBackend(opts BackendOptions) (*FFmpegBackend, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	wrapper, err := NewFFmpegWrapper(opts.FFmpegPath, log)
	if err != nil {
		return nil, err
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}

	return &FFmpegBackend{ffmpeg: wrapper, logger: log}, nil
}

// Name returns the backend name
func (b *FFmpegBackend) Name() string {
	return "ffmpeg"
}

// probeOutput is the subset of `ffprobe -of json` output we read
type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	TimeBase   string `json:"time_base"`
	RFrameRate string `json:"r_frame_rate"`
	DurationTS int64  `json:"duration_ts"`
	Duration   string `json:"duration"`
}

// Open probes the file and prepares a decode session. The decoder process
// is started lazily on the first DecodeNext.
func (b *FFmpegBackend) Open(ctx context.Context, path string) (Session, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cannot access input: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := ffmpeg.Probe(path, ffmpeg.KwArgs{"select_streams": "v:0"})
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	info, frameTicks, err := parseProbe(raw)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("Probed input", "path", path, "codec", info.Codec, "time_base", info.TimeBase.String(),
		"duration", info.Duration, "frame_ticks", frameTicks)

	return &ffmpegSession{
		ffmpeg:     b.ffmpeg,
		logger:     b.logger,
		path:       path,
		info:       info,
		frameTicks: frameTicks,
		frameSize:  info.Width * info.Height * 3,
	}, nil
}

// parseProbe extracts stream info and the duration of one frame in ticks
func parseProbe(raw string) (StreamInfo, float64, error) {
	var out probeOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return StreamInfo{}, 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var stream *probeStream
	for i := range out.Streams {
		if out.Streams[i].CodecType == "video" {
			stream = &out.Streams[i]
			break
		}
	}
	if stream == nil {
		return StreamInfo{}, 0, ErrNoVideoStream
	}
	if stream.Width <= 0 || stream.Height <= 0 {
		return StreamInfo{}, 0, fmt.Errorf("invalid video dimensions %dx%d", stream.Width, stream.Height)
	}

	tb, err := parseRational(stream.TimeBase)
	if err != nil || tb.Num <= 0 || tb.Den <= 0 {
		tb = Rational{Num: 1, Den: 90000}
	}

	info := StreamInfo{
		TimeBase: tb,
		Width:    stream.Width,
		Height:   stream.Height,
		Codec:    stream.CodecName,
		Duration: stream.DurationTS,
	}
	if info.Duration <= 0 {
		for _, d := range []string{stream.Duration, out.Format.Duration} {
			if secs, err := strconv.ParseFloat(d, 64); err == nil && secs > 0 {
				info.Duration = tb.Ticks(secs)
				break
			}
		}
	}

	// one frame at 25 fps when the rate is unknown
	frameTicks := float64(tb.Den) / float64(tb.Num) / 25
	if fr, err := parseRational(stream.RFrameRate); err == nil && fr.Num > 0 && fr.Den > 0 {
		frameTicks = float64(tb.Den*fr.Den) / float64(tb.Num*fr.Num)
	}

	return info, frameTicks, nil
}

func parseRational(s string) (Rational, error) {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return Rational{}, fmt.Errorf("invalid rational %q", s)
	}
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	d, err := strconv.ParseInt(den, 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	return Rational{Num: n, Den: d}, nil
}

// ffmpegSession runs one ffmpeg process per contiguous decode run. Seeking
// replaces the process with one that starts at the new position.
type ffmpegSession struct {
	ffmpeg     *FFmpegWrapper
	logger     *logger.Logger
	path       string
	info       StreamInfo
	frameTicks float64
	frameSize  int

	cmd     *exec.Cmd
	cancel  context.CancelFunc
	stdout  *bufio.Reader
	stderr  *bytes.Buffer
	origin  int64 // pts the current process started at
	decoded int64 // frames read from the current process
	hurry   bool
	ended   bool
}

func (s *ffmpegSession) Info() StreamInfo {
	return s.info
}

// decodeArgs builds the ffmpeg arguments for a process starting at origin
func (s *ffmpegSession) decodeArgs() []string {
	input := ffmpeg.KwArgs{"noautorotate": ""}
	if s.origin > 0 {
		input["ss"] = strconv.FormatFloat(s.info.TimeBase.Seconds(s.origin), 'f', 6, 64)
	}
	if s.hurry {
		input["skip_loop_filter"] = "all"
		input["flags2"] = "fast"
	}

	stream := ffmpeg.Input(s.path, input).Output("pipe:", ffmpeg.KwArgs{
		"map":     "0:v:0",
		"format":  "rawvideo",
		"pix_fmt": "rgb24",
		"vsync":   "passthrough",
		"an":      "",
		"sn":      "",
	})
	return append([]string{"-hide_banner", "-nostdin", "-loglevel", "error"}, stream.GetArgs()...)
}

func (s *ffmpegSession) start() error {
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := s.ffmpeg.BuildCommand(procCtx, s.decodeArgs())

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	s.cmd = cmd
	s.cancel = cancel
	s.stdout = bufio.NewReaderSize(stdout, s.frameSize)
	s.stderr = stderr
	s.decoded = 0
	s.ended = false

	s.logger.Debug("Started ffmpeg decoder", "origin", s.origin, "hurry", s.hurry)
	return nil
}

// stop kills and reaps the running process, if any
func (s *ffmpegSession) stop() {
	if s.cmd == nil {
		return
	}
	s.cancel()
	_ = s.cmd.Wait()
	s.cmd = nil
	s.cancel = nil
	s.stdout = nil
}

func (s *ffmpegSession) DecodeNext(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.ended {
		return nil, ErrEndOfStream
	}
	if s.cmd == nil {
		if err := s.start(); err != nil {
			return nil, err
		}
	}

	buf := make([]byte, s.frameSize)
	if _, err := io.ReadFull(s.stdout, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, s.finish()
		}
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}

	pts := s.origin + int64(math.Round(float64(s.decoded)*s.frameTicks))
	s.decoded++

	return &Frame{PTS: pts, Width: s.info.Width, Height: s.info.Height, RGB: buf}, nil
}

// finish reaps a process whose output ended. A clean exit is end of stream.
func (s *ffmpegSession) finish() error {
	err := s.cmd.Wait()
	s.cancel()
	s.cmd = nil
	s.stdout = nil
	s.ended = true

	if err != nil && s.decoded == 0 {
		return fmt.Errorf("ffmpeg decode failed: %w: %s", err, strings.TrimSpace(s.stderr.String()))
	}
	return ErrEndOfStream
}

func (s *ffmpegSession) Seek(ctx context.Context, pts int64, backward bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if pts < 0 {
		return fmt.Errorf("invalid seek position %d", pts)
	}

	s.stop()
	s.origin = pts
	s.ended = false

	s.logger.Debug("Seek requested", "pts", pts, "seconds", s.info.TimeBase.Seconds(pts), "backward", backward)
	return nil
}

func (s *ffmpegSession) SetHurry(on bool) {
	s.hurry = on
}

func (s *ffmpegSession) Close() error {
	s.stop()
	return nil
}
