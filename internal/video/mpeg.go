package video

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"time"

	"github.com/gen2brain/mpeg"

	"github.com/phako/tn/internal/logger"
)

// mpegTimeBase is the MPEG system clock
var mpegTimeBase = Rational{Num: 1, Den: 90000}

// maxEmptyDecodes bounds DecodeVideo calls that return no picture before the
// stream is considered broken
const maxEmptyDecodes = 1024

// MPEGBackend decodes MPEG-1 program streams in pure Go
type MPEGBackend struct {
	logger *logger.Logger
}

// NewMPEGBackend creates the pure Go MPEG-1 backend
func NewMPEGBackend(log *logger.Logger) *MPEGBackend {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &MPEGBackend{logger: log}
}

// Name returns the backend name
func (b *MPEGBackend) Name() string {
	return "mpeg"
}

// Open opens an MPEG-1 file
func (b *MPEGBackend) Open(ctx context.Context, path string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}

	mpg, err := mpeg.New(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read mpeg headers: %w", err)
	}
	if mpg.Width() <= 0 || mpg.Height() <= 0 {
		file.Close()
		return nil, ErrNoVideoStream
	}

	info := StreamInfo{
		Duration: mpegTimeBase.Ticks(mpg.Duration().Seconds()),
		TimeBase: mpegTimeBase,
		Width:    mpg.Width(),
		Height:   mpg.Height(),
		Codec:    "mpeg1video",
	}
	mpg.SetAudioEnabled(false)
	b.logger.Debug("Opened mpeg input", "path", path, "framerate", mpg.Framerate(), "duration", mpg.Duration())

	return &mpegSession{file: file, mpg: mpg, info: info, rate: mpg.Framerate(), logger: b.logger}, nil
}

type mpegSession struct {
	file   *os.File
	mpg    *mpeg.MPEG
	info   StreamInfo
	rate   float64
	logger *logger.Logger
	hurry  bool

	// pts clock: origin is the pts of the last seek, frames counts pictures
	// returned since then. The decoder's own clock restarts near zero after
	// a seek.
	origin  int64
	frames  int64
	pending *Frame
}

func (s *mpegSession) Info() StreamInfo {
	return s.info
}

func (s *mpegSession) DecodeNext(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f := s.pending; f != nil {
		s.pending = nil
		return f, nil
	}

	for empty := 0; empty < maxEmptyDecodes; empty++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if frame := s.mpg.DecodeVideo(); frame != nil {
			return s.convert(frame), nil
		}
		if s.mpg.HasEnded() {
			return nil, ErrEndOfStream
		}
	}
	return nil, fmt.Errorf("decoder produced no picture after %d attempts", maxEmptyDecodes)
}

// convert copies a decoded picture out of the decoder's reused buffers and
// stamps it from the session clock
func (s *mpegSession) convert(frame *mpeg.Frame) *Frame {
	pts := mpegTimeBase.Ticks(frame.Time)
	if s.rate > 0 {
		pts = s.origin + int64(math.Round(float64(s.frames)*float64(mpegTimeBase.Den)/(s.rate*float64(mpegTimeBase.Num))))
	}
	s.frames++

	img := frame.YCbCr()
	return &Frame{
		PTS:    pts,
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
		RGB:    ycbcrToRGB(img),
	}
}

// ycbcrToRGB converts a decoded picture into a fresh RGB24 buffer
func ycbcrToRGB(img *image.YCbCr) []byte {
	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			yi := img.YOffset(x, y)
			ci := img.COffset(x, y)
			r, g, bl := color.YCbCrToRGB(img.Y[yi], img.Cb[ci], img.Cr[ci])
			out = append(out, r, g, bl)
		}
	}
	return out
}

// Seek jumps to the intra frame at or before pts. The decoder cannot seek
// forward-only, so backward is implied. The picture found by the seek is
// returned by the next DecodeNext.
func (s *mpegSession) Seek(ctx context.Context, pts int64, backward bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := time.Duration(mpegTimeBase.Seconds(pts) * float64(time.Second))
	frame := s.mpg.SeekFrame(target, false)
	if frame == nil {
		return fmt.Errorf("seek to %v failed", target)
	}

	s.origin = mpegTimeBase.Ticks(frame.Time)
	s.frames = 0
	s.pending = s.convert(frame)

	s.logger.Debug("Seek requested", "pts", pts, "target", target, "landed", s.pending.PTS, "backward", backward)
	return nil
}

// SetHurry records the hint; the decoder has no reduced-fidelity mode.
func (s *mpegSession) SetHurry(on bool) {
	s.hurry = on
}

func (s *mpegSession) Close() error {
	return s.file.Close()
}
