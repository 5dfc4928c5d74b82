// Package video defines the decoder backend contract used by the sampler and
// provides two backends: an ffmpeg child process and a pure Go MPEG-1 decoder.
package video

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEndOfStream is returned by DecodeNext when no further frames exist
	ErrEndOfStream = errors.New("end of stream")
	// ErrNoVideoStream is returned by Open when the input has no video stream
	ErrNoVideoStream = errors.New("no video stream found")
)

// Rational is a time base such as 1/90000
type Rational struct {
	Num int64
	Den int64
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Seconds converts a tick count in this time base to seconds
func (r Rational) Seconds(ticks int64) float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(ticks) * float64(r.Num) / float64(r.Den)
}

// Ticks converts seconds to a tick count in this time base
func (r Rational) Ticks(seconds float64) int64 {
	if r.Num == 0 {
		return 0
	}
	return int64(seconds * float64(r.Den) / float64(r.Num))
}

// StreamInfo describes the opened video stream
type StreamInfo struct {
	Duration int64    // Stream duration in TimeBase ticks
	TimeBase Rational // Unit of Duration and frame PTS
	Width    int
	Height   int
	Codec    string
}

// Frame is a decoded RGB24 picture. RGB holds Width*Height*3 bytes in
// row-major order and belongs to the caller once returned.
type Frame struct {
	PTS    int64
	Width  int
	Height int
	RGB    []byte
}

// Backend opens media files for decoding
type Backend interface {
	Name() string
	Open(ctx context.Context, path string) (Session, error)
}

// Session is a single open input. It is not safe for concurrent use.
type Session interface {
	Info() StreamInfo
	// DecodeNext decodes the next frame moving forward only. It returns
	// ErrEndOfStream once the input is exhausted.
	DecodeNext(ctx context.Context) (*Frame, error)
	// Seek repositions the decoder near pts. With backward set it lands on
	// the nearest random-access point at or before pts.
	Seek(ctx context.Context, pts int64, backward bool) error
	// SetHurry asks the decoder to trade fidelity for speed.
	SetHurry(on bool)
	Close() error
}

// NewBackend returns the backend registered under name
func NewBackend(name string, opts BackendOptions) (Backend, error) {
	switch name {
	case "", "ffmpeg":
		return NewFFmpegBackend(opts)
	case "mpeg":
		return NewMPEGBackend(opts.Logger), nil
	default:
		return nil, fmt.Errorf("unknown decoder backend %q (must be: ffmpeg or mpeg)", name)
	}
}
