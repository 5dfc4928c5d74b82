package video

import (
	"context"
	"errors"
	"sync"
)

// SyntheticFrame is one picture of an in-memory stream. Black frames are all
// zero; other frames are filled with Level.
type SyntheticFrame struct {
	PTS   int64
	Black bool
	Level byte
}

// SyntheticBackend serves an in-memory stream with exact seeking. It records
// every request so callers can inspect how a stream was traversed.
type SyntheticBackend struct {
	Frames   []SyntheticFrame
	Duration int64
	Width    int
	Height   int

	// OpenErr, SeekErr and DecodeErr make the matching call fail
	OpenErr   error
	SeekErr   error
	DecodeErr error
	// OnDecode, when set, runs after every successful decode with the
	// running decode count
	OnDecode func(decoded int)

	mu      sync.Mutex
	opened  int
	session *SyntheticSession
}

// NewSyntheticBackend creates a backend over frames with the given pts values
func NewSyntheticBackend(duration int64, pts ...int64) *SyntheticBackend {
	frames := make([]SyntheticFrame, len(pts))
	for i, p := range pts {
		frames[i] = SyntheticFrame{PTS: p, Level: 200}
	}
	return &SyntheticBackend{Frames: frames, Duration: duration, Width: 2, Height: 2}
}

// Name returns the backend name
func (b *SyntheticBackend) Name() string {
	return "synthetic"
}

// Open returns a session positioned before the first frame
func (b *SyntheticBackend) Open(ctx context.Context, path string) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.opened++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}

	b.session = &SyntheticSession{backend: b}
	return b.session, nil
}

// Opened returns how many times Open was called
func (b *SyntheticBackend) Opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened
}

// LastSession returns the most recently opened session
func (b *SyntheticBackend) LastSession() *SyntheticSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// SyntheticSession is an open SyntheticBackend stream
type SyntheticSession struct {
	backend *SyntheticBackend

	pos     int
	hurry   bool
	closed  bool
	Seeks   []int64 // Requested seek targets
	Hurry   []bool  // SetHurry arguments, in call order
	Decoded []int64 // PTS of every decoded frame
}

// Info describes the stream
func (s *SyntheticSession) Info() StreamInfo {
	return StreamInfo{
		Duration: s.backend.Duration,
		TimeBase: Rational{Num: 1, Den: 1},
		Width:    s.backend.Width,
		Height:   s.backend.Height,
		Codec:    "rawvideo",
	}
}

// DecodeNext returns the next frame in storage order
func (s *SyntheticSession) DecodeNext(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, errors.New("session closed")
	}
	if s.backend.DecodeErr != nil {
		return nil, s.backend.DecodeErr
	}
	if s.pos >= len(s.backend.Frames) {
		return nil, ErrEndOfStream
	}

	src := s.backend.Frames[s.pos]
	s.pos++

	rgb := make([]byte, s.backend.Width*s.backend.Height*3)
	if !src.Black {
		for i := range rgb {
			rgb[i] = src.Level
		}
	}
	s.Decoded = append(s.Decoded, src.PTS)

	if s.backend.OnDecode != nil {
		s.backend.OnDecode(len(s.Decoded))
	}

	return &Frame{PTS: src.PTS, Width: s.backend.Width, Height: s.backend.Height, RGB: rgb}, nil
}

// Seek positions the stream on the last frame with pts <= target. Every
// frame is a random-access point.
func (s *SyntheticSession) Seek(ctx context.Context, pts int64, backward bool) error {
	s.Seeks = append(s.Seeks, pts)
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.backend.SeekErr != nil {
		return s.backend.SeekErr
	}

	pos := 0
	for i, f := range s.backend.Frames {
		if f.PTS <= pts {
			pos = i
		}
	}
	s.pos = pos
	return nil
}

// SetHurry records the hint
func (s *SyntheticSession) SetHurry(on bool) {
	s.hurry = on
	s.Hurry = append(s.Hurry, on)
}

// Hurried reports whether the hurry hint is currently set
func (s *SyntheticSession) Hurried() bool {
	return s.hurry
}

// Closed reports whether Close was called
func (s *SyntheticSession) Closed() bool {
	return s.closed
}

// Close ends the session
func (s *SyntheticSession) Close() error {
	s.closed = true
	return nil
}
