// Package sampler implements the frame-sampling state machine: it walks a
// decoder session through N evenly spaced timestamps, optionally skips
// near-black frames and writes one still image per sample.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/phako/tn/internal/encoder"
	"github.com/phako/tn/internal/histogram"
	"github.com/phako/tn/internal/logger"
	"github.com/phako/tn/internal/storage"
	"github.com/phako/tn/internal/video"
)

// State is the lifecycle state of a Sampler
type State int

const (
	StateIdle State = iota
	StateOpened
	StateSampling
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpened:
		return "opened"
	case StateSampling:
		return "sampling"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result reports what a run produced. On failure it holds the partial
// progress made before the error.
type Result struct {
	RunID       string
	Step        int64    // duration / Count, in stream time base ticks
	Schedule    []int64  // Target timestamps (i+1)*Step
	SeekTargets []int64  // Seek targets actually visited, in order
	Frames      []string // Written frame images, in sample order
	Decoded     int      // Frames decoded over the whole run
}

// Sampler runs one sampling pass over one input. It is not safe for
// concurrent use and a Sampler runs at most once.
type Sampler struct {
	cfg      Config
	backend  video.Backend
	encoder  encoder.Encoder
	layout   *storage.Layout
	renderer histogram.Renderer
	observer Observer
	logger   *logger.Logger

	state   State
	session video.Session
	runID   string
	pts     int64
	frame   *video.Frame
	hist    *histogram.Histogram
	decoded int
}

// Option configures optional sampler capabilities
type Option func(*Sampler)

// WithRenderer enables PNG histogram output next to the text histogram
func WithRenderer(r histogram.Renderer) Option {
	return func(s *Sampler) {
		s.renderer = r
	}
}

// WithObserver registers an observer for run events
func WithObserver(o Observer) Option {
	return func(s *Sampler) {
		s.observer = o
	}
}

// New creates a sampler. The configuration is validated by Run.
func New(cfg Config, backend video.Backend, enc encoder.Encoder, layout *storage.Layout, log *logger.Logger, opts ...Option) *Sampler {
	if log == nil {
		log = logger.NewNopLogger()
	}

	s := &Sampler{
		cfg:     cfg,
		backend: backend,
		encoder: enc,
		layout:  layout,
		logger:  log.Named("sampler"),
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state
func (s *Sampler) State() State {
	return s.state
}

// Run opens input and writes Count samples. The first error aborts the run;
// files already written stay on disk. The decoder session is closed on
// every path.
func (s *Sampler) Run(ctx context.Context, input string) (result *Result, err error) {
	if s.state != StateIdle {
		return nil, newError(KindConfig, "run", -1, fmt.Errorf("sampler already used, state %s", s.state))
	}

	if err := s.cfg.Validate(s.encoder); err != nil {
		s.state = StateFailed
		return nil, err
	}
	if s.backend == nil || s.layout == nil {
		s.state = StateFailed
		return nil, newError(KindConfig, "run", -1, errors.New("decoder backend and output layout are required"))
	}

	s.runID = uuid.New().String()
	result = &Result{RunID: s.runID}

	session, err := s.backend.Open(ctx, input)
	if err != nil {
		s.state = StateFailed
		return result, s.classify(ctx, KindOpen, "open", -1, err)
	}
	s.session = session
	s.state = StateOpened

	defer func() {
		if cerr := session.Close(); cerr != nil {
			s.logger.Warn("Failed to close decoder session", "error", cerr)
		}
		if err != nil {
			s.state = StateFailed
		} else {
			s.state = StateClosed
		}
		result.Decoded = s.decoded
		s.notifyFinished(ctx, result, err)
	}()

	info := session.Info()
	result.Step = info.Duration / int64(s.cfg.Count)
	result.Schedule = Schedule(info.Duration, s.cfg.Count)

	s.logger.Info("Opened input",
		"run_id", s.runID,
		"input", input,
		"backend", s.backend.Name(),
		"codec", info.Codec,
		"width", info.Width,
		"height", info.Height,
		"duration", info.Duration,
		"time_base", info.TimeBase.String(),
		"duration_seconds", info.TimeBase.Seconds(info.Duration),
	)
	s.logger.Info("Sampling schedule", "count", s.cfg.Count, "step", result.Step)
	if result.Step == 0 {
		s.logger.Warn("Stream is shorter than the sample count, all samples target the start", "duration", info.Duration, "count", s.cfg.Count)
	}

	s.notify("run_started", s.observerCall(func(o Observer) error {
		return o.RunStarted(ctx, RunInfo{
			RunID:     s.runID,
			Input:     input,
			Backend:   s.backend.Name(),
			Stream:    info,
			Count:     s.cfg.Count,
			Offset:    s.cfg.Offset,
			Format:    s.cfg.Format.String(),
			Step:      result.Step,
			StartedAt: time.Now(),
		})
	}))

	s.state = StateSampling

	if err := s.decodeCurrent(ctx); err != nil {
		if errors.Is(err, video.ErrEndOfStream) {
			return result, s.classify(ctx, KindExhausted, "decode", 0, errors.New("stream contains no frames"))
		}
		return result, s.classify(ctx, KindDecode, "decode", 0, err)
	}

	for i := 0; i < s.cfg.Count; i++ {
		if err := ctx.Err(); err != nil {
			return result, newError(KindCanceled, "sample", i, err)
		}

		if s.cfg.SkipBlack {
			if err := s.skipBlack(ctx, i); err != nil {
				return result, err
			}
		}

		path, err := s.emit(ctx, i)
		if err != nil {
			return result, err
		}
		result.Frames = append(result.Frames, path)

		if i < s.cfg.Count-1 {
			target := result.Schedule[i]
			if err := s.seekTo(ctx, i+1, target); err != nil {
				return result, err
			}
			result.SeekTargets = append(result.SeekTargets, target)
		}
	}

	return result, nil
}

// decodeCurrent advances the session by one frame and refreshes the current
// histogram. video.ErrEndOfStream is returned unchanged.
func (s *Sampler) decodeCurrent(ctx context.Context) error {
	frame, err := s.session.DecodeNext(ctx)
	if err != nil {
		return err
	}

	hist, err := histogram.Build(frame.RGB, frame.Width, frame.Height)
	if err != nil {
		return fmt.Errorf("invalid frame at pts %d: %w", frame.PTS, err)
	}

	s.frame = frame
	s.hist = hist
	s.pts = frame.PTS
	s.decoded++
	return nil
}

// skipBlack decodes forward until the current frame is not black
func (s *Sampler) skipBlack(ctx context.Context, index int) error {
	for skipped := 0; s.hist.IsBlack(); skipped++ {
		if err := ctx.Err(); err != nil {
			return newError(KindCanceled, "skip_black", index, err)
		}
		if skipped >= s.cfg.MaxSkipFrames {
			return newError(KindExhausted, "skip_black", index,
				fmt.Errorf("no non-black frame within %d frames", s.cfg.MaxSkipFrames))
		}

		if err := s.decodeCurrent(ctx); err != nil {
			if errors.Is(err, video.ErrEndOfStream) {
				return s.classify(ctx, KindExhausted, "skip_black", index, errors.New("stream ended while skipping black frames"))
			}
			return s.classify(ctx, KindDecode, "skip_black", index, err)
		}
	}
	return nil
}

// seekTo positions the session on the first frame with pts >= target-1.
// The fast path seeks backward to a random-access point and decodes with the
// hurry hint set; the slow path only decodes forward.
func (s *Sampler) seekTo(ctx context.Context, index int, target int64) error {
	if !s.cfg.SlowSeek {
		if err := s.session.Seek(ctx, target, true); err != nil {
			return s.classify(ctx, KindSeek, "seek", index, fmt.Errorf("seek to %d: %w", target, err))
		}
		s.session.SetHurry(true)
		defer s.session.SetHurry(false)
	}

	decoded := 0
	for {
		if err := ctx.Err(); err != nil {
			return newError(KindCanceled, "seek", index, err)
		}
		if decoded >= s.cfg.MaxSeekFrames {
			return newError(KindSeek, "seek", index,
				fmt.Errorf("target %d not reached within %d frames", target, s.cfg.MaxSeekFrames))
		}

		if err := s.decodeCurrent(ctx); err != nil {
			if errors.Is(err, video.ErrEndOfStream) {
				return s.classify(ctx, KindSeek, "seek", index, fmt.Errorf("stream ended before target %d", target))
			}
			return s.classify(ctx, KindDecode, "seek", index, err)
		}
		decoded++

		if s.pts >= target-1 {
			break
		}
	}

	s.logger.Debug("Seek complete", "target", target, "pts", s.pts, "decoded", decoded, "slow", s.cfg.SlowSeek)
	return nil
}

// emit writes the current frame and, when enabled, its histogram
func (s *Sampler) emit(ctx context.Context, sample int) (string, error) {
	fileIndex := sample + s.cfg.Offset
	path := s.layout.FramePath(fileIndex, s.cfg.Format.Suffix())

	if err := s.encoder.Encode(path, s.frame.RGB, s.frame.Width, s.frame.Height, s.cfg.Format); err != nil {
		return "", newError(KindIO, "emit", sample, err)
	}

	var histPath string
	if s.cfg.WriteHistogram {
		histPath = s.layout.HistogramDataPath(sample)
		if err := s.hist.Save(histPath); err != nil {
			return "", newError(KindIO, "histogram", sample, err)
		}
		if s.renderer != nil {
			if err := s.renderer.Render(s.hist, s.layout.HistogramImagePath(sample)); err != nil {
				return "", newError(KindIO, "histogram", sample, err)
			}
		}
	}

	s.logger.Info("Wrote frame", "index", fileIndex, "pts", s.pts, "path", path)

	s.notify("frame_emitted", s.observerCall(func(o Observer) error {
		return o.FrameEmitted(ctx, FrameRecord{
			RunID:         s.runID,
			Sample:        sample,
			Index:         fileIndex,
			PTS:           s.pts,
			Path:          path,
			HistogramPath: histPath,
		})
	}))

	return path, nil
}

// classify maps err to kind unless the context was canceled meanwhile
func (s *Sampler) classify(ctx context.Context, kind Kind, step string, index int, err error) *Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return newError(KindCanceled, step, index, ctxErr)
	}
	return newError(kind, step, index, err)
}

func (s *Sampler) observerCall(fn func(Observer) error) error {
	if s.observer == nil {
		return nil
	}
	return fn(s.observer)
}

func (s *Sampler) notify(event string, err error) {
	if err != nil {
		s.logger.Warn("Observer failed", "event", event, "run_id", s.runID, "error", err)
	}
}

func (s *Sampler) notifyFinished(ctx context.Context, result *Result, runErr error) {
	// the run may end through cancellation; the summary is still recorded
	ctx = context.WithoutCancel(ctx)
	s.notify("run_finished", s.observerCall(func(o Observer) error {
		return o.RunFinished(ctx, RunSummary{
			RunID:      s.runID,
			Frames:     len(result.Frames),
			Decoded:    result.Decoded,
			Err:        runErr,
			FinishedAt: time.Now(),
		})
	}))
}
