package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/phako/tn/internal/config"
	"github.com/phako/tn/internal/encoder"
	"github.com/phako/tn/internal/histogram"
	"github.com/phako/tn/internal/logger"
	"github.com/phako/tn/internal/sampler"
	"github.com/phako/tn/internal/state"
	"github.com/phako/tn/internal/storage"
	"github.com/phako/tn/internal/video"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// options holds the parsed command line
type options struct {
	configPath string
	skipBlack  bool
	histogram  bool
	slowSeek   bool
	offset     int
	format     string
	count      int
	outputDir  string
	backend    string
	help       bool
	set        map[string]bool
	input      string
}

func newFlagSet(opts *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("tn", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configPath, "c", "", "Path to configuration file")
	fs.BoolVar(&opts.skipBlack, "b", false, "Skip very dark frames")
	fs.BoolVar(&opts.histogram, "t", false, "Write histogram data files")
	fs.BoolVar(&opts.slowSeek, "s", false, "Use slow seeking (for MPEG and packed bitstream files)")
	fs.IntVar(&opts.offset, "o", 0, "Start output file numbering at NUM")
	fs.StringVar(&opts.format, "i", "", "Select output image format")
	fs.IntVar(&opts.count, "n", sampler.DefaultCount, "Create count snapshots")
	fs.StringVar(&opts.outputDir, "d", "", "Write output files to DIR")
	fs.StringVar(&opts.backend, "backend", "", "Decoder backend (ffmpeg|mpeg)")
	fs.BoolVar(&opts.help, "h", false, "This help")

	return fs
}

func printUsage(w io.Writer, supported string) {
	fmt.Fprintf(w, "Usage: tn [options] file\n\n")
	fmt.Fprintf(w, "With options:\n")
	fmt.Fprintf(w, "\t-h : This help\n")
	fmt.Fprintf(w, "\t-t : Write histogram data files\n")
	fmt.Fprintf(w, "\t-i %s: Select output image format\n", supported)
	fmt.Fprintf(w, "\t-n <count>: Create count snapshots\n")
	fmt.Fprintf(w, "\t-b : Skip very dark frames\n")
	fmt.Fprintf(w, "\t-o <NUM>: Start output file numbering at NUM\n")
	fmt.Fprintf(w, "\t-s : Use slow seeking (for MPEG and packed bitstream files)\n")
	fmt.Fprintf(w, "\t-c <FILE>: Read configuration from FILE\n")
	fmt.Fprintf(w, "\t-d <DIR>: Write output files to DIR\n")
	fmt.Fprintf(w, "\t-backend ffmpeg|mpeg: Select the decoder backend\n")
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{set: make(map[string]bool)}
	fs := newFlagSet(opts, stderr)
	fs.Usage = func() {}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})
	if fs.NArg() > 0 {
		opts.input = fs.Arg(0)
	}

	return opts, nil
}

// applyFlags overrides configuration with explicitly given flags
func applyFlags(cfg *config.Config, opts *options) {
	if opts.set["b"] {
		cfg.Sampling.SkipBlack = opts.skipBlack
	}
	if opts.set["t"] {
		cfg.Sampling.WriteHistogram = opts.histogram
	}
	if opts.set["s"] {
		cfg.Sampling.SlowSeek = opts.slowSeek
	}
	if opts.set["o"] {
		cfg.Sampling.Offset = opts.offset
	}
	if opts.set["i"] {
		cfg.Sampling.Format = opts.format
	}
	if opts.set["n"] {
		cfg.Sampling.Count = opts.count
	}
	if opts.set["d"] {
		cfg.Output.Dir = opts.outputDir
	}
	if opts.set["backend"] {
		cfg.Decoder.Backend = opts.backend
	}
}

func newEncoder(cfg *config.Config) *encoder.FileEncoder {
	if cfg.Output.JPEGEnabled {
		return encoder.New(encoder.WithJPEG(cfg.Output.JPEGQuality))
	}
	return encoder.New()
}

func run(args []string, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil || opts.help {
		printUsage(stderr, encoder.SupportedString(newEncoder(config.Default())))
		return 1
	}

	// Load configuration
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	config.ApplyEnvOverrides(cfg)
	applyFlags(cfg, opts)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	// Initialize logger
	log, err := logger.New(logger.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	log.Info("Tn starting",
		"version", version,
		"build_time", buildTime,
		"git_commit", gitCommit,
	)
	if cfg.Sampling.SlowSeek {
		log.Info("Will use slow decoding mode, please be patient")
	}

	if opts.input == "" {
		log.Error("Please provide a movie file")
		return 1
	}

	// Create main context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("Received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := sample(ctx, cfg, opts.input, log); err != nil {
		var serr *sampler.Error
		if errors.As(err, &serr) {
			log.Error("Sampling failed",
				"step", serr.Step,
				"index", serr.Index,
				"kind", serr.Kind.String(),
				"error", err,
			)
		} else {
			log.Error("Sampling failed", "error", err)
		}
		return 1
	}

	return 0
}

func sample(ctx context.Context, cfg *config.Config, input string, log *logger.Logger) error {
	enc := newEncoder(cfg)
	samplerCfg, err := cfg.SamplerConfig()
	if err != nil {
		return fmt.Errorf("invalid sampling configuration: %w", err)
	}
	// reject bad settings before touching the input or the output directory
	if err := samplerCfg.Validate(enc); err != nil {
		return err
	}

	backend, err := video.NewBackend(cfg.Decoder.Backend, video.BackendOptions{
		Logger:     log.Named("video"),
		FFmpegPath: cfg.Decoder.FFmpegPath,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder backend: %w", err)
	}

	layout, err := storage.NewLayout(storage.LayoutConfig{
		Dir:            cfg.Output.Dir,
		MinFreePercent: cfg.Output.MinFreePercent,
	}, log)
	if err != nil {
		return err
	}
	layout.CheckSpace(ctx)

	var samplerOpts []sampler.Option
	if cfg.Output.RenderHistogram {
		samplerOpts = append(samplerOpts, sampler.WithRenderer(histogram.NewPNGRenderer()))
	}

	if cfg.Catalog.Enabled {
		catalog, err := state.NewCatalog(cfg.Catalog.Path, log.Named("catalog"))
		if err != nil {
			return fmt.Errorf("failed to open run catalog: %w", err)
		}
		defer catalog.Close()

		if _, err := catalog.MarkInterrupted(ctx); err != nil {
			log.Warn("Failed to recover run catalog", "error", err)
		}
		samplerOpts = append(samplerOpts, sampler.WithObserver(catalog))
	}

	s := sampler.New(samplerCfg, backend, enc, layout, log, samplerOpts...)
	result, err := s.Run(ctx, input)
	if err != nil {
		return err
	}

	log.Info("Sampling complete",
		"run_id", result.RunID,
		"frames", len(result.Frames),
		"decoded", result.Decoded,
		"dir", layout.Dir(),
	)
	return nil
}
