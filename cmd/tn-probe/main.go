package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/phako/tn/internal/config"
	"github.com/phako/tn/internal/histogram"
	"github.com/phako/tn/internal/logger"
	"github.com/phako/tn/internal/sampler"
	"github.com/phako/tn/internal/state"
	"github.com/phako/tn/internal/video"
)

func main() {
	configPath := flag.String("c", "", "Path to configuration file")
	backendName := flag.String("backend", "", "Decoder backend (ffmpeg|mpeg)")
	frames := flag.Int("frames", 10, "Number of frames to decode")
	count := flag.Int("n", sampler.DefaultCount, "Sample count used to print the schedule")
	runs := flag.Bool("runs", false, "List catalogued runs of the file instead of decoding it")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: tn-probe [options] file\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	input := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.ApplyEnvOverrides(cfg)
	if *backendName != "" {
		cfg.Decoder.Backend = *backendName
	}

	log, err := logger.New(logger.LogConfig{
		Level:  "info",
		Format: "text",
		Output: "stderr",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if *runs {
		if err := listRuns(ctx, cfg.Catalog.Path, input, log); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list runs: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := probe(ctx, cfg, input, *frames, *count, log); err != nil {
		fmt.Fprintf(os.Stderr, "Probe failed: %v\n", err)
		os.Exit(1)
	}
}

func probe(ctx context.Context, cfg *config.Config, input string, frames, count int, log *logger.Logger) error {
	backend, err := video.NewBackend(cfg.Decoder.Backend, video.BackendOptions{
		Logger:     log,
		FFmpegPath: cfg.Decoder.FFmpegPath,
	})
	if err != nil {
		return err
	}

	session, err := backend.Open(ctx, input)
	if err != nil {
		return err
	}
	defer session.Close()

	info := session.Info()
	fmt.Printf("=== %s (%s backend) ===\n", input, backend.Name())
	fmt.Printf("Codec:     %s\n", info.Codec)
	fmt.Printf("Size:      %dx%d\n", info.Width, info.Height)
	fmt.Printf("Time base: %s\n", info.TimeBase)
	fmt.Printf("Duration:  %d ticks (%.3fs)\n", info.Duration, info.TimeBase.Seconds(info.Duration))
	fmt.Printf("Schedule:  %v\n", sampler.Schedule(info.Duration, count))
	fmt.Println()

	for i := 0; i < frames; i++ {
		frame, err := session.DecodeNext(ctx)
		if errors.Is(err, video.ErrEndOfStream) {
			fmt.Println("End of stream")
			break
		}
		if err != nil {
			return err
		}

		hist, err := histogram.Build(frame.RGB, frame.Width, frame.Height)
		if err != nil {
			return err
		}

		mark := ""
		if hist.IsBlack() {
			mark = " (black)"
		}
		fmt.Printf("[Frame %d] pts=%d t=%.3fs max_bin=%d%s\n",
			i, frame.PTS, info.TimeBase.Seconds(frame.PTS), hist.Max, mark)
	}

	return nil
}

func listRuns(ctx context.Context, dbPath, input string, log *logger.Logger) error {
	catalog, err := state.NewCatalog(dbPath, log)
	if err != nil {
		return err
	}
	defer catalog.Close()

	runs, err := catalog.ListRuns(ctx, input, 20)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	for _, run := range runs {
		fmt.Printf("%s  %s  %s  %d/%d frames  %s\n",
			run.StartedAt.Format(time.RFC3339), run.ID, run.Status, run.FramesWritten, run.Count, run.Error)

		frames, err := catalog.ListFrames(ctx, run.ID)
		if err != nil {
			return err
		}
		for _, f := range frames {
			fmt.Printf("    #%d pts=%d %s\n", f.Index, f.PTS, f.Path)
		}
	}

	return nil
}
