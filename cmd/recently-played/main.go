// Command recently-played runs the Spotify recently-played ETL pipeline.
//
// Usage:
//
//	recently-played [serve]      run daily on schedule and serve the ops API
//	recently-played run          run the full chain once
//	recently-played step <name>  run a single step once
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/justestif/spotify-recently-played-etl/internal/config"
	"github.com/justestif/spotify-recently-played-etl/internal/pipeline"
	"github.com/justestif/spotify-recently-played-etl/internal/scheduler"
	"github.com/justestif/spotify-recently-played-etl/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: %s [serve | run | step <name>]

Steps: %s
`, os.Args[0], strings.Join(stepNames(), ", "))
	flag.PrintDefaults()
}

func stepNames() []string {
	return []string{pipeline.StepFetch, pipeline.StepArchive, pipeline.StepRetrieve, pipeline.StepLoad}
}

func run() error {
	flag.Usage = usage
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := newLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline.RegisterMetrics()
	runner, err := pipeline.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}

	args := flag.Args()
	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "serve":
		return serve(ctx, cfg, runner, log)
	case "run":
		_, err := runner.Run(ctx)
		return err
	case "step":
		if len(args) < 2 {
			return errors.New("step: missing step name")
		}
		_, err := runner.RunStep(ctx, args[1])
		return err
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// serve runs the daily schedule and the ops server until interrupted.
func serve(ctx context.Context, cfg *config.Config, runner *pipeline.Runner, log *zap.SugaredLogger) error {
	server, err := web.NewServer(web.ServerConfig{
		Addr:   cfg.Server.Addr,
		Runner: runner,
		Logger: log.Named("web"),
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	sched := scheduler.New(cfg.Schedule.At, cfg.Location(), log.Named("scheduler"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Start(ctx, func(ctx context.Context) {
			if _, err := runner.Run(ctx); err != nil {
				log.Errorw("scheduled run failed", "error", err, "next_run", sched.NextRun())
			}
		})
	})
	g.Go(func() error {
		return server.Run(ctx)
	})
	return g.Wait()
}
