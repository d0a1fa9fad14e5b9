package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/justestif/spotify-recently-played-etl/internal/config"
	"github.com/justestif/spotify-recently-played-etl/internal/spotify"
	"github.com/justestif/spotify-recently-played-etl/internal/storage"
)

// Steps wires the four components into the fixed chain. Hand-off between
// steps happens only through file and object names derived from the run date.
func Steps(f *Fetcher, a *Archiver, r *Retriever, l *Loader) []Step {
	return []Step{
		{
			Name: StepFetch,
			Run: func(ctx context.Context, run *Run) error {
				_, err := f.Fetch(ctx, run.Now)
				return err
			},
		},
		{
			Name: StepArchive,
			Run: func(ctx context.Context, run *Run) error {
				_, err := a.Archive(ctx, f.StagedPath(run.RunDate), run.RunDate)
				return err
			},
		},
		{
			Name: StepRetrieve,
			Run: func(ctx context.Context, run *Run) error {
				_, err := r.RetrieveLatest(ctx)
				return err
			},
		},
		{
			Name: StepLoad,
			Run: func(ctx context.Context, run *Run) error {
				_, err := l.LoadLatest(ctx)
				return err
			},
		},
	}
}

// Build creates a Runner for the standard chain from cfg.
func Build(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*Runner, error) {
	client, err := spotify.NewWithToken(ctx, cfg.Spotify.APIToken, cfg.Spotify.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating spotify client: %w", err)
	}

	store, err := storage.New(cfg)
	if err != nil {
		return nil, err
	}

	bucket := cfg.S3.Bucket
	steps := Steps(
		NewFetcher(client, cfg.DataDir(), log.Named("fetcher")),
		NewArchiver(store, bucket, log.Named("archiver")),
		NewRetriever(store, bucket, cfg.ArchiveDir(), log.Named("retriever")),
		NewLoader(store, bucket, cfg.ArchiveDir(), cfg.Postgres.ConnString(), log.Named("loader")),
	)

	log.Infow("pipeline configured",
		"storage", cfg.Storage.Provider,
		"bucket", bucket,
		"work_dir", cfg.Pipeline.WorkDir,
		"database", cfg.Postgres.Redacted(),
	)
	return NewRunner(steps, WithLocation(cfg.Location()), WithLogger(log.Named("runner"))), nil
}
