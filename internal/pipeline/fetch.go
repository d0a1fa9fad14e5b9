package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/justestif/spotify-recently-played-etl/internal/spotify"
	"github.com/justestif/spotify-recently-played-etl/internal/staging"
)

// Lookback is how far back the Fetcher asks for plays.
const Lookback = 24 * time.Hour

// PlaysSource returns the plays recorded after a point in time.
type PlaysSource interface {
	RecentlyPlayed(ctx context.Context, after time.Time) ([]staging.PlayEvent, error)
}

// Fetcher pulls the last day of plays and stages them as a CSV file.
type Fetcher struct {
	source  PlaysSource
	dataDir string
	log     *zap.SugaredLogger
}

// NewFetcher creates a Fetcher that stages files under dataDir.
func NewFetcher(source PlaysSource, dataDir string, log *zap.SugaredLogger) *Fetcher {
	return &Fetcher{source: source, dataDir: dataDir, log: log}
}

// StagedPath is where Fetch writes the file for runDate.
func (f *Fetcher) StagedPath(runDate string) string {
	return staging.LocalPath(f.dataDir, runDate)
}

// Fetch requests plays after now-Lookback and writes them, in API order,
// to the staged file named by now's run date. Zero plays yields an empty file.
func (f *Fetcher) Fetch(ctx context.Context, now time.Time) (string, error) {
	after := now.Add(-Lookback)

	events, err := f.source.RecentlyPlayed(ctx, after)
	if err != nil {
		if errors.Is(err, spotify.ErrUnexpectedResponse) {
			return "", newError(ErrUpstreamSchemaMismatch, "fetch recently played", err)
		}
		return "", newError(ErrUpstreamUnavailable, "fetch recently played", err)
	}

	path := f.StagedPath(staging.RunDate(now))
	if err := staging.WriteFile(path, events); err != nil {
		return "", newError(ErrStorageWriteFailed, "write staged file", err)
	}

	rowsFetched.Add(float64(len(events)))
	f.log.Infow("staged recently played tracks",
		"rows", len(events),
		"after", after.UTC().Format(time.RFC3339),
		"path", path,
	)
	return path, nil
}
