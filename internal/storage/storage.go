package storage

import (
	"fmt"

	"github.com/justestif/spotify-recently-played-etl/internal/config"
)

// New returns the provider selected by cfg.Storage.Provider.
func New(cfg *config.Config) (Provider, error) {
	switch cfg.Storage.Provider {
	case config.ProviderLocal:
		p, err := NewLocalProvider(cfg.Storage.LocalRoot)
		if err != nil {
			return nil, fmt.Errorf("creating local storage: %w", err)
		}
		return p, nil
	case config.ProviderS3:
		p, err := NewS3Provider(S3Config{
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("creating s3 session: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Storage.Provider)
	}
}
