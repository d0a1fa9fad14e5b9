// Package config loads the pipeline configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage provider names.
const (
	ProviderS3    = "s3"
	ProviderLocal = "local"
)

// Staging directory names under the work directory.
const (
	dataDirName    = "data"
	archiveDirName = "s3_data"
)

var (
	// ErrMissingSpotifyToken is returned when SPOTIFY_API_TOKEN is not set.
	ErrMissingSpotifyToken = errors.New("missing SPOTIFY_API_TOKEN environment variable")

	// ErrMissingS3Credentials is returned when the S3 key pair is incomplete.
	ErrMissingS3Credentials = errors.New("missing AWS_S3_ACCESS_KEY or AWS_S3_SECRET_KEY environment variable")

	// ErrMissingPostgresConfig is returned when neither DATABASE_URL nor the
	// POSTGRES_* connection variables are set.
	ErrMissingPostgresConfig = errors.New("missing POSTGRES_HOST/POSTGRES_DATABASE/POSTGRES_USER environment variables")

	// ErrUnknownProvider is returned for an unsupported STORAGE_PROVIDER.
	ErrUnknownProvider = errors.New("unknown storage provider")
)

// Config holds every setting the pipeline needs.
type Config struct {
	Spotify struct {
		APIToken string `mapstructure:"api_token"`
		BaseURL  string `mapstructure:"base_url"`
	} `mapstructure:"spotify"`
	S3 struct {
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		Bucket    string `mapstructure:"bucket"`
		Region    string `mapstructure:"region"`
		Endpoint  string `mapstructure:"endpoint"`
	} `mapstructure:"s3"`
	Storage struct {
		Provider  string `mapstructure:"provider"`
		LocalRoot string `mapstructure:"local_root"`
	} `mapstructure:"storage"`
	Postgres Postgres `mapstructure:"postgres"`
	Pipeline struct {
		WorkDir string `mapstructure:"work_dir"`
	} `mapstructure:"pipeline"`
	Schedule struct {
		At       string `mapstructure:"at"`
		Timezone string `mapstructure:"timezone"`
	} `mapstructure:"schedule"`
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	loc *time.Location
}

// Postgres holds database connection settings.
type Postgres struct {
	URL            string `mapstructure:"url"`
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"sslmode"`
	ConnectTimeout int    `mapstructure:"connect_timeout_seconds"`
}

// envBindings maps config keys to their environment variable names.
var envBindings = map[string]string{
	"spotify.api_token":                "SPOTIFY_API_TOKEN",
	"spotify.base_url":                 "SPOTIFY_API_BASE_URL",
	"s3.access_key":                    "AWS_S3_ACCESS_KEY",
	"s3.secret_key":                    "AWS_S3_SECRET_KEY",
	"s3.bucket":                        "AWS_S3_BUCKET",
	"s3.region":                        "AWS_S3_REGION",
	"s3.endpoint":                      "AWS_S3_ENDPOINT",
	"storage.provider":                 "STORAGE_PROVIDER",
	"storage.local_root":               "STORAGE_LOCAL_ROOT",
	"postgres.url":                     "DATABASE_URL",
	"postgres.host":                    "POSTGRES_HOST",
	"postgres.port":                    "POSTGRES_PORT",
	"postgres.database":                "POSTGRES_DATABASE",
	"postgres.user":                    "POSTGRES_USER",
	"postgres.password":                "POSTGRES_PASSWORD",
	"postgres.sslmode":                 "POSTGRES_SSLMODE",
	"postgres.connect_timeout_seconds": "POSTGRES_CONNECT_TIMEOUT",
	"pipeline.work_dir":                "WORK_DIR",
	"schedule.at":                      "SCHEDULE_AT",
	"schedule.timezone":                "SCHEDULE_TIMEZONE",
	"server.addr":                      "HTTP_ADDR",
	"log.level":                        "LOG_LEVEL",
	"log.format":                       "LOG_FORMAT",
}

// LoadDotEnv loads variables from a .env file in the working directory.
// A missing file is not an error; existing variables are not overridden.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Load reads configuration from the environment and an optional
// config.yaml in the working directory, then validates it.
func Load() (*Config, error) {
	v := viper.New()

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	// Defaults
	v.SetDefault("spotify.base_url", "https://api.spotify.com/v1/")
	v.SetDefault("s3.bucket", "spotify-web-api-data")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("storage.provider", ProviderS3)
	v.SetDefault("storage.local_root", "./object_store")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.connect_timeout_seconds", 10)
	v.SetDefault("schedule.at", "00:00")
	v.SetDefault("schedule.timezone", "UTC")
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.Pipeline.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		cfg.Pipeline.WorkDir = wd
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading SCHEDULE_TIMEZONE %q: %w", cfg.Schedule.Timezone, err)
	}
	cfg.loc = loc
	return &cfg, nil
}

// Location is the schedule time zone parsed by Load. Run dates are computed
// in it. A Config not built by Load reports UTC.
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.Spotify.APIToken == "" {
		return ErrMissingSpotifyToken
	}

	switch c.Storage.Provider {
	case ProviderS3:
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			return ErrMissingS3Credentials
		}
	case ProviderLocal:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Storage.Provider)
	}

	if c.Postgres.URL == "" && (c.Postgres.Host == "" || c.Postgres.Database == "" || c.Postgres.User == "") {
		return ErrMissingPostgresConfig
	}
	return nil
}

// DataDir is where the Fetcher stages files for the Archiver.
func (c *Config) DataDir() string {
	return filepath.Join(c.Pipeline.WorkDir, dataDirName)
}

// ArchiveDir is where the Retriever stages downloads for the Loader.
func (c *Config) ArchiveDir() string {
	return filepath.Join(c.Pipeline.WorkDir, archiveDirName)
}

// ConnString returns a PostgreSQL connection URL. DATABASE_URL wins when set.
func (p Postgres) ConnString() string {
	if p.URL != "" {
		return p.URL
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   net.JoinHostPort(p.Host, p.Port),
		Path:   "/" + p.Database,
	}

	q := url.Values{}
	if p.SSLMode != "" {
		q.Set("sslmode", p.SSLMode)
	}
	if p.ConnectTimeout > 0 {
		q.Set("connect_timeout", fmt.Sprint(p.ConnectTimeout))
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// Redacted returns ConnString with the password masked, for logging.
func (p Postgres) Redacted() string {
	u, err := url.Parse(p.ConnString())
	if err != nil {
		return strings.Repeat("*", 8)
	}
	return u.Redacted()
}
