package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ligustah/eccofetch/internal/catalog"
	"github.com/ligustah/eccofetch/internal/earthdata"
	"github.com/ligustah/eccofetch/internal/progress"
	"github.com/ligustah/eccofetch/internal/store"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid configuration")

// Config defines configuration for the eccofetch CLI.
type Config struct {
	DownloadRoot     string      `yaml:"download_root"`
	Workers          int         `yaml:"workers"`
	Force            bool        `yaml:"force"`
	Progress         bool        `yaml:"progress"`
	MaxAvailFrac     float64     `yaml:"max_avail_frac"`
	FreeSpace        int64       `yaml:"free_space"`
	SnapshotInterval string      `yaml:"snapshot_interval"`
	NetrcPath        string      `yaml:"netrc_path"`
	EarthdataHost    string      `yaml:"earthdata_host"`
	CMRURL           string      `yaml:"cmr_url"`
	CredentialsURL   string      `yaml:"credentials_url"`
	Region           string      `yaml:"region"`
	S3Endpoint       string      `yaml:"s3_endpoint"`
	LogLevel         string      `yaml:"log_level"`
	Retry            RetryConfig `yaml:"retry"`
}

// RetryConfig defines retry behavior for catalog and credential requests.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Workers:        6,
		Progress:       true,
		MaxAvailFrac:   0.5,
		EarthdataHost:  earthdata.DefaultHost,
		CMRURL:         catalog.DefaultURL,
		CredentialsURL: earthdata.DefaultCredentialsURL,
		Region:         store.DefaultRegion,
		LogLevel:       "info",
		Retry: RetryConfig{
			Attempts:   5,
			Backoff:    time.Second,
			MaxBackoff: 30 * time.Second,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string sizes and durations.
// Pointers tell an explicit false or zero from an absent key.
type yamlConfig struct {
	DownloadRoot     string          `yaml:"download_root"`
	Workers          int             `yaml:"workers"`
	Force            bool            `yaml:"force"`
	Progress         *bool           `yaml:"progress"`
	MaxAvailFrac     *float64        `yaml:"max_avail_frac"`
	FreeSpace        string          `yaml:"free_space"`
	SnapshotInterval string          `yaml:"snapshot_interval"`
	NetrcPath        string          `yaml:"netrc_path"`
	EarthdataHost    string          `yaml:"earthdata_host"`
	CMRURL           string          `yaml:"cmr_url"`
	CredentialsURL   string          `yaml:"credentials_url"`
	Region           string          `yaml:"region"`
	S3Endpoint       string          `yaml:"s3_endpoint"`
	LogLevel         string          `yaml:"log_level"`
	Retry            yamlRetryConfig `yaml:"retry"`
}

type yamlRetryConfig struct {
	Attempts   int    `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file on top of Default().
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	setString(&cfg.DownloadRoot, yc.DownloadRoot)
	setString(&cfg.SnapshotInterval, yc.SnapshotInterval)
	setString(&cfg.NetrcPath, yc.NetrcPath)
	setString(&cfg.EarthdataHost, yc.EarthdataHost)
	setString(&cfg.CMRURL, yc.CMRURL)
	setString(&cfg.CredentialsURL, yc.CredentialsURL)
	setString(&cfg.Region, yc.Region)
	setString(&cfg.S3Endpoint, yc.S3Endpoint)
	setString(&cfg.LogLevel, yc.LogLevel)

	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	cfg.Force = yc.Force
	if yc.Progress != nil {
		cfg.Progress = *yc.Progress
	}
	if yc.MaxAvailFrac != nil {
		cfg.MaxAvailFrac = *yc.MaxAvailFrac
	}
	if yc.FreeSpace != "" {
		size, err := progress.ParseBytes(yc.FreeSpace)
		if err != nil {
			return Config{}, fmt.Errorf("parse free_space: %w", err)
		}
		cfg.FreeSpace = size
	}
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		cfg.Retry.MaxBackoff = d
	}

	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the ECCO_ prefix.
func (c *Config) LoadFromEnv() error {
	for name, dst := range map[string]*string{
		"ECCO_DOWNLOAD_ROOT":     &c.DownloadRoot,
		"ECCO_SNAPSHOT_INTERVAL": &c.SnapshotInterval,
		"ECCO_NETRC":             &c.NetrcPath,
		"ECCO_EARTHDATA_HOST":    &c.EarthdataHost,
		"ECCO_CMR_URL":           &c.CMRURL,
		"ECCO_CREDENTIALS_URL":   &c.CredentialsURL,
		"ECCO_REGION":            &c.Region,
		"ECCO_S3_ENDPOINT":       &c.S3Endpoint,
		"ECCO_LOG_LEVEL":         &c.LogLevel,
	} {
		setString(dst, os.Getenv(name))
	}

	if v := os.Getenv("ECCO_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse ECCO_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("ECCO_FORCE"); v != "" {
		c.Force = v == "true" || v == "1"
	}
	if v := os.Getenv("ECCO_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("ECCO_MAX_AVAIL_FRAC"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse ECCO_MAX_AVAIL_FRAC: %w", err)
		}
		c.MaxAvailFrac = f
	}
	if v := os.Getenv("ECCO_FREE_SPACE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse ECCO_FREE_SPACE: %w", err)
		}
		c.FreeSpace = size
	}
	if v := os.Getenv("ECCO_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse ECCO_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("ECCO_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse ECCO_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("ECCO_RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse ECCO_RETRY_MAX_BACKOFF: %w", err)
		}
		c.Retry.MaxBackoff = d
	}

	return nil
}

// Validate validates the configuration. MaxAvailFrac outside [0, 0.9] is
// accepted here and clamped when used.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalid)
	}
	if math.IsNaN(c.MaxAvailFrac) || math.IsInf(c.MaxAvailFrac, 0) {
		return fmt.Errorf("%w: max_avail_frac must be a finite number", ErrInvalid)
	}
	if c.FreeSpace < 0 {
		return fmt.Errorf("%w: free_space must not be negative", ErrInvalid)
	}
	if _, err := catalog.ParseInterval(c.SnapshotInterval); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
	}
	if c.EarthdataHost == "" {
		return fmt.Errorf("%w: earthdata_host is required", ErrInvalid)
	}
	if c.CMRURL == "" {
		return fmt.Errorf("%w: cmr_url is required", ErrInvalid)
	}
	if c.CredentialsURL == "" {
		return fmt.Errorf("%w: credentials_url is required", ErrInvalid)
	}
	if c.Retry.Attempts < 0 {
		return fmt.Errorf("%w: retry.attempts must not be negative", ErrInvalid)
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	setString(&c.DownloadRoot, override.DownloadRoot)
	setString(&c.SnapshotInterval, override.SnapshotInterval)
	setString(&c.NetrcPath, override.NetrcPath)
	setString(&c.EarthdataHost, override.EarthdataHost)
	setString(&c.CMRURL, override.CMRURL)
	setString(&c.CredentialsURL, override.CredentialsURL)
	setString(&c.Region, override.Region)
	setString(&c.S3Endpoint, override.S3Endpoint)
	setString(&c.LogLevel, override.LogLevel)

	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.Force {
		c.Force = override.Force
	}
	if override.MaxAvailFrac != 0 {
		c.MaxAvailFrac = override.MaxAvailFrac
	}
	if override.FreeSpace != 0 {
		c.FreeSpace = override.FreeSpace
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	return c
}
