package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultLogFile  = "drive_sync.log"
	DefaultLogLevel = "info"
	DefaultDBPath   = "drive_sync.db"
)

var (
	ErrMissingValue    = errors.New("missing required configuration value")
	ErrInvalidInterval = errors.New("invalid sync interval")
)

type Config struct {
	CredentialsPath  string
	DriveFolderID    string
	LogDriveFolderID string
	ArchiveFolderID  string
	LocalFolder      string
	OutputFolder     string

	Interval time.Duration
	Schedule string

	LogFile     string
	LogLevel    string
	DBPath      string
	MetricsAddr string

	// intervalValue is the raw SYNC_INTERVAL, parsed by Validate when
	// Interval has not been set another way.
	intervalValue string
}

// LoadEnvFile seeds the process environment from a dotenv file. Values
// already present in the environment win. A missing file is only an
// error when required is set.
func LoadEnvFile(path string, required bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("unable to read env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("unable to parse env file %s: %w", path, err)
	}
	return nil
}

// FromEnv builds a Config from the environment without validating it.
// SYNC_INTERVAL is only parsed by Validate, so commands that never sync
// are not affected by a malformed value.
func FromEnv() (*Config, error) {
	cfg := &Config{
		CredentialsPath:  os.Getenv("CREDENTIALS_PATH"),
		DriveFolderID:    os.Getenv("DRIVE_FOLDER_ID"),
		LogDriveFolderID: os.Getenv("LOG_DRIVE_FOLDER_ID"),
		ArchiveFolderID:  os.Getenv("ARCHIVE_FOLDER_ID"),
		LocalFolder:      os.Getenv("LOCAL_FOLDER"),
		OutputFolder:     os.Getenv("OUTPUT_FOLDER"),
		intervalValue:    os.Getenv("SYNC_INTERVAL"),
		Schedule:         os.Getenv("SYNC_SCHEDULE"),
		LogFile:          getEnvWithDefault("LOG_FILE", DefaultLogFile),
		LogLevel:         getEnvWithDefault("LOG_LEVEL", DefaultLogLevel),
		DBPath:           getEnvWithDefault("SYNC_DB_PATH", DefaultDBPath),
		MetricsAddr:      os.Getenv("METRICS_ADDR"),
	}
	return cfg, nil
}

// Validate checks the values a sync run cannot start without and fills in
// derived defaults.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"CREDENTIALS_PATH", c.CredentialsPath},
		{"DRIVE_FOLDER_ID", c.DriveFolderID},
		{"LOCAL_FOLDER", c.LocalFolder},
		{"OUTPUT_FOLDER", c.OutputFolder},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingValue, r.key)
		}
	}

	if c.Interval == 0 {
		interval, err := parseInterval(c.intervalValue)
		if err != nil {
			return err
		}
		c.Interval = interval
	}
	if c.Interval < 0 && c.Schedule == "" {
		return fmt.Errorf("%w: must be positive", ErrInvalidInterval)
	}

	if c.LogDriveFolderID == "" {
		c.LogDriveFolderID = c.DriveFolderID
	}
	return nil
}

// EnsureDirs creates the staging and output folders.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.LocalFolder, c.OutputFolder} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// parseInterval accepts a Go duration ("90s", "5m") or a bare number of seconds.
func parseInterval(value string) (time.Duration, error) {
	if value == "" {
		return DefaultInterval, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, value)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, value)
	}
	return d, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
