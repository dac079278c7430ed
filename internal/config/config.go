package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dshills/tabparse/internal/logging"
)

var (
	// ErrParsingConfig is returned when environment variables cannot be parsed into Config
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	// ErrInvalidConfig is returned when a parsed value is out of range
	ErrInvalidConfig = errors.New("invalid config")
)

// DefaultDBPath is the database location used when TABPARSE_DB_PATH is unset
const DefaultDBPath = "~/.tabparse/tabparse.db"

// Config holds runtime settings read from the environment
type Config struct {
	DBPath           string        `env:"TABPARSE_DB_PATH" envDefault:"~/.tabparse/tabparse.db"`
	LogLevel         string        `env:"TABPARSE_LOG_LEVEL" envDefault:"info"`
	LogFormat        string        `env:"TABPARSE_LOG_FORMAT" envDefault:"text"`
	Workers          int           `env:"TABPARSE_WORKERS" envDefault:"0"` // 0 means runtime.NumCPU()
	BatchSize        int           `env:"TABPARSE_BATCH_SIZE" envDefault:"500"`
	PatternCacheSize int           `env:"TABPARSE_PATTERN_CACHE_SIZE" envDefault:"128"`
	WatchDebounce    time.Duration `env:"TABPARSE_WATCH_DEBOUNCE" envDefault:"500ms"`
}

// Load reads optional dotenv files (".env" when none are given), then parses
// the environment. Variables already set win over dotenv values. Missing
// dotenv files are ignored.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and the log settings
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("%w: database path is empty", ErrInvalidConfig)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be > 0, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.PatternCacheSize <= 0 {
		return fmt.Errorf("%w: pattern cache size must be > 0, got %d", ErrInvalidConfig, c.PatternCacheSize)
	}
	if c.WatchDebounce < 0 {
		return fmt.Errorf("%w: watch debounce must be >= 0, got %s", ErrInvalidConfig, c.WatchDebounce)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := logging.ParseFormat(c.LogFormat); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ResolveDBPath expands a leading ~ and creates the parent directory.
// ":memory:" is returned unchanged.
func (c *Config) ResolveDBPath() (string, error) {
	path, err := ExpandHome(c.DBPath)
	if err != nil {
		return "", err
	}
	if path == ":memory:" {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return path, nil
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Logger builds the logger described by LogLevel and LogFormat
func (c *Config) Logger() (*slog.Logger, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.LogFormat)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.WithLevel(level), logging.WithFormat(format)), nil
}
