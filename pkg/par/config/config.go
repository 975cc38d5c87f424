package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

const (
	DefaultHullSplitThreshold = 4096
	DefaultHullBlockSize      = 1024
	DefaultNamespace          = "ogpar"
	DefaultSubsystem          = "pool"
)

var ErrInvalid = errors.New("invalid config")

// Config tunes the pool and the parallel decoder.
type Config struct {
	// Workers is the pool size; 0 means runtime.NumCPU().
	Workers int `toml:"workers"`

	// HullSplitThreshold is the element count from which a hull job may
	// split into blocks. 0 disables splitting.
	HullSplitThreshold int `toml:"hull_split_threshold"`
	HullBlockSize      int `toml:"hull_block_size"`

	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
	Subsystem string `toml:"subsystem"`
}

func Default() Config {
	return Config{
		HullSplitThreshold: DefaultHullSplitThreshold,
		HullBlockSize:      DefaultHullBlockSize,
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Namespace: DefaultNamespace,
			Subsystem: DefaultSubsystem,
		},
	}
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses a TOML file.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: %s: unknown key %s", ErrInvalid, path, undecoded[0])
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalid, c.Workers)
	}
	if c.HullSplitThreshold < 0 {
		return fmt.Errorf("%w: hull_split_threshold must be >= 0, got %d", ErrInvalid, c.HullSplitThreshold)
	}
	if c.HullBlockSize <= 0 {
		return fmt.Errorf("%w: hull_block_size must be > 0, got %d", ErrInvalid, c.HullBlockSize)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalid, c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json", "logfmt":
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// Logger builds a logger writing to w as configured by the log table.
func (c Config) Logger(w io.Writer, prefix string) *log.Logger {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		level = log.WarnLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:     level,
		Prefix:    prefix,
		Formatter: formatter(c.Log.Format),
	})
}

func formatter(name string) log.Formatter {
	switch name {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}
