package geopackage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Options configures a container handle. Everything except Logger can be
// loaded from YAML.
type Options struct {
	Path        string        `yaml:"path"`
	LogLevel    string        `yaml:"log_level"`
	ForeignKeys bool          `yaml:"foreign_keys"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// SpatialReferenceSystems are seeded by CreateRequired in addition to
	// the defaults.
	SpatialReferenceSystems []SpatialReferenceSystem `yaml:"spatial_reference_systems"`

	Logger *slog.Logger `yaml:"-"`
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() *Options {
	return &Options{
		LogLevel:    "info",
		ForeignKeys: true,
		BusyTimeout: 5 * time.Second,
	}
}

// LoadOptions reads YAML on top of DefaultOptions.
func LoadOptions(r io.Reader) (*Options, error) {
	opts := DefaultOptions()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(opts); err != nil && err != io.EOF {
		return nil, fmt.Errorf("geopackage: options: %w", err)
	}
	if _, err := opts.Level(); err != nil {
		return nil, err
	}
	for _, srs := range opts.SpatialReferenceSystems {
		if err := srs.validate(); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

// ReadOptionsFile is LoadOptions on a file.
func ReadOptionsFile(path string) (*Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geopackage: options: %w", err)
	}
	defer f.Close()
	return LoadOptions(f)
}

// Level parses LogLevel.
func (o *Options) Level() (slog.Level, error) {
	switch strings.ToLower(o.LogLevel) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("geopackage: options: unknown log level %q", o.LogLevel)
	}
}
