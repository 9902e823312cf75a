// Package config loads the analysis configuration from YAML, fills defaults and
// validates it.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the complete analysis configuration
type Config struct {
	Window    WindowConfig    `yaml:"window" json:"window"`
	Density   DensityConfig   `yaml:"density" json:"density"`
	Alignment AlignmentConfig `yaml:"alignment" json:"alignment"`
	Workers   int             `yaml:"workers" json:"workers" validate:"gte=0,lte=64"` // 0 = auto-detect
	Output    OutputConfig    `yaml:"output" json:"output"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Features  []Feature       `yaml:"features" json:"features" validate:"dive"`
}

// WindowConfig controls window generation
type WindowConfig struct {
	Length int `yaml:"length" json:"length" default:"500" validate:"gte=1"`
	Step   int `yaml:"step" json:"step" default:"50" validate:"gte=1"`
}

// DensityConfig controls the overlap density estimate
type DensityConfig struct {
	Bandwidth  float64 `yaml:"bandwidth" json:"bandwidth" default:"0.02" validate:"gt=0,lte=1"`
	GridPoints int     `yaml:"grid_points" json:"grid_points" default:"512" validate:"gte=2,lte=65536"`
}

// AlignmentConfig describes the symbols of the input alignment
type AlignmentConfig struct {
	Missing string `yaml:"missing" json:"missing" default:"-N?." validate:"required"`
}

// OutputConfig selects where and how tables are written
type OutputConfig struct {
	Dir                 string `yaml:"dir" json:"dir" default:"results" validate:"required"` // local directory or s3://bucket/prefix
	Compression         string `yaml:"compression" json:"compression" default:"none" validate:"oneof=none zstd"`
	SQLite              string `yaml:"sqlite" json:"sqlite"`   // optional results database
	Metrics             string `yaml:"metrics" json:"metrics"` // optional Prometheus textfile
	SkipWindowDistances bool   `yaml:"skip_window_distances" json:"skip_window_distances"`
	Overwrite           bool   `yaml:"overwrite" json:"overwrite"` // replace an earlier run in Dir
}

// LoggingConfig mirrors logger.Config
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" default:"console" validate:"oneof=console json"`
	Output string `yaml:"output" json:"output" default:"stderr" validate:"required"`
}

// Feature is a named genome region used to annotate windows
type Feature struct {
	Name  string `yaml:"name" json:"name" validate:"required"`
	Start int    `yaml:"start" json:"start" validate:"gte=0"`
	End   int    `yaml:"end" json:"end" validate:"gtfield=Start"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	var c Config
	if err := c.finish(); err != nil {
		panic(err)
	}
	return &c
}

// Load reads, defaults and validates a YAML configuration file
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse is Load for an in-memory document
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.finish(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) finish() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("set config defaults: %w", err)
	}
	return c.Validate()
}

// Validate checks the configuration constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// FeatureAt returns the name of the first feature containing pos, or ""
func (c *Config) FeatureAt(pos int) string {
	for _, f := range c.Features {
		if pos >= f.Start && pos < f.End {
			return f.Name
		}
	}
	return ""
}

// Print displays the effective configuration
func (c *Config) Print(w io.Writer) {
	workers := "auto"
	if c.Workers > 0 {
		workers = fmt.Sprintf("%d", c.Workers)
	}
	fmt.Fprintf(w, "Configuration:\n")
	fmt.Fprintf(w, "  Window: %d bp, step %d bp\n", c.Window.Length, c.Window.Step)
	fmt.Fprintf(w, "  Density: bandwidth %g, %d grid points\n", c.Density.Bandwidth, c.Density.GridPoints)
	fmt.Fprintf(w, "  Missing symbols: %q\n", c.Alignment.Missing)
	fmt.Fprintf(w, "  Workers: %s\n", workers)
	fmt.Fprintf(w, "  Output: %s (compression: %s)\n", c.Output.Dir, c.Output.Compression)
	if c.Output.SQLite != "" {
		fmt.Fprintf(w, "  SQLite: %s\n", c.Output.SQLite)
	}
	if c.Output.Metrics != "" {
		fmt.Fprintf(w, "  Metrics: %s\n", c.Output.Metrics)
	}
	if len(c.Features) > 0 {
		fmt.Fprintf(w, "  Features: %d\n", len(c.Features))
		for _, f := range c.Features {
			fmt.Fprintf(w, "    %s: %d-%d\n", f.Name, f.Start, f.End)
		}
	}
}
