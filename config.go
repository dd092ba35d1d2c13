package framegraph

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration read from text such as "16ms" or "30s".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Config holds the settings of a frame graph. ReadyTimeout caps WhenReady and
// is zero (no cap) by default.
type Config struct {
	Name                      string   `yaml:"name" toml:"name"`
	OptimizeTextureAllocation bool     `yaml:"optimize_texture_allocation" toml:"optimize_texture_allocation"`
	ReadyPollInterval         Duration `yaml:"ready_poll_interval" toml:"ready_poll_interval"`
	ReadyTimeout              Duration `yaml:"ready_timeout" toml:"ready_timeout"`
	Debug                     bool     `yaml:"debug" toml:"debug"`
	LogPrefix                 string   `yaml:"log_prefix" toml:"log_prefix"`
}

const DefaultReadyPollInterval = 16 * time.Millisecond

func DefaultConfig() Config {
	return Config{
		Name:              "frame graph",
		ReadyPollInterval: Duration{DefaultReadyPollInterval},
		LogPrefix:         "framegraph",
	}
}

// Validate checks the durations. ReadyTimeout may be zero, meaning no limit.
func (c Config) Validate() error {
	if c.ReadyPollInterval.Duration <= 0 {
		return fmt.Errorf("%w: ready_poll_interval must be positive, got %s", ErrInvalidArgument, c.ReadyPollInterval)
	}
	if c.ReadyTimeout.Duration < 0 {
		return fmt.Errorf("%w: ready_timeout must not be negative, got %s", ErrInvalidArgument, c.ReadyTimeout)
	}
	return nil
}

type ConfigFormat string

const (
	FormatYAML ConfigFormat = "yaml"
	FormatTOML ConfigFormat = "toml"
)

// FormatForPath picks the config format from the file extension.
func FormatForPath(path string) (ConfigFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: unsupported config file %q", ErrInvalidArgument, path)
}

// Decode unmarshals data in the given format into v. Unknown fields are errors.
func Decode(data []byte, format ConfigFormat, v any) error {
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode yaml: %w", err)
		}
		return nil
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("decode toml: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown config format %q", ErrInvalidArgument, format)
}

// ParseConfig reads a Config over the defaults.
func ParseConfig(data []byte, format ConfigFormat) (Config, error) {
	cfg := DefaultConfig()
	if err := Decode(data, format, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadConfig(path string) (Config, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := ParseConfig(data, format)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
