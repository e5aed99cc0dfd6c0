package config

import (
	"fmt"
	"time"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "flashgen.yaml"

// Config represents a flashgen.yaml file.
// All values are optional and act as defaults for flashgen export flags.
// CLI flags always override config values.
type Config struct {
	Name          string        `yaml:"name"`
	ManifestDir   string        `yaml:"manifest_dir"`
	OutputDir     string        `yaml:"output_dir"`
	Descriptor    string        `yaml:"descriptor"`
	Template      string        `yaml:"template"`
	StrictSymbols bool          `yaml:"strict_symbols"`
	RecordEvents  string        `yaml:"record_events"`
	Build         BuildConfig   `yaml:"build"`
	Tools         ToolsConfig   `yaml:"tools"`
	Publish       PublishConfig `yaml:"publish"`
	Notify        NotifyConfig  `yaml:"notify"`
}

// BuildConfig overrides the build command.
type BuildConfig struct {
	Command []string `yaml:"command"`
	Env     []string `yaml:"env"`
}

// ToolsConfig overrides the binutils program names.
type ToolsConfig struct {
	NM      string `yaml:"nm"`
	Objdump string `yaml:"objdump"`
	Objcopy string `yaml:"objcopy"`
}

// PublishConfig holds artifact store defaults.
type PublishConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// NotifyConfig holds notification defaults.
type NotifyConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Validate checks enumerated values. Presence of required fields is
// checked after flags are merged.
func (c *Config) Validate() error {
	switch c.Publish.Backend {
	case "", "fs", "s3":
	default:
		return fmt.Errorf("publish.backend must be fs or s3, got %q", c.Publish.Backend)
	}
	switch c.Notify.Type {
	case "", "webhook", "redis":
	default:
		return fmt.Errorf("notify.type must be webhook or redis, got %q", c.Notify.Type)
	}
	if c.Notify.Retries != nil && *c.Notify.Retries < 0 {
		return fmt.Errorf("notify.retries must be >= 0, got %d", *c.Notify.Retries)
	}
	return nil
}

// Duration wraps time.Duration for YAML strings such as "10s".
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
