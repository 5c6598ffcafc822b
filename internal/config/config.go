// Package config loads and validates the cranebuilder.yaml configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/cranebuilder/internal/foundation/errors"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "cranebuilder.yaml"

// Config represents the application configuration.
type Config struct {
	Paths    PathsConfig     `yaml:"paths"`
	Build    BuildConfig     `yaml:"build"`
	Builders []BuilderConfig `yaml:"builders"`
	Logging  LoggingConfig   `yaml:"logging"`
	Metrics  MetricsConfig   `yaml:"metrics"`
	History  HistoryConfig   `yaml:"history"`
	Notify   NotifyConfig    `yaml:"notify"`
	Watch    WatchConfig     `yaml:"watch"`
	Schedule ScheduleConfig  `yaml:"schedule"`
}

// PathsConfig locates the trees and files a run reads and writes.
type PathsConfig struct {
	Src        string `yaml:"src"`
	Dest       string `yaml:"dest"`
	Manifest   string `yaml:"manifest"`
	Reports    string `yaml:"reports"`
	ConfigFile string `yaml:"config_file"` // built after every other file
}

// BuildConfig tunes the dispatcher.
type BuildConfig struct {
	Concurrency int           `yaml:"concurrency"` // 0 = unbounded
	Timeout     time.Duration `yaml:"timeout"`     // per file, 0 = none
}

// BuilderConfig binds a glob pattern to a builder kind. Order matters: the
// first matching pattern wins.
type BuilderConfig struct {
	Pattern string         `yaml:"pattern"`
	Kind    BuilderKind    `yaml:"kind"`
	Options map[string]any `yaml:"options,omitempty"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// MetricsConfig enables Prometheus metrics.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"` // written after CLI runs
	Listen   string `yaml:"listen,omitempty"`   // /metrics address for watch and daemon
}

// HistoryConfig enables the sqlite run index.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// NotifyConfig enables publishing run summaries to NATS.
type NotifyConfig struct {
	URL        string        `yaml:"url,omitempty"`
	Subject    string        `yaml:"subject,omitempty"`
	MaxRetries int           `yaml:"max_retries,omitempty"`
	Backoff    time.Duration `yaml:"backoff,omitempty"`
}

// WatchConfig tunes the watch command.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Ignore   []string      `yaml:"ignore,omitempty"`
}

// ScheduleConfig tunes the daemon command. Cron wins over Interval.
type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval,omitempty"`
	Cron     string        `yaml:"cron,omitempty"`
}

// Load reads, expands, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	// A missing .env is not an error.
	_ = loadEnvFile()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.ConfigError(fmt.Sprintf("configuration file not found: %s", path)).
				WithContext("hint", "run 'cranebuilder init' to create one").
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").Fatal().Build()
	}
	return Parse(data)
}

// Parse builds a Config from YAML content. ${VAR} references are expanded
// from the environment before decoding.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to unmarshal config").Fatal().UserAction().Build()
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Example returns the configuration written by Init.
func Example() *Config {
	cfg := &Config{
		Builders: []BuilderConfig{
			{Pattern: "config.json", Kind: BuilderJSON, Options: map[string]any{"summary": true}},
			{Pattern: "**/*.bundle", Kind: BuilderBundle},
			{Pattern: "**/*.md", Kind: BuilderMarkdown},
			{Pattern: "**/*.html", Kind: BuilderHTML},
			{Pattern: "**/*.json", Kind: BuilderJSON},
			{Pattern: "**/*.{js,css,png,jpg,svg}", Kind: BuilderCopy},
		},
		Watch: WatchConfig{Ignore: []string{".git/**", "**/*.swp", "**/*~"}},
	}
	applyDefaults(cfg)
	return cfg
}

// Init creates a new configuration file with example content.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", path)).Build()
	}

	data, err := yaml.Marshal(Example())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// #nosec G306 -- configuration is not secret
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ferrors.FileSystemError("failed to write config file").WithCause(err).WithContext("path", path).Build()
	}
	return nil
}
