// Package config loads the explorer settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/specvital/explorer/pkg/source"
)

// DefaultFile is the settings file looked up in the project root.
const DefaultFile = ".explorer.yaml"

const (
	DefaultCommand   = "composer test"
	DefaultSeparator = "--"
	DefaultScanner   = "regex"
	DefaultPrefix    = "test_"
	DefaultSignature = "phpunit"
	DefaultKillGrace = 2 * time.Second
)

// Scanners lists the accepted declaration scanner names.
var Scanners = []string{"regex", "ast"}

var (
	ErrEmptyCommand   = errors.New("config: empty command")
	ErrUnknownScanner = errors.New("config: unknown scanner")
	ErrEmptyPrefix    = errors.New("config: empty test prefix")
	ErrNegativeGrace  = errors.New("config: negative kill grace")
)

// Search selects the candidate test files.
type Search struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// Kill tunes how cancelled runner invocations are torn down.
type Kill struct {
	// Signature is matched against command lines when sweeping orphans.
	// Empty disables the sweep.
	Signature string        `yaml:"signature"`
	Grace     time.Duration `yaml:"grace"`
}

type Config struct {
	Search Search `yaml:"search"`
	// Command is the test runner invocation the filter arguments are appended to.
	Command string `yaml:"command"`
	// Separator goes between Command and the filter arguments.
	Separator string `yaml:"separator"`
	Scanner   string `yaml:"scanner"`
	Prefix    string `yaml:"prefix"`
	Kill      Kill   `yaml:"kill"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Search: Search{
			Include: slices.Clone(source.DefaultInclude),
			Exclude: slices.Clone(source.DefaultExclude),
		},
		Command:   DefaultCommand,
		Separator: DefaultSeparator,
		Scanner:   DefaultScanner,
		Prefix:    DefaultPrefix,
		Kill: Kill{
			Signature: DefaultSignature,
			Grace:     DefaultKillGrace,
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := Parse(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML data into cfg and validates the result.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return cfg.Validate()
}

// Validate checks the settings for values the engine cannot work with.
func (c *Config) Validate() error {
	if c.Command == "" {
		return ErrEmptyCommand
	}
	if !slices.Contains(Scanners, c.Scanner) {
		return fmt.Errorf("%w: %q", ErrUnknownScanner, c.Scanner)
	}
	if c.Prefix == "" {
		return ErrEmptyPrefix
	}
	if c.Kill.Grace < 0 {
		return ErrNegativeGrace
	}
	return nil
}
