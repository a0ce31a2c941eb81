// Package config loads server settings from an optional YAML file with
// environment overrides under the ACCORD_ prefix.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DefaultShutdownTimeout   = "30s"
	DefaultPivotWindow       = "30m"
	DefaultSweepInterval     = "1m"
	DefaultClassifierTimeout = "5s"
)

type Config struct {
	BindAddr          string  `yaml:"bindAddr"          split_words:"true"`
	Port              uint    `yaml:"port"`
	MetricsBindAddr   string  `yaml:"metricsBindAddr"   split_words:"true"`
	MetricsPort       uint    `yaml:"metricsPort"       split_words:"true"`
	DatabasePath      string  `yaml:"databasePath"      split_words:"true"`
	JwtSecret         string  `yaml:"jwtSecret"         split_words:"true"`
	VoteThreshold     float64 `yaml:"voteThreshold"     split_words:"true"`
	PivotWindow       string  `yaml:"pivotWindow"       split_words:"true"`
	SweepInterval     string  `yaml:"sweepInterval"     split_words:"true"`
	ClassifierURL     string  `yaml:"classifierUrl"     envconfig:"CLASSIFIER_URL"`
	ClassifierTimeout string  `yaml:"classifierTimeout" split_words:"true"`
	ShutdownTimeout   string  `yaml:"shutdownTimeout"   split_words:"true"`
	LogLevel          string  `yaml:"logLevel"          split_words:"true"`
	LogFormat         string  `yaml:"logFormat"         split_words:"true"`

	// Parsed by Validate so callers never re-handle parse errors.
	pivotWindow       time.Duration
	sweepInterval     time.Duration
	classifierTimeout time.Duration
	shutdownTimeout   time.Duration
}

var globalConfig = &Config{
	BindAddr:          "0.0.0.0",
	Port:              8080,
	MetricsBindAddr:   "127.0.0.1",
	MetricsPort:       9090,
	DatabasePath:      "./data/accord.db",
	JwtSecret:         "",
	VoteThreshold:     0.6,
	PivotWindow:       DefaultPivotWindow,
	SweepInterval:     DefaultSweepInterval,
	ClassifierURL:     "",
	ClassifierTimeout: DefaultClassifierTimeout,
	ShutdownTimeout:   DefaultShutdownTimeout,
	LogLevel:          "info",
	LogFormat:         "text",
}

// LoadConfig reads the YAML file if one is given or found in the default
// locations, overlays ACCORD_* environment variables, and validates the
// result.
func LoadConfig(configFile string) (*Config, error) {
	if configFile == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".accord", "accord.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		if configFile == "" {
			systemPath := "/etc/accord/accord.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, globalConfig); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := envconfig.Process("accord", globalConfig); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	if err := globalConfig.Validate(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}

// Validate checks ranges and parses duration strings. It must succeed
// before the duration accessors are used.
func (c *Config) Validate() error {
	if c.VoteThreshold <= 0 || c.VoteThreshold > 1 {
		return fmt.Errorf(
			"voteThreshold must be in (0, 1], got %v",
			c.VoteThreshold,
		)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf(
			"logFormat must be 'text' or 'json', got %q",
			c.LogFormat,
		)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf(
			"logLevel must be one of debug, info, warn, error; got %q",
			c.LogLevel,
		)
	}

	var err error
	if c.pivotWindow, err = parsePositive("pivotWindow", c.PivotWindow); err != nil {
		return err
	}
	if c.sweepInterval, err = parsePositive("sweepInterval", c.SweepInterval); err != nil {
		return err
	}
	if c.classifierTimeout, err = parsePositive("classifierTimeout", c.ClassifierTimeout); err != nil {
		return err
	}
	if c.shutdownTimeout, err = parsePositive("shutdownTimeout", c.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}

func parsePositive(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", name, value)
	}
	return d, nil
}

func (c *Config) PivotWindowDuration() time.Duration       { return c.pivotWindow }
func (c *Config) SweepIntervalDuration() time.Duration     { return c.sweepInterval }
func (c *Config) ClassifierTimeoutDuration() time.Duration { return c.classifierTimeout }
func (c *Config) ShutdownTimeoutDuration() time.Duration   { return c.shutdownTimeout }
