// Package config holds the daemon settings read from a YAML file
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/speters/oszid/oszi"
)

// Config of the oszid daemon
type Config struct {
	Link           string        `yaml:"link"`
	Baud           int           `yaml:"baud"`
	Driver         string        `yaml:"driver"`
	HTTP           string        `yaml:"http"` // API listen address, empty disables the API
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	Log            LogConfig     `yaml:"log"`
	Timeouts       oszi.Timeouts `yaml:"timeouts"`
}

// LogConfig selects the logrus level and output format
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the settings used when no file is given
func Default() *Config {
	return &Config{
		Link:           "/dev/ttyUSB0",
		Baud:           115200,
		Driver:         oszi.DriverTarm,
		ReconnectDelay: 12 * time.Second,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Timeouts: oszi.DefaultTimeouts(),
	}
}

// Load reads the YAML file at path over the defaults and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %v: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %v: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that all values are usable
func (c *Config) Validate() error {
	var errs []error
	if c.Link == "" {
		errs = append(errs, errors.New("link must not be empty"))
	}
	if c.Baud <= 0 {
		errs = append(errs, fmt.Errorf("baud must be positive, got %d", c.Baud))
	}
	if _, err := oszi.NewOpener(c.Driver); err != nil {
		errs = append(errs, err)
	}
	if c.ReconnectDelay <= 0 {
		errs = append(errs, fmt.Errorf("reconnect_delay must be positive, got %v", c.ReconnectDelay))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.Log.Format))
	}
	for name, d := range map[string]time.Duration{
		"handshake":     c.Timeouts.Handshake,
		"response":      c.Timeouts.Response,
		"terminator":    c.Timeouts.Terminator,
		"waveform_idle": c.Timeouts.WaveformIdle,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("timeouts.%s must be positive, got %v", name, d))
		}
	}
	return errors.Join(errs...)
}

// Formatter returns the logrus formatter selected by Log.Format
func (c *Config) Formatter() logrus.Formatter {
	if c.Log.Format == "json" {
		return &logrus.JSONFormatter{}
	}
	return &logrus.TextFormatter{FullTimestamp: true}
}
