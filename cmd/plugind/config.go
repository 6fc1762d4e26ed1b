package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envPrefix is prepended to every variable name below.
const envPrefix = "PLUGIN_"

// Config holds the plugind settings. Every field is read from a PLUGIN_*
// environment variable.
type Config struct {
	Name         string `env:"NAME" envDefault:"plugind"`
	DBPath       string `env:"DB_PATH" envDefault:"plugind.db"`
	ManifestPath string `env:"MANIFEST"`
	SeedPath     string `env:"SEED"`
	InputPath    string `env:"INPUT" envDefault:"-"`
	FailFast     bool   `env:"FAIL_FAST"`

	MetricsAddr string `env:"METRICS_ADDR"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	OTelDisabled bool   `env:"OTEL_DISABLED"`
}

// ParseConfig reads Config from environ, or from the process environment
// when environ is nil. A single positional argument overrides InputPath.
func ParseConfig(args []string, environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{Prefix: envPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	switch len(args) {
	case 0:
	case 1:
		cfg.InputPath = args[0]
	default:
		return Config{}, fmt.Errorf("expected at most one input path, got %d arguments", len(args))
	}

	if _, err := cfg.level(); err != nil {
		return Config{}, err
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("%sLOG_FORMAT must be text or json, got %q", envPrefix, cfg.LogFormat)
	}
	return cfg, nil
}

func (c Config) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%sLOG_LEVEL: %w", envPrefix, err)
	}
	return lvl, nil
}
