// Package config loads bindctl settings from TOML files. Keys that are not
// present in the file keep their defaults.
package config

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Log output formats.
const (
	FormatAuto    = "auto"
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config holds the runtime settings of bindctl.
type Config struct {
	// LogLevel is the minimum level written by the logger.
	LogLevel zerolog.Level
	// LogFormat is FormatAuto, FormatConsole or FormatJSON. Auto picks
	// console output when stderr is a terminal.
	LogFormat string
	// MetricsNamespace prefixes every exported metric name.
	MetricsNamespace string
	// FailFast stops a scenario at the first failing command.
	FailFast bool
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		LogLevel:         zerolog.InfoLevel,
		LogFormat:        FormatAuto,
		MetricsNamespace: "bind",
		FailFast:         true,
	}
}

type fileConfig struct {
	LogLevel         string `toml:"log_level"`
	LogFormat        string `toml:"log_format"`
	MetricsNamespace string `toml:"metrics_namespace"`
	FailFast         bool   `toml:"fail_fast"`
}

// Load reads path and overlays the keys it defines on Default().
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, errors.Wrap(err, "load config")
	}
	return overlay(Default(), raw, meta)
}

// Parse is Load for an in-memory document.
func Parse(doc string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(doc, &raw)
	if err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	return overlay(Default(), raw, meta)
}

func overlay(cfg Config, raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	if meta.IsDefined("log_level") {
		lvl, err := zerolog.ParseLevel(strings.TrimSpace(raw.LogLevel))
		if err != nil {
			return Config{}, errors.Wrap(err, "parse log_level")
		}
		cfg.LogLevel = lvl
	}

	if meta.IsDefined("log_format") {
		switch f := strings.ToLower(strings.TrimSpace(raw.LogFormat)); f {
		case FormatAuto, FormatConsole, FormatJSON:
			cfg.LogFormat = f
		default:
			return Config{}, errors.Errorf("parse log_format: unknown format %q", raw.LogFormat)
		}
	}

	if meta.IsDefined("metrics_namespace") {
		cfg.MetricsNamespace = strings.TrimSpace(raw.MetricsNamespace)
	}

	if meta.IsDefined("fail_fast") {
		cfg.FailFast = raw.FailFast
	}

	return cfg, nil
}
