// Package config loads the daemon's options: a yaml file layered under
// environment overrides, read once at startup. The core components
// never read configuration themselves; they receive plain values.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Options is the effective configuration.
type Options struct {
	// Display selects the X display; empty means $DISPLAY.
	Display string `yaml:"display"`

	// DisableSHM turns shared-memory capture off entirely
	// (diagnostics; the slow GetImage path is used instead).
	DisableSHM bool `yaml:"disable_shm"`

	// Synchronous forces checked protocol requests so errors surface
	// at the call site (diagnostics).
	Synchronous bool `yaml:"synchronous"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Defaults returns the built-in configuration.
func Defaults() *Options {
	return &Options{
		LogLevel: "info",
	}
}

// DefaultConfigPath returns ~/.config/xmirror/config.yaml.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "xmirror", "config.yaml"), nil
}

// Load reads the options from the standard location; a missing file
// yields defaults.
func Load() (*Options, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads path, then applies environment overrides.
func LoadFromPath(path string) (*Options, error) {
	opts := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// no file is fine
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, opts); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	applyEnv(opts, os.Getenv)
	return opts, nil
}

// applyEnv layers XMIRROR_* variables over opts. Split out so override
// precedence tests without touching the process environment.
func applyEnv(opts *Options, getenv func(string) string) {
	if v := getenv("XMIRROR_DISPLAY"); v != "" {
		opts.Display = v
	}
	if v := getenv("XMIRROR_NOSHM"); v != "" {
		opts.DisableSHM = truthy(v)
	}
	if v := getenv("XMIRROR_SYNC"); v != "" {
		opts.Synchronous = truthy(v)
	}
	if v := getenv("XMIRROR_LOG"); v != "" {
		opts.LogLevel = v
	}
}

func truthy(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

// SlogLevel translates LogLevel for handler construction; unknown
// values fall back to info.
func (o *Options) SlogLevel() slog.Level {
	switch o.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
