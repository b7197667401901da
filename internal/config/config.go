// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dotandev/abcmerge/internal/abc"
	"github.com/dotandev/abcmerge/internal/errors"
	"github.com/dotandev/abcmerge/internal/swf"
)

// Config represents the general configuration for abcmerge
type Config struct {
	LogLevel      string `json:"log_level,omitempty"`
	CachePath     string `json:"cache_path,omitempty"`
	CacheEnabled  bool   `json:"cache_enabled"`
	CacheMaxBytes int64  `json:"cache_max_bytes,omitempty"`
	// HistoryPath is the SQLite file recording one row per transcode run.
	HistoryPath    string `json:"history_path,omitempty"`
	HistoryEnabled bool   `json:"history_enabled"`

	StripDebug   bool     `json:"strip_debug"`
	Peephole     bool     `json:"peephole"`
	DropMetadata []string `json:"drop_metadata,omitempty"`
	// KeepDebugTags copies ProductInfo, EnableDebugger, Metadata and similar
	// tags into the output instead of dropping them.
	KeepDebugTags  bool `json:"keep_debug_tags"`
	CompressOutput bool `json:"compress_output"`

	Tracing bool   `json:"tracing"`
	OTLPURL string `json:"otlp_url,omitempty"`
}

func dataDir() string {
	return filepath.Join(os.ExpandEnv("$HOME"), ".abcmerge")
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:       "info",
		CachePath:      filepath.Join(dataDir(), "cache"),
		CacheEnabled:   true,
		CacheMaxBytes:  1024 * 1024 * 1024,
		HistoryPath:    filepath.Join(dataDir(), "history.db"),
		HistoryEnabled: true,
		StripDebug:     true,
		Peephole:       true,
		DropMetadata:   append([]string(nil), abc.DefaultDropMetadata...),
		OTLPURL:        "http://localhost:4318",
	}
}

// Load builds the configuration from defaults, the first config file found
// and ABCMERGE_* environment variables, in increasing precedence.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.loadFromFile(); err != nil {
		return nil, err
	}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigPaths lists the files Load looks at, in order.
func ConfigPaths() []string {
	return []string{
		".abcmerge.toml",
		filepath.Join(os.ExpandEnv("$HOME"), ".abcmerge.toml"),
		"/etc/abcmerge/config.toml",
	}
}

func (c *Config) loadFromFile() error {
	for _, path := range ConfigPaths() {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return errors.WrapConfigError("failed to read config file", err)
		}
		if err := c.parseTOML(string(data)); err != nil {
			return errors.WrapConfigError(path, err)
		}
		return nil
	}
	return nil
}

func (c *Config) loadFromEnv() error {
	for key, field := range c.fields() {
		value, ok := os.LookupEnv("ABCMERGE_" + strings.ToUpper(key))
		if !ok || value == "" {
			continue
		}
		if err := field(value); err != nil {
			return errors.WrapConfigError("ABCMERGE_"+strings.ToUpper(key), err)
		}
	}
	return nil
}

// fields maps each config key to a setter parsing its string form.
func (c *Config) fields() map[string]func(string) error {
	str := func(dst *string) func(string) error {
		return func(v string) error { *dst = v; return nil }
	}
	boolean := func(dst *bool) func(string) error {
		return func(v string) error {
			b, err := parseBool(v)
			*dst = b
			return err
		}
	}
	return map[string]func(string) error{
		"log_level":       str(&c.LogLevel),
		"cache_path":      str(&c.CachePath),
		"cache_enabled":   boolean(&c.CacheEnabled),
		"history_path":    str(&c.HistoryPath),
		"history_enabled": boolean(&c.HistoryEnabled),
		"strip_debug":     boolean(&c.StripDebug),
		"peephole":        boolean(&c.Peephole),
		"keep_debug_tags": boolean(&c.KeepDebugTags),
		"compress_output": boolean(&c.CompressOutput),
		"tracing":         boolean(&c.Tracing),
		"otlp_url":        str(&c.OTLPURL),
		"cache_max_bytes": func(v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("cache_max_bytes: %w", err)
			}
			c.CacheMaxBytes = n
			return nil
		},
		"drop_metadata": func(v string) error {
			c.DropMetadata = splitList(v)
			return nil
		},
	}
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v)
}

// splitList accepts "a, b" as well as the TOML array form ["a", "b"].
func splitList(v string) []string {
	v = strings.TrimSpace(v)
	v = strings.TrimSuffix(strings.TrimPrefix(v, "["), "]")
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.Trim(strings.TrimSpace(p), "\"'"); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) parseTOML(content string) error {
	fields := c.fields()
	for n, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, rawVal, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		rawVal = strings.TrimSpace(rawVal)

		set, known := fields[key]
		if !known {
			continue
		}
		value := rawVal
		if key != "drop_metadata" {
			value = strings.Trim(rawVal, "\"'")
		}
		if err := set(value); err != nil {
			return fmt.Errorf("line %d: %w", n+1, err)
		}
	}
	return nil
}

// Validate runs the default validators.
func (c *Config) Validate() error {
	return RunValidators(c, DefaultValidators())
}

// CodecOptions maps the configuration onto transcoder options.
func (c *Config) CodecOptions() swf.Options {
	opts := swf.DefaultOptions()
	opts.ABC.StripDebug = c.StripDebug
	opts.ABC.Peephole = c.Peephole
	opts.ABC.DropMetadata = c.DropMetadata
	opts.KeepDebugTags = c.KeepDebugTags
	opts.Compress = c.CompressOutput
	return opts
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{LogLevel: %s, Cache: %s (%t), History: %s (%t), StripDebug: %t, Peephole: %t}",
		c.LogLevel, c.CachePath, c.CacheEnabled, c.HistoryPath, c.HistoryEnabled, c.StripDebug, c.Peephole,
	)
}

func (c *Config) WithLogLevel(level string) *Config {
	c.LogLevel = level
	return c
}

func (c *Config) WithCachePath(path string) *Config {
	c.CachePath = path
	return c
}

func (c *Config) WithHistoryPath(path string) *Config {
	c.HistoryPath = path
	return c
}
