// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/dotandev/abcmerge/internal/errors"
	"github.com/dotandev/abcmerge/internal/logger"
)

// Validator validates a specific aspect of the configuration.
type Validator interface {
	Validate(cfg *Config) error
}

// LogLevelValidator checks that the log level is a known value.
type LogLevelValidator struct{}

func (v LogLevelValidator) Validate(cfg *Config) error {
	if cfg.LogLevel == "" {
		return nil
	}
	if _, ok := logger.ParseLevel(cfg.LogLevel); !ok {
		return errors.WrapValidationError("log_level must be one of: debug, info, warn, error")
	}
	return nil
}

// CacheValidator checks the output cache settings when the cache is on.
type CacheValidator struct{}

func (v CacheValidator) Validate(cfg *Config) error {
	if !cfg.CacheEnabled {
		return nil
	}
	if cfg.CachePath != "" && !filepath.IsAbs(cfg.CachePath) {
		return errors.WrapValidationError("cache_path must be an absolute path")
	}
	if cfg.CacheMaxBytes <= 0 {
		return errors.WrapValidationError(fmt.Sprintf("cache_max_bytes must be positive, got %d", cfg.CacheMaxBytes))
	}
	return nil
}

// HistoryValidator checks that the history database path, when set, is
// absolute.
type HistoryValidator struct{}

func (v HistoryValidator) Validate(cfg *Config) error {
	if cfg.HistoryEnabled && cfg.HistoryPath != "" && !filepath.IsAbs(cfg.HistoryPath) {
		return errors.WrapValidationError("history_path must be an absolute path")
	}
	return nil
}

// TracingValidator checks the OTLP endpoint when tracing is on.
type TracingValidator struct{}

func (v TracingValidator) Validate(cfg *Config) error {
	if !cfg.Tracing {
		return nil
	}
	u, err := url.Parse(cfg.OTLPURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.WrapValidationError("otlp_url must be an http or https URL")
	}
	return nil
}

// DefaultValidators returns the standard set of validators.
func DefaultValidators() []Validator {
	return []Validator{
		LogLevelValidator{},
		CacheValidator{},
		HistoryValidator{},
		TracingValidator{},
	}
}

// RunValidators executes each validator against the config, returning the
// first error encountered.
func RunValidators(cfg *Config, validators []Validator) error {
	for _, v := range validators {
		if err := v.Validate(cfg); err != nil {
			return err
		}
	}
	return nil
}
