// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds a Config from defaults, an optional file and the environment.
//
// Description:
//
//	Priority (lowest to highest):
//	  1. Default()
//	  2. YAML file at path (JSON accepted as a fallback)
//	  3. Environment variables (see applyEnv)
//	The result is validated before it is returned.
//
// Inputs:
//
//	path - Config file path. Empty skips the file stage.
//
// Outputs:
//
//	Config - The validated configuration.
//	error - Non-nil if the file cannot be read or parsed, an environment
//	        variable does not parse, or validation fails.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a Config from defaults and the environment only.
func FromEnv() (Config, error) {
	return Load("")
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return nil
}

// applyEnv overrides cfg from the environment.
//
// Every unparseable value is reported as an ErrInvalidConfig naming the
// variable. The unprefixed PERPLEXITY_AI_THRESHOLD and
// HIGH_CONFIDENCE_THRESHOLD names are honoured for existing deployments;
// the prefixed names win.
func applyEnv(cfg *Config, getenv func(string) string) error {
	e := &envReader{getenv: getenv}

	e.floatVar("PERPLEXITY_AI_THRESHOLD", &cfg.Perplexity.AIThreshold)
	e.floatVar("HIGH_CONFIDENCE_THRESHOLD", &cfg.Verdict.High)

	e.floatVar("PROVENANCE_PERPLEXITY_AI_THRESHOLD", &cfg.Perplexity.AIThreshold)
	e.floatVar("PROVENANCE_PERPLEXITY_HUMAN_THRESHOLD", &cfg.Perplexity.HumanThreshold)
	e.floatVar("PROVENANCE_HIGH_THRESHOLD", &cfg.Verdict.High)
	e.floatVar("PROVENANCE_MEDIUM_THRESHOLD", &cfg.Verdict.Medium)
	e.floatVar("PROVENANCE_LOW_THRESHOLD", &cfg.Verdict.Low)
	e.intVar("PROVENANCE_MAX_CODE_LENGTH", &cfg.Limits.MaxCodeLength)
	e.intVar("PROVENANCE_MAX_TOKENS", &cfg.Limits.MaxTokens)
	e.stringVar("PROVENANCE_LANGUAGE", &cfg.Language)
	e.boolVar("PROVENANCE_PARALLEL", &cfg.Parallel)

	e.boolVar("PROVENANCE_CACHE_ENABLED", &cfg.Cache.Enabled)
	e.intVar("PROVENANCE_CACHE_SIZE", &cfg.Cache.Size)
	e.stringVar("PROVENANCE_CACHE_BACKEND", &cfg.Cache.Backend)
	e.stringVar("PROVENANCE_CACHE_PATH", &cfg.Cache.Path)
	e.durationVar("PROVENANCE_CACHE_TTL", &cfg.Cache.TTL)

	e.stringVar("PROVENANCE_ORACLE_BACKEND", &cfg.Oracle.Backend)
	e.stringVar("PROVENANCE_ORACLE_URL", &cfg.Oracle.BaseURL)
	e.stringVar("PROVENANCE_ORACLE_MODEL", &cfg.Oracle.Model)
	e.stringVar("PROVENANCE_ORACLE_API_KEY", &cfg.Oracle.APIKey)
	e.durationVar("PROVENANCE_ORACLE_TIMEOUT", &cfg.Oracle.Timeout)

	e.stringVar("PROVENANCE_TOKENIZER", &cfg.Tokenizer.Name)
	e.stringVar("PROVENANCE_TOKENIZER_ENCODING", &cfg.Tokenizer.Encoding)

	return errors.Join(e.errs...)
}

// envReader reads typed values and collects parse failures. A failed
// variable leaves its destination untouched.
type envReader struct {
	getenv func(string) string
	errs   []error
}

func (e *envReader) fail(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, value, err))
}

func (e *envReader) floatVar(key string, dst *float64) {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) intVar(key string, dst *int) {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = i
	}
}

func (e *envReader) boolVar(key string, dst *bool) {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) stringVar(key string, dst *string) {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		*dst = v
	}
}

func (e *envReader) durationVar(key string, dst *time.Duration) {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = d
	}
}

// Marshal renders cfg as YAML. Secrets are omitted.
func Marshal(cfg Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
