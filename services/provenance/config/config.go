// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the scorer's tunable thresholds and weights.
//
// A Config is a value object: it is validated once, then passed by value
// and never mutated. Construct one with Default, New or Load; every path
// ends in Validate.
package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid provenance config")

// weightTolerance is the relative tolerance on the weight sum.
const weightTolerance = 1e-5

var validate = validator.New()

// =============================================================================
// Sections
// =============================================================================

// PerplexityConfig bounds the perplexity-to-score interpolation.
type PerplexityConfig struct {
	// AIThreshold: perplexity at or below this maps to a score of 1.0.
	AIThreshold float64 `yaml:"ai_threshold" json:"ai_threshold" validate:"gt=0"`

	// HumanThreshold: perplexity at or above this maps to a score of 0.0.
	HumanThreshold float64 `yaml:"human_threshold" json:"human_threshold" validate:"gt=0"`
}

// StructuralConfig holds the syntax-tree rule thresholds.
type StructuralConfig struct {
	DepthVarianceThreshold float64 `yaml:"depth_variance_threshold" json:"depth_variance_threshold" validate:"gte=0"`
	ComplexityThreshold    float64 `yaml:"complexity_threshold" json:"complexity_threshold" validate:"gte=0"`
}

// StyleConfig holds the style rule thresholds.
type StyleConfig struct {
	CommentRatioThreshold float64 `yaml:"comment_ratio_threshold" json:"comment_ratio_threshold" validate:"gte=0,lte=1"`
	NamingLengthThreshold float64 `yaml:"naming_length_threshold" json:"naming_length_threshold" validate:"gte=0"`
}

// Weights are the aggregation weights of the three signals.
type Weights struct {
	Perplexity float64 `yaml:"perplexity" json:"perplexity" validate:"gte=0,lte=1"`
	Structural float64 `yaml:"structural" json:"structural" validate:"gte=0,lte=1"`
	Style      float64 `yaml:"style" json:"style" validate:"gte=0,lte=1"`
}

// Total returns the sum of all weights.
func (w Weights) Total() float64 {
	return w.Perplexity + w.Structural + w.Style
}

// Thresholds are the inclusive lower bounds of the LOW, MEDIUM and HIGH tiers.
type Thresholds struct {
	Low    float64 `yaml:"low" json:"low" validate:"gte=0,lte=1"`
	Medium float64 `yaml:"medium" json:"medium" validate:"gte=0,lte=1"`
	High   float64 `yaml:"high" json:"high" validate:"gte=0,lte=1"`
}

// ConflictConfig defines when the statistical and structural signals disagree.
type ConflictConfig struct {
	PerplexityThreshold float64 `yaml:"perplexity_threshold" json:"perplexity_threshold" validate:"gte=0"`
	StructuralThreshold float64 `yaml:"structural_threshold" json:"structural_threshold" validate:"gte=0,lte=1"`
}

// LimitsConfig bounds the work done per submission.
type LimitsConfig struct {
	// MaxCodeLength is the truncation bound in characters (runes).
	MaxCodeLength int `yaml:"max_code_length" json:"max_code_length" validate:"gt=0"`

	// MaxTokens caps the token sequence sent to the oracle.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens" validate:"gt=0"`
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Size    int           `yaml:"size" json:"size" validate:"gte=0"`
	Backend string        `yaml:"backend" json:"backend" validate:"oneof=memory badger"`
	Path    string        `yaml:"path" json:"path"`
	TTL     time.Duration `yaml:"ttl" json:"ttl" validate:"gte=0"`
}

// OracleConfig selects the language model that supplies token loss.
type OracleConfig struct {
	// Backend is "none", "http" or "openai".
	Backend string        `yaml:"backend" json:"backend" validate:"oneof=none http openai"`
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Model   string        `yaml:"model" json:"model"`
	APIKey  string        `yaml:"-" json:"-"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
}

// TokenizerConfig selects the tokenizer used ahead of the oracle.
type TokenizerConfig struct {
	// Name is "tiktoken" or "bytes".
	Name     string `yaml:"name" json:"name" validate:"oneof=tiktoken bytes"`
	Encoding string `yaml:"encoding" json:"encoding"`
}

// =============================================================================
// Config
// =============================================================================

// Config is the complete, validated scorer configuration.
type Config struct {
	Perplexity PerplexityConfig `yaml:"perplexity" json:"perplexity"`
	Structural StructuralConfig `yaml:"structural" json:"structural"`
	Style      StyleConfig      `yaml:"style" json:"style"`
	Weights    Weights          `yaml:"weights" json:"weights"`
	Verdict    Thresholds       `yaml:"verdict" json:"verdict"`
	Conflict   ConflictConfig   `yaml:"conflict" json:"conflict"`
	Limits     LimitsConfig     `yaml:"limits" json:"limits"`

	// Language selects the syntax profile: "python", "javascript" or "go".
	Language string `yaml:"language" json:"language" validate:"oneof=python javascript go"`

	// Parallel runs the three extractors concurrently.
	Parallel bool `yaml:"parallel" json:"parallel"`

	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Oracle    OracleConfig    `yaml:"oracle" json:"oracle"`
	Tokenizer TokenizerConfig `yaml:"tokenizer" json:"tokenizer"`
}

// Default returns the calibrated defaults.
func Default() Config {
	return Config{
		Perplexity: PerplexityConfig{AIThreshold: 10.0, HumanThreshold: 60.0},
		Structural: StructuralConfig{DepthVarianceThreshold: 2.0, ComplexityThreshold: 3.0},
		Style:      StyleConfig{CommentRatioThreshold: 0.05, NamingLengthThreshold: 8.0},
		Weights:    Weights{Perplexity: 0.6, Structural: 0.25, Style: 0.15},
		Verdict:    Thresholds{Low: 0.30, Medium: 0.45, High: 0.65},
		Conflict:   ConflictConfig{PerplexityThreshold: 15.0, StructuralThreshold: 0.4},
		Limits:     LimitsConfig{MaxCodeLength: 50000, MaxTokens: 1024},
		Language:   "python",
		Cache: CacheConfig{
			Enabled: true,
			Size:    500,
			Backend: "memory",
			TTL:     24 * time.Hour,
		},
		Oracle: OracleConfig{
			Backend: "none",
			Model:   "gpt2",
			Timeout: 30 * time.Second,
		},
		Tokenizer: TokenizerConfig{Name: "tiktoken", Encoding: "cl100k_base"},
	}
}

// Validate checks every invariant of cfg.
//
// Description:
//
//	Field bounds are declared as struct tags and checked by the validator.
//	Cross-field invariants are checked here:
//	  - weights sum to 1.0 within a relative tolerance of 1e-5
//	  - 0 <= Low < Medium < High <= 1
//	  - AIThreshold < HumanThreshold
//
// Inputs:
//
//	cfg - The configuration to check. Not modified.
//
// Outputs:
//
//	error - nil if valid, otherwise wraps ErrInvalidConfig.
//
// Thread Safety: Pure function, safe for concurrent use.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	total := cfg.Weights.Total()
	if !isClose(total, 1.0, weightTolerance) {
		return fmt.Errorf("%w: weights must sum to 1.0, got %g", ErrInvalidConfig, total)
	}

	v := cfg.Verdict
	if !(0 <= v.Low && v.Low < v.Medium && v.Medium < v.High && v.High <= 1) {
		return fmt.Errorf("%w: thresholds must be ordered 0 <= low < medium < high <= 1, got %g/%g/%g",
			ErrInvalidConfig, v.Low, v.Medium, v.High)
	}

	if cfg.Perplexity.AIThreshold >= cfg.Perplexity.HumanThreshold {
		return fmt.Errorf("%w: perplexity ai_threshold (%g) must be below human_threshold (%g)",
			ErrInvalidConfig, cfg.Perplexity.AIThreshold, cfg.Perplexity.HumanThreshold)
	}

	if cfg.Cache.Enabled && cfg.Cache.Backend == "badger" && cfg.Cache.Path == "" {
		return fmt.Errorf("%w: badger cache requires cache.path", ErrInvalidConfig)
	}

	if cfg.Oracle.Backend != "none" && cfg.Oracle.BaseURL == "" {
		return fmt.Errorf("%w: oracle backend %q requires oracle.base_url", ErrInvalidConfig, cfg.Oracle.Backend)
	}

	return nil
}

// Validate is the method form of Validate.
func (c Config) Validate() error {
	return Validate(c)
}

// isClose mirrors a relative-tolerance float comparison.
func isClose(a, b, relTol float64) bool {
	return math.Abs(a-b) <= relTol*math.Max(math.Abs(a), math.Abs(b))
}

// =============================================================================
// Options
// =============================================================================

// Option adjusts a Config before validation.
type Option func(*Config)

// New builds a validated Config from the defaults and opts.
func New(opts ...Option) (Config, error) {
	cfg := Default()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithWeights sets the aggregation weights.
func WithWeights(perplexity, structural, style float64) Option {
	return func(c *Config) {
		c.Weights = Weights{Perplexity: perplexity, Structural: structural, Style: style}
	}
}

// WithThresholds sets the tier thresholds.
func WithThresholds(low, medium, high float64) Option {
	return func(c *Config) {
		c.Verdict = Thresholds{Low: low, Medium: medium, High: high}
	}
}

// WithPerplexityBounds sets the interpolation bounds.
func WithPerplexityBounds(ai, human float64) Option {
	return func(c *Config) {
		c.Perplexity = PerplexityConfig{AIThreshold: ai, HumanThreshold: human}
	}
}

// WithMaxCodeLength sets the truncation bound.
func WithMaxCodeLength(n int) Option {
	return func(c *Config) { c.Limits.MaxCodeLength = n }
}

// WithLanguage sets the syntax profile.
func WithLanguage(lang string) Option {
	return func(c *Config) { c.Language = lang }
}

// WithParallel toggles concurrent extraction.
func WithParallel(on bool) Option {
	return func(c *Config) { c.Parallel = on }
}

// WithCache sets the cache section.
func WithCache(cc CacheConfig) Option {
	return func(c *Config) { c.Cache = cc }
}

// WithoutCache disables result caching.
func WithoutCache() Option {
	return func(c *Config) { c.Cache.Enabled = false }
}

// WithOracle sets the oracle section.
func WithOracle(oc OracleConfig) Option {
	return func(c *Config) { c.Oracle = oc }
}

// WithTokenizer sets the tokenizer section.
func WithTokenizer(tc TokenizerConfig) Option {
	return func(c *Config) { c.Tokenizer = tc }
}
