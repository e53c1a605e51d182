// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/provenance/services/provenance/cache"
	"github.com/AleutianAI/provenance/services/provenance/config"
	"github.com/AleutianAI/provenance/services/provenance/lang"
	"github.com/AleutianAI/provenance/services/provenance/normalize"
	"github.com/AleutianAI/provenance/services/provenance/oracle"
	"github.com/AleutianAI/provenance/services/provenance/risk"
	"github.com/AleutianAI/provenance/services/provenance/signal"
	"github.com/AleutianAI/provenance/services/provenance/statistical"
	"github.com/AleutianAI/provenance/services/provenance/structural"
	"github.com/AleutianAI/provenance/services/provenance/style"
	"github.com/AleutianAI/provenance/services/provenance/tokenize"
)

// Detector scores submissions. Create with New.
type Detector struct {
	cfg         config.Config
	fingerprint string
	profile     *lang.Profile

	normalizer  *normalize.Normalizer
	statistical *statistical.Extractor
	structural  *structural.Extractor
	style       *style.Extractor
	aggregator  *risk.Aggregator

	loader  *cache.Loader[Result]
	logger  *slog.Logger
	metrics runningMetrics
	now     func() time.Time
}

// options collects collaborators supplied through Option.
type options struct {
	logger    *slog.Logger
	oracle    oracle.Oracle
	oracleSet bool
	tokenizer tokenize.Tokenizer
	cache     cache.Cache[Result]
	cacheSet  bool
	now       func() time.Time
}

// Option configures a Detector.
type Option func(*options)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithOracle overrides the oracle built from config. A nil oracle disables
// the statistical signal; it then always degrades.
func WithOracle(orc oracle.Oracle) Option {
	return func(o *options) {
		o.oracle = orc
		o.oracleSet = true
	}
}

// WithTokenizer overrides the tokenizer built from config.
func WithTokenizer(t tokenize.Tokenizer) Option {
	return func(o *options) { o.tokenizer = t }
}

// WithCache overrides the cache built from config. Nil disables caching.
func WithCache(c cache.Cache[Result]) Option {
	return func(o *options) {
		o.cache = c
		o.cacheSet = true
	}
}

// withClock replaces time.Now for tests.
func withClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a Detector.
//
// Description:
//
//	Validates cfg, then builds the tokenizer, oracle and cache it names
//	unless overridden by options. An oracle backend of "none" leaves the
//	statistical signal permanently degraded rather than failing.
//
// Inputs:
//
//	cfg - Configuration. Validated here; the Detector keeps a copy.
//	opts - Optional collaborators.
//
// Outputs:
//
//	*Detector - Ready to use. Call Close when done.
//	error - Wraps config.ErrInvalidConfig on invalid configuration, or
//	        the construction error of a collaborator.
//
// Example:
//
//	d, err := detector.New(config.Default(), detector.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer d.Close()
//	res, err := d.Detect(ctx, code)
func New(cfg config.Config, opts ...Option) (*Detector, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	o := options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger

	profile, err := lang.Lookup(cfg.Language)
	if err != nil {
		return nil, err
	}

	tok := o.tokenizer
	if tok == nil {
		tok, err = tokenize.New(cfg.Tokenizer.Name, cfg.Tokenizer.Encoding)
		if err != nil {
			return nil, fmt.Errorf("build tokenizer: %w", err)
		}
	}

	orc := o.oracle
	if !o.oracleSet {
		orc, err = oracle.New(cfg.Oracle)
		switch {
		case errors.Is(err, oracle.ErrNoOracle):
			logger.Info("no oracle configured, statistical signal disabled")
		case err != nil:
			return nil, fmt.Errorf("build oracle: %w", err)
		}
	}

	c := o.cache
	if !o.cacheSet {
		c, err = cache.New[Result](cfg.Cache, logger)
		if err != nil {
			return nil, err
		}
	}

	fp, err := fingerprint(cfg)
	if err != nil {
		return nil, fmt.Errorf("fingerprint config: %w", err)
	}

	return &Detector{
		cfg:         cfg,
		fingerprint: fp,
		profile:     profile,
		normalizer:  normalize.New(normalize.Light, profile.CommentPrefix),
		statistical: statistical.New(statistical.Config{
			AIThreshold:    cfg.Perplexity.AIThreshold,
			HumanThreshold: cfg.Perplexity.HumanThreshold,
			MaxTokens:      cfg.Limits.MaxTokens,
		}, tok, orc, statistical.WithLogger(logger)),
		structural: structural.New(profile, structural.Thresholds{
			DepthVariance: cfg.Structural.DepthVarianceThreshold,
			Complexity:    cfg.Structural.ComplexityThreshold,
		}, structural.WithLogger(logger)),
		style: style.New(profile, style.Thresholds{
			CommentRatio: cfg.Style.CommentRatioThreshold,
			NamingLength: cfg.Style.NamingLengthThreshold,
		}, style.WithLogger(logger)),
		aggregator: risk.NewAggregator(cfg),
		loader:     cache.NewLoader[Result](c, cache.WithCacheable(cacheable)),
		logger:     logger,
		now:        o.now,
	}, nil
}

// fingerprint hashes every scoring-relevant setting. Secrets carry
// json:"-" and never reach the hash.
func fingerprint(cfg config.Config) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8]), nil
}

// Config returns a copy of the configuration.
func (d *Detector) Config() config.Config {
	return d.cfg
}

// Close releases the cache.
func (d *Detector) Close() error {
	if c := d.loader.Cache(); c != nil {
		return c.Close()
	}
	return nil
}

// CacheStats returns the cache counters, or false if caching is disabled.
func (d *Detector) CacheStats() (cache.Stats, bool) {
	c := d.loader.Cache()
	if c == nil {
		return cache.Stats{}, false
	}
	return c.Stats(), true
}

// Detect scores one submission.
//
// Description:
//
//	Validates code, truncates it to Limits.MaxCodeLength characters,
//	runs the three extractors, aggregates and explains the result, and
//	updates the running metrics. Signal failures degrade and never fail
//	the call.
//
// Inputs:
//
//	ctx - Carries the trace and bounds the oracle call. Must not be nil.
//	code - Source text. Must be valid UTF-8 with non-whitespace content.
//
// Outputs:
//
//	*Result - Owned by the caller.
//	error - *ValidationError for unusable input, *DetectionError for
//	        anything unexpected, including panics and a done context.
//
// Thread Safety: Safe for concurrent use.
func (d *Detector) Detect(ctx context.Context, code string) (res *Result, err error) {
	if ctx == nil {
		return nil, &DetectionError{Op: "detect", Cause: ErrNilContext}
	}

	start := d.now()
	ctx, span := tracer.Start(ctx, "Detector.Detect")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &DetectionError{Op: "detect", Cause: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			kind := "detection"
			if errors.Is(err, ErrValidation) {
				kind = "validation"
				d.logger.Error("validation error in AI detection", "error", err)
			} else {
				d.logger.Error("AI detection failed", "error", err)
			}
			recordError(ctx, kind)
			span.RecordError(err)
			span.SetStatus(codes.Error, kind)
		}
	}()

	if verr := validate(code); verr != nil {
		return nil, verr
	}
	if cerr := ctx.Err(); cerr != nil {
		return nil, &DetectionError{Op: "detect", Cause: cerr}
	}

	originalLength := utf8.RuneCountInString(code)
	code = d.truncate(code, originalLength)

	key := cache.Key(code, d.fingerprint)
	computed, cached, lerr := d.loader.Load(key, func() (Result, error) {
		return d.analyze(ctx, code)
	}, func(perr error) {
		d.logger.Warn("result cache write failed", "error", perr)
	})
	if lerr != nil {
		var derr *DetectionError
		if errors.As(lerr, &derr) {
			return nil, derr
		}
		return nil, &DetectionError{Op: "analyze", Cause: lerr}
	}

	out := computed.Clone()
	elapsed := d.now().Sub(start)
	out.ID = uuid.NewString()
	out.CodeLength = originalLength
	out.Cached = cached
	out.ProcessingTimeMs = elapsed.Milliseconds()
	out.CreatedAt = d.now().UTC()

	d.metrics.record(out.ProcessingTimeMs)
	recordDetection(ctx, out.RiskLevel, out.IsAIGenerated, cached, elapsed)

	span.SetAttributes(
		attribute.String("detector.tier", string(out.RiskLevel)),
		attribute.Float64("detector.weighted_score", out.WeightedScore),
		attribute.Bool("detector.cached", cached),
	)
	d.logger.Info("AI detection complete",
		"is_ai", out.IsAIGenerated,
		"confidence", out.WeightedScore,
		"risk_level", string(out.RiskLevel),
		"perplexity", out.Perplexity,
		"processing_time_ms", out.ProcessingTimeMs,
		"cached", cached,
	)

	return out, nil
}

// validate rejects empty, whitespace-only and non-textual input.
func validate(code string) error {
	switch {
	case code == "":
		return &ValidationError{Reason: "code must be a non-empty string"}
	case !utf8.ValidString(code):
		return &ValidationError{Reason: "code must be valid UTF-8 text"}
	case strings.ContainsRune(code, 0):
		return &ValidationError{Reason: "code must not contain NUL bytes"}
	case strings.TrimSpace(code) == "":
		return &ValidationError{Reason: "code cannot be empty or whitespace-only"}
	}
	return nil
}

// truncate cuts code to the configured maximum number of characters.
func (d *Detector) truncate(code string, length int) string {
	limit := d.cfg.Limits.MaxCodeLength
	if length <= limit {
		return code
	}
	d.logger.Warn("code truncated", "from", length, "to", limit)

	n := 0
	for i := range code {
		if n == limit {
			return code[:i]
		}
		n++
	}
	return code
}

// signals holds the three extractor outputs for one input.
type signals struct {
	stat       statistical.Score
	structFeat structural.Features
	structRes  signal.Result
	styleFeat  style.Features
	styleRes   signal.Result
}

// cacheable rejects results that carry a transient degradation. A failed
// oracle or tokenizer call may succeed next time and must not pin the
// neutral score for the cache TTL. A missing oracle is permanent for the
// process and stays cacheable.
func cacheable(r Result) bool {
	for _, dg := range r.Degradations {
		switch dg.Reason {
		case statistical.ReasonOracleFailed, statistical.ReasonTokenizerFailed:
			return false
		}
	}
	return true
}

// analyze runs the pipeline on validated, truncated code. The returned
// Result has no per-call fields set.
func (d *Detector) analyze(ctx context.Context, code string) (Result, error) {
	normalized := d.normalizer.Normalize(code)

	var s signals
	var err error
	if d.cfg.Parallel {
		s, err = d.extractParallel(ctx, code, normalized)
	} else {
		s = d.extractSequential(ctx, code, normalized)
	}
	if err != nil {
		return Result{}, &DetectionError{Op: "extract", Cause: err}
	}

	as := d.aggregator.Combine(s.stat.Signal, s.structRes, s.styleRes, s.stat.Perplexity)
	reasoning, recs := d.aggregator.Synthesize(as)

	var degradations []Degradation
	for _, r := range []signal.Result{s.stat.Signal, s.structRes, s.styleRes} {
		if r.Degraded {
			degradations = append(degradations, Degradation{Signal: string(r.Kind), Reason: r.Reason})
			recordDegraded(ctx, r.Kind, r.Reason)
		}
	}

	return Result{
		IsAIGenerated:      as.Verdict,
		Confidence:         as.WeightedScore,
		RiskLevel:          as.Tier,
		PerplexityScore:    signal.Round(as.PerplexityScore, 3),
		StructuralScore:    signal.Round(as.StructuralScore, 3),
		StyleScore:         signal.Round(as.StyleScore, 3),
		WeightedScore:      signal.Round(as.WeightedScore, 3),
		Perplexity:         signal.Round(s.stat.Perplexity, 2),
		StructuralFeatures: s.structFeat,
		StyleFeatures:      s.styleFeat,
		ConflictDetected:   as.Conflict,
		NormalizedLength:   utf8.RuneCountInString(normalized),
		Reasoning:          reasoning,
		Recommendations:    recs,
		Degradations:       degradations,
		Language:           d.profile.Name,
	}, nil
}

func (d *Detector) extractSequential(ctx context.Context, code, normalized string) signals {
	var s signals
	s.stat = d.statistical.Score(ctx, normalized)
	s.structFeat, s.structRes = d.structural.Score(ctx, code)
	s.styleFeat, s.styleRes = d.style.Score(code)
	return s
}

// extractParallel runs the extractors on separate goroutines. A panic in
// any of them becomes the group's error.
func (d *Detector) extractParallel(ctx context.Context, code, normalized string) (signals, error) {
	var s signals
	g, gctx := errgroup.WithContext(ctx)

	g.Go(guard("statistical", func() {
		s.stat = d.statistical.Score(gctx, normalized)
	}))
	g.Go(guard("structural", func() {
		s.structFeat, s.structRes = d.structural.Score(gctx, code)
	}))
	g.Go(guard("style", func() {
		s.styleFeat, s.styleRes = d.style.Score(code)
	}))

	if err := g.Wait(); err != nil {
		return signals{}, err
	}
	return s, nil
}

func guard(name string, fn func()) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s extractor panic: %v", name, r)
			}
		}()
		fn()
		return nil
	}
}

// DetectBatch scores codes one after another.
//
// Description:
//
//	The output has the same length and order as codes. A submission that
//	fails is logged and left nil; it never aborts the batch. A done
//	context fails every remaining item.
//
// Thread Safety: Safe for concurrent use.
func (d *Detector) DetectBatch(ctx context.Context, codes []string) []*Result {
	ctx, span := tracer.Start(ctx, "Detector.DetectBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("detector.batch_size", len(codes)))

	results := make([]*Result, len(codes))
	failed := 0
	for i, code := range codes {
		res, err := d.Detect(ctx, code)
		if err != nil {
			d.logger.Warn("batch detection failed", "index", i, "error", err)
			failed++
			continue
		}
		results[i] = res
	}
	span.SetAttributes(attribute.Int("detector.batch_failed", failed))
	return results
}

// Metrics returns the running counters.
func (d *Detector) Metrics() MetricsSnapshot {
	return d.metrics.snapshot()
}

// ResetMetrics zeroes the running counters.
func (d *Detector) ResetMetrics() {
	d.metrics.reset()
}
