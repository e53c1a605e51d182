// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package statistical scores how predictable code is to a language model.
//
// Low perplexity under a pretrained model is characteristic of generated
// text. The extractor asks an oracle for the mean token loss, converts it
// to perplexity and maps that onto [0, 1] between two calibrated bounds:
//
//	perplexity:  1 ... AI ........ HUMAN ... 500
//	score:       1.0   1.0 ──────▶ 0.0       0.0
package statistical

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/provenance/services/provenance/oracle"
	"github.com/AleutianAI/provenance/services/provenance/signal"
	"github.com/AleutianAI/provenance/services/provenance/tokenize"
)

var tracer = otel.Tracer("provenance.statistical")

const (
	minPerplexity = 1.0
	maxPerplexity = 500.0
)

// Degradation reasons.
const (
	ReasonEmptyText         = "empty_text"
	ReasonEmptyTokens       = "empty_tokens"
	ReasonOracleUnavailable = "oracle_unavailable"
	ReasonTokenizerFailed   = "tokenizer_failed"
	ReasonOracleFailed      = "oracle_failed"
)

// Score is the statistical signal for one input.
type Score struct {
	// Perplexity is exp(loss) clamped to [1, 500], or 50.0 when degraded.
	Perplexity float64
	// Signal carries the normalized score in [0, 1].
	Signal signal.Result
	// TokenCount is the number of tokens scored.
	TokenCount int
}

// Config holds the extractor's bounds.
type Config struct {
	AIThreshold    float64
	HumanThreshold float64
	MaxTokens      int
}

// Extractor computes the statistical signal.
//
// Thread Safety: safe for concurrent use if the tokenizer and oracle are.
type Extractor struct {
	cfg       Config
	tokenizer tokenize.Tokenizer
	oracle    oracle.Oracle
	logger    *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New creates an Extractor. A nil oracle makes every score degrade with
// ReasonOracleUnavailable.
func New(cfg Config, tok tokenize.Tokenizer, orc oracle.Oracle, opts ...Option) *Extractor {
	e := &Extractor{
		cfg:       cfg,
		tokenizer: tok,
		oracle:    orc,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score computes perplexity and its normalized score for text.
//
// Description:
//
//	Never returns an error. Empty input, tokenizer failures, oracle
//	failures and oracle panics all yield the neutral pair (50.0, 0.5)
//	marked as degraded.
func (e *Extractor) Score(ctx context.Context, text string) (out Score) {
	ctx, span := tracer.Start(ctx, "Statistical.Score")
	defer span.End()

	neutral := func(reason string, err error) Score {
		if err != nil {
			e.logger.Warn("perplexity calculation failed", "reason", reason, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, reason)
		} else {
			e.logger.Warn("perplexity calculation skipped", "reason", reason)
		}
		return Score{
			Perplexity: signal.NeutralPerplexity,
			Signal:     signal.Degrade(signal.KindPerplexity, reason),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			out = neutral(ReasonOracleFailed, fmt.Errorf("oracle panic: %v", r))
		}
	}()

	if strings.TrimSpace(text) == "" {
		return neutral(ReasonEmptyText, nil)
	}
	if e.oracle == nil || e.tokenizer == nil {
		return neutral(ReasonOracleUnavailable, nil)
	}

	tokens, err := e.tokenizer.Encode(text, e.cfg.MaxTokens)
	if err != nil {
		return neutral(ReasonTokenizerFailed, err)
	}
	if len(tokens) == 0 {
		return neutral(ReasonEmptyTokens, nil)
	}

	scored, err := e.tokenizer.Decode(tokens)
	if err != nil {
		return neutral(ReasonTokenizerFailed, err)
	}

	loss, err := e.oracle.Loss(ctx, oracle.Input{Tokens: tokens, Text: scored})
	if err != nil {
		if errors.Is(err, oracle.ErrEmptyTokens) {
			return neutral(ReasonEmptyTokens, err)
		}
		return neutral(ReasonOracleFailed, err)
	}
	if math.IsNaN(loss) || loss < 0 {
		return neutral(ReasonOracleFailed, fmt.Errorf("%w: %v", oracle.ErrInvalidLoss, loss))
	}

	ppl := signal.Clamp(math.Exp(loss), minPerplexity, maxPerplexity)
	score := Normalize(ppl, e.cfg.AIThreshold, e.cfg.HumanThreshold)

	span.SetAttributes(
		attribute.Int("statistical.tokens", len(tokens)),
		attribute.Float64("statistical.perplexity", ppl),
		attribute.Float64("statistical.score", score),
	)

	return Score{
		Perplexity: ppl,
		Signal:     signal.Computed(signal.KindPerplexity, score),
		TokenCount: len(tokens),
	}
}

// Normalize maps perplexity onto [0, 1]: 1.0 at or below ai, 0.0 at or
// above human, linear in between.
func Normalize(ppl, ai, human float64) float64 {
	switch {
	case ppl <= ai:
		return 1.0
	case ppl >= human:
		return 0.0
	default:
		return signal.Clamp01(1.0 - (ppl-ai)/(human-ai))
	}
}
