// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package oracle provides the language-model loss source behind the
// statistical signal.
//
// An Oracle returns the mean self-supervised loss (negative log-likelihood
// per token) of a token sequence under a fixed pretrained model. It must be
// deterministic for a given input and never negative.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/provenance/services/provenance/config"
)

var tracer = otel.Tracer("provenance.oracle")

var (
	// ErrEmptyTokens is returned when the input carries nothing to score.
	ErrEmptyTokens = errors.New("oracle: empty token sequence")

	// ErrInvalidLoss is returned when the model reports NaN, Inf or a
	// negative loss.
	ErrInvalidLoss = errors.New("oracle: invalid loss")

	// ErrOracleStatus is returned on a non-2xx response.
	ErrOracleStatus = errors.New("oracle: unexpected status")

	// ErrNoOracle is returned by New when the backend is "none".
	ErrNoOracle = errors.New("oracle: no backend configured")
)

// Input is the sequence to score.
//
// Tokens are the ids produced by the local tokenizer, already truncated to
// the token budget. Text is the same content decoded back to a string, for
// backends that tokenize server-side.
type Input struct {
	Tokens []int
	Text   string
}

// Oracle computes the mean token loss of an input.
type Oracle interface {
	Loss(ctx context.Context, in Input) (float64, error)
}

// Func adapts a plain function to the Oracle interface.
type Func func(ctx context.Context, in Input) (float64, error)

// Loss calls f.
func (f Func) Loss(ctx context.Context, in Input) (float64, error) {
	return f(ctx, in)
}

// New builds the oracle selected by cfg.
//
// Returns ErrNoOracle for backend "none"; callers treat that as "score
// without a model" and the statistical signal degrades to neutral.
func New(cfg config.OracleConfig) (Oracle, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	switch cfg.Backend {
	case "http":
		return NewHTTPOracle(cfg.BaseURL, cfg.Model, WithHTTPClient(client)), nil
	case "openai":
		return NewOpenAIOracle(cfg.BaseURL, cfg.Model, cfg.APIKey, client), nil
	case "none", "":
		return nil, ErrNoOracle
	default:
		return nil, fmt.Errorf("oracle: unknown backend %q", cfg.Backend)
	}
}

// checkLoss rejects values that cannot be a mean negative log-likelihood.
func checkLoss(loss float64) error {
	if math.IsNaN(loss) || math.IsInf(loss, 0) || loss < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidLoss, loss)
	}
	return nil
}
