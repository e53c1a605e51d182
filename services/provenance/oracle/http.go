// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// HTTPOracle calls a loss endpoint that scores token ids directly.
//
// Request:  POST {baseURL}/v1/loss  {"model": "...", "tokens": [..]}
// Response: 200 {"loss": 2.31}
type HTTPOracle struct {
	httpClient *http.Client
	baseURL    string
	model      string
	logger     *slog.Logger
}

// HTTPOption configures an HTTPOracle.
type HTTPOption func(*HTTPOracle)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(o *HTTPOracle) { o.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(o *HTTPOracle) { o.logger = l }
}

type lossRequest struct {
	Model  string `json:"model"`
	Tokens []int  `json:"tokens"`
}

type lossResponse struct {
	Loss  *float64 `json:"loss"`
	Error string   `json:"error,omitempty"`
}

// NewHTTPOracle creates an oracle for the loss endpoint at baseURL.
func NewHTTPOracle(baseURL, model string, opts ...HTTPOption) *HTTPOracle {
	o := &HTTPOracle{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Loss posts the token ids and returns the reported mean loss.
func (o *HTTPOracle) Loss(ctx context.Context, in Input) (float64, error) {
	ctx, span := tracer.Start(ctx, "HTTPOracle.Loss")
	defer span.End()
	span.SetAttributes(
		attribute.String("oracle.model", o.model),
		attribute.Int("oracle.tokens", len(in.Tokens)),
	)

	if len(in.Tokens) == 0 {
		return 0, ErrEmptyTokens
	}

	fail := func(err error) (float64, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	body, err := json.Marshal(lossRequest{Model: o.model, Tokens: in.Tokens})
	if err != nil {
		return fail(fmt.Errorf("marshal loss request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/loss", bytes.NewReader(body))
	if err != nil {
		return fail(fmt.Errorf("create loss request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fail(fmt.Errorf("loss request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(fmt.Errorf("read loss response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		snippet := string(respBody)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		o.logger.Warn("loss endpoint returned an error", "status_code", resp.StatusCode, "model", o.model)
		return fail(fmt.Errorf("%w %d: %s", ErrOracleStatus, resp.StatusCode, snippet))
	}

	var parsed lossResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fail(fmt.Errorf("parse loss response: %w", err))
	}
	if parsed.Loss == nil {
		return fail(fmt.Errorf("%w: response has no loss field", ErrInvalidLoss))
	}
	if err := checkLoss(*parsed.Loss); err != nil {
		return fail(err)
	}

	span.SetAttributes(attribute.Float64("oracle.loss", *parsed.Loss))
	return *parsed.Loss, nil
}
