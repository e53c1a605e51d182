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
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// OpenAIOracle derives loss from an OpenAI-compatible completions server
// (vLLM, llama.cpp server, text-generation-inference).
//
// The prompt is echoed back with per-token log-probabilities. The first
// echoed token has no conditional probability and the last entry is the
// single generated token; both are dropped. Loss is the negative mean of
// the rest.
type OpenAIOracle struct {
	client *openai.Client
	model  string
}

// NewOpenAIOracle creates an oracle against baseURL (e.g.
// "http://localhost:8000/v1"). apiKey may be empty for local servers.
func NewOpenAIOracle(baseURL, model, apiKey string, httpClient *http.Client) *OpenAIOracle {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIOracle{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Loss scores in.Text.
func (o *OpenAIOracle) Loss(ctx context.Context, in Input) (float64, error) {
	ctx, span := tracer.Start(ctx, "OpenAIOracle.Loss")
	defer span.End()
	span.SetAttributes(attribute.String("oracle.model", o.model))

	if in.Text == "" {
		return 0, ErrEmptyTokens
	}

	resp, err := o.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       o.model,
		Prompt:      in.Text,
		MaxTokens:   1,
		Echo:        true,
		LogProbs:    1,
		Temperature: 0,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		err := fmt.Errorf("%w: completion returned no choices", ErrInvalidLoss)
		span.RecordError(err)
		return 0, err
	}

	loss, err := meanNegLogprob(resp.Choices[0].LogProbs.TokenLogprobs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.Float64("oracle.loss", loss))
	return loss, nil
}

// meanNegLogprob averages the conditional log-probabilities of the echoed
// prompt, dropping the first and last entries.
func meanNegLogprob(logprobs []float32) (float64, error) {
	if len(logprobs) < 3 {
		return 0, fmt.Errorf("%w: need at least two prompt tokens, got %d entries", ErrEmptyTokens, len(logprobs))
	}
	scored := logprobs[1 : len(logprobs)-1]

	var sum float64
	for _, lp := range scored {
		sum += float64(lp)
	}
	loss := -sum / float64(len(scored))
	if err := checkLoss(loss); err != nil {
		return 0, err
	}
	return loss, nil
}
