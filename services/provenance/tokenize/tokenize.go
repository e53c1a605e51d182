// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tokenize turns source text into the token ids the oracle scores.
package tokenize

import (
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// ErrUnknownTokenizer is returned by New for an unsupported name.
var ErrUnknownTokenizer = errors.New("unknown tokenizer")

// DefaultEncoding is the BPE encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

// Tokenizer encodes text into at most maxTokens ids and back.
//
// Implementations must be deterministic and safe for concurrent use.
type Tokenizer interface {
	Encode(text string, maxTokens int) ([]int, error)
	Decode(ids []int) (string, error)
}

// New returns the tokenizer registered under name.
//
// "tiktoken" returns a BPE tokenizer for encoding (DefaultEncoding when
// empty). "bytes" returns the offline byte-level tokenizer.
func New(name, encoding string) (Tokenizer, error) {
	switch name {
	case "tiktoken":
		return NewTiktoken(encoding), nil
	case "bytes":
		return Bytes{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTokenizer, name)
	}
}

// =============================================================================
// Tiktoken
// =============================================================================

// Tiktoken is a BPE tokenizer backed by tiktoken-go.
//
// The encoding is loaded on first use; a load failure is returned from
// every subsequent Encode call.
type Tiktoken struct {
	encoding string

	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// NewTiktoken creates a lazily-loaded BPE tokenizer.
func NewTiktoken(encoding string) *Tiktoken {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &Tiktoken{encoding: encoding}
}

// Encode tokenizes text, keeping the first maxTokens ids.
func (t *Tiktoken) Encode(text string, maxTokens int) ([]int, error) {
	enc, err := t.load()
	if err != nil {
		return nil, err
	}
	return truncate(enc.Encode(text, nil, nil), maxTokens), nil
}

// Decode converts ids back to text.
func (t *Tiktoken) Decode(ids []int) (string, error) {
	enc, err := t.load()
	if err != nil {
		return "", err
	}
	return enc.Decode(ids), nil
}

func (t *Tiktoken) load() (*tiktoken.Tiktoken, error) {
	t.once.Do(func() {
		t.enc, t.err = tiktoken.GetEncoding(t.encoding)
	})
	if t.err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", t.encoding, t.err)
	}
	return t.enc, nil
}

// =============================================================================
// Bytes
// =============================================================================

// Bytes maps every UTF-8 byte to a token id in [0, 255].
//
// It needs no vocabulary files and pairs with byte-level oracles.
type Bytes struct{}

// Encode returns the bytes of text as ids, keeping the first maxTokens.
func (Bytes) Encode(text string, maxTokens int) ([]int, error) {
	n := len(text)
	if maxTokens > 0 && n > maxTokens {
		n = maxTokens
	}
	ids := make([]int, n)
	for i := 0; i < n; i++ {
		ids[i] = int(text[i])
	}
	return ids, nil
}

// Decode reassembles the bytes. A truncated multi-byte rune at the end is
// dropped.
func (Bytes) Decode(ids []int) (string, error) {
	buf := make([]byte, len(ids))
	for i, id := range ids {
		if id < 0 || id > 255 {
			return "", fmt.Errorf("byte token out of range: %d", id)
		}
		buf[i] = byte(id)
	}
	for len(buf) > 0 && !utf8.Valid(buf) {
		buf = buf[:len(buf)-1]
	}
	return string(buf), nil
}

// truncate keeps the first maxTokens ids. maxTokens <= 0 keeps all.
func truncate(ids []int, maxTokens int) []int {
	if maxTokens > 0 && len(ids) > maxTokens {
		return ids[:maxTokens]
	}
	return ids
}
