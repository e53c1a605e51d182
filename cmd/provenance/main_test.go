// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/provenance/pkg/ux"
	"github.com/AleutianAI/provenance/services/provenance/detector"
	"github.com/AleutianAI/provenance/services/provenance/risk"
)

const simplePython = `def add(a, b):
    return a + b
`

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	code := execute(strings.NewReader(stdin), &out, &errOut, append([]string{"--no-cache"}, args...))
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func verdictCode(res *detector.Result) int {
	if res.IsAIGenerated {
		return exitAI
	}
	return exitClean
}

// =============================================================================
// detect
// =============================================================================

func TestDetect_Stdin(t *testing.T) {
	r := runCLI(t, simplePython, "detect", "-")

	var res detector.Result
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &res), r.stdout)
	assert.Equal(t, verdictCode(&res), r.code)
	assert.NotEmpty(t, res.RiskLevel)
	assert.Equal(t, "python", res.Language)

	// no oracle configured
	require.NotEmpty(t, res.Degradations)
	assert.Equal(t, "perplexity", res.Degradations[0].Signal)
}

func TestDetect_File(t *testing.T) {
	path := writeFile(t, "add.py", simplePython)
	r := runCLI(t, "", "detect", path)

	var res detector.Result
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &res))
	assert.Equal(t, verdictCode(&res), r.code)
}

func TestDetect_FailOn(t *testing.T) {
	r := runCLI(t, simplePython, "detect", "--fail-on", "clean")
	assert.Equal(t, exitAI, r.code)

	r = runCLI(t, simplePython, "detect", "--fail-on", "severe")
	assert.Equal(t, exitError, r.code)
	assert.Contains(t, r.stderr, "--fail-on")
}

func TestDetect_Errors(t *testing.T) {
	tests := []struct {
		name   string
		stdin  string
		args   []string
		stderr string
	}{
		{"whitespace input", "  \n\t", []string{"detect"}, "AI_DETECTION_VALIDATION_ERROR"},
		{"missing file", "", []string{"detect", "/nonexistent/x.py"}, "read /nonexistent/x.py"},
		{"unknown language", simplePython, []string{"--language", "cobol", "detect"}, "Language"},
		{"bad log level", simplePython, []string{"--log-level", "loud", "detect"}, "unknown log level"},
		{"too many args", "", []string{"detect", "a", "b"}, "accepts at most 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runCLI(t, tt.stdin, tt.args...)
			assert.Equal(t, exitError, r.code)
			assert.Contains(t, r.stderr, tt.stderr)
		})
	}
}

// =============================================================================
// batch
// =============================================================================

func TestBatch(t *testing.T) {
	good := writeFile(t, "good.py", simplePython)
	empty := writeFile(t, "empty.py", "   ")

	r := runCLI(t, "", "batch", good, empty, "/nonexistent/y.py")
	assert.Equal(t, exitError, r.code)

	var entries []batchEntry
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &entries), r.stdout)
	require.Len(t, entries, 3)

	assert.Equal(t, good, entries[0].Path)
	assert.NotNil(t, entries[0].Result)
	assert.Empty(t, entries[0].Error)

	assert.Nil(t, entries[1].Result)
	assert.Contains(t, entries[1].Error, "AI_DETECTION_VALIDATION_ERROR")

	assert.Contains(t, entries[2].Error, "read /nonexistent/y.py")
}

func TestBatch_AllScored(t *testing.T) {
	a := writeFile(t, "a.py", simplePython)
	b := writeFile(t, "b.py", "x = 1\ny = x + 1\n")

	r := runCLI(t, "", "batch", "--fail-on", "CLEAN", a, b)
	assert.Equal(t, exitAI, r.code)

	var entries []batchEntry
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &entries))
	assert.Len(t, entries, 2)
}

// =============================================================================
// config
// =============================================================================

func TestConfig_PrintsYAML(t *testing.T) {
	r := runCLI(t, "", "--language", "go", "config")
	require.Equal(t, exitClean, r.code, r.stderr)
	assert.Contains(t, r.stdout, "language: go")
	assert.Contains(t, r.stdout, "weights:")
	assert.NotContains(t, r.stdout, "api_key")
}

func TestConfig_File(t *testing.T) {
	path := writeFile(t, "provenance.yaml", "language: javascript\n")
	r := runCLI(t, "", "--config", path, "config")
	require.Equal(t, exitClean, r.code, r.stderr)
	assert.Contains(t, r.stdout, "language: javascript")
}

// =============================================================================
// helpers
// =============================================================================

func TestFlagged(t *testing.T) {
	tests := []struct {
		name      string
		res       detector.Result
		threshold risk.Tier
		want      bool
	}{
		{"verdict true", detector.Result{IsAIGenerated: true, RiskLevel: risk.TierMedium}, "", true},
		{"verdict false", detector.Result{RiskLevel: risk.TierLow}, "", false},
		{"at threshold", detector.Result{RiskLevel: risk.TierMedium}, risk.TierMedium, true},
		{"above threshold", detector.Result{RiskLevel: risk.TierHigh}, risk.TierMedium, true},
		{"below threshold", detector.Result{IsAIGenerated: true, RiskLevel: risk.TierMedium}, risk.TierHigh, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, flagged(&tt.res, tt.threshold))
		})
	}
}

func TestRenderResult_Plain(t *testing.T) {
	var buf bytes.Buffer
	renderResult(ux.NewPrinter(&buf, true), "-", &detector.Result{
		IsAIGenerated:   true,
		RiskLevel:       risk.TierHigh,
		Confidence:      0.71,
		Perplexity:      6.5,
		Reasoning:       "Low perplexity (6.5) suggests predictable code",
		Recommendations: []string{risk.RecommendFlagForReview},
		Degradations:    []detector.Degradation{{Signal: "style", Reason: "empty_code"}},
	})

	out := buf.String()
	assert.Contains(t, out, "== stdin ==")
	assert.Contains(t, out, "Risk level: HIGH (likely AI-generated)")
	assert.Contains(t, out, "Confidence: 0.710")
	assert.Contains(t, out, "ppl 6.50")
	assert.Contains(t, out, "style signal unavailable: empty_code")
	assert.Contains(t, out, "Reasoning: Low perplexity")
	assert.Contains(t, out, "  - "+risk.RecommendFlagForReview)
}
