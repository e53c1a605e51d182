// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"strings"
	"testing"
)

// =============================================================================
// Icon.Render Tests
// =============================================================================

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconBullet} {
		if got := icon.Render(); !strings.Contains(got, string(icon)) {
			t.Errorf("Render(%q) = %q, want it to contain the icon", icon, got)
		}
	}
}

func TestLevelStyle_RendersText(t *testing.T) {
	for _, level := range []string{"CLEAN", "LOW", "MEDIUM", "HIGH", "other"} {
		if got := LevelStyle(level).Render(level); !strings.Contains(got, level) {
			t.Errorf("LevelStyle(%q).Render = %q", level, got)
		}
	}
}

// =============================================================================
// Printer Tests (plain mode)
// =============================================================================

func TestPrinter_Plain(t *testing.T) {
	tests := []struct {
		name  string
		print func(p *Printer)
		want  string
	}{
		{"title", func(p *Printer) { p.Title("Result") }, "== Result ==\n"},
		{"field", func(p *Printer) { p.Field("Risk", "HIGH") }, "Risk: HIGH\n"},
		{"bullet", func(p *Printer) { p.Bullet("review") }, "  - review\n"},
		{"status", func(p *Printer) { p.Status(IconError, "failed") }, "✗ failed\n"},
		{"box", func(p *Printer) { p.Box("Reasoning", "low perplexity") }, "Reasoning: low perplexity\n"},
		{"summary", func(p *Printer) { p.Summary(2, 1, 1) }, "SUMMARY: clean=2 flagged=1 failed=1 total=4\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.print(NewPrinter(&buf, true))
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestPrinter_PlainInline(t *testing.T) {
	p := NewPrinter(&bytes.Buffer{}, true)
	if !p.Plain() {
		t.Fatal("Plain() = false")
	}
	if got := p.Level("HIGH"); got != "HIGH" {
		t.Errorf("Level() = %q", got)
	}
	if got := p.Muted("x"); got != "x" {
		t.Errorf("Muted() = %q", got)
	}
	if got := p.ScoreBar(0.4567, 10); got != "0.457" {
		t.Errorf("ScoreBar() = %q, want 0.457", got)
	}
	if got := p.ScoreBar(2, 10); got != "1.000" {
		t.Errorf("ScoreBar(2) = %q, want clamped 1.000", got)
	}
}

func TestPrinter_Styled(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.Field("Risk", p.Level("MEDIUM"))
	p.Bullet("monitor")
	if !strings.Contains(buf.String(), "Risk") || !strings.Contains(buf.String(), "MEDIUM") {
		t.Errorf("styled field lost text: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "monitor") {
		t.Errorf("styled bullet lost text: %q", buf.String())
	}

	bar := p.ScoreBar(0.5, 10)
	if !strings.Contains(bar, "0.500") {
		t.Errorf("ScoreBar() = %q, want value suffix", bar)
	}
}
