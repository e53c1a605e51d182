// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the provenance CLI.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	// Semantic colors
	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorAlert   = lipgloss.Color("#E67E22")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Alert   lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Label:   lipgloss.NewStyle().Foreground(ColorTealPrimary).Width(16),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Alert:   lipgloss.NewStyle().Foreground(ColorAlert).Bold(true),
	Error:   lipgloss.NewStyle().Foreground(ColorError).Bold(true),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// LevelStyle returns the style for a risk level name. Unknown names are
// rendered bold.
func LevelStyle(level string) lipgloss.Style {
	switch strings.ToUpper(level) {
	case "CLEAN":
		return Styles.Success.Bold(true)
	case "LOW":
		return Styles.Success
	case "MEDIUM":
		return Styles.Warning.Bold(true)
	case "HIGH":
		return Styles.Error
	default:
		return Styles.Bold
	}
}

// =============================================================================
// Printer
// =============================================================================

// Printer writes styled or plain lines to w.
//
// In plain mode nothing is styled and decorative output such as titles and
// boxes is reduced to "key: value" text, which keeps piped output greppable.
type Printer struct {
	w     io.Writer
	plain bool
}

// NewPrinter returns a Printer. plain disables styling.
func NewPrinter(w io.Writer, plain bool) *Printer {
	return &Printer{w: w, plain: plain}
}

// Plain reports whether styling is disabled.
func (p *Printer) Plain() bool { return p.plain }

// Title prints a heading.
func (p *Printer) Title(text string) {
	if p.plain {
		fmt.Fprintf(p.w, "== %s ==\n", text)
		return
	}
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

// Field prints an aligned label and value.
func (p *Printer) Field(label, value string) {
	if p.plain {
		fmt.Fprintf(p.w, "%s: %s\n", label, value)
		return
	}
	fmt.Fprintf(p.w, "%s%s\n", Styles.Label.Render(label), value)
}

// Bullet prints one list item.
func (p *Printer) Bullet(text string) {
	if p.plain {
		fmt.Fprintf(p.w, "  - %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "  %s %s\n", Styles.Muted.Render(string(IconBullet)), text)
}

// Status prints a message prefixed with icon.
func (p *Printer) Status(icon Icon, text string) {
	if p.plain {
		fmt.Fprintf(p.w, "%s %s\n", icon, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", icon.Render(), text)
}

// Level renders a risk level name.
func (p *Printer) Level(level string) string {
	if p.plain {
		return level
	}
	return LevelStyle(level).Render(level)
}

// Muted renders secondary text.
func (p *Printer) Muted(text string) string {
	if p.plain {
		return text
	}
	return Styles.Muted.Render(text)
}

// Box prints content in a rounded box under title.
func (p *Printer) Box(title, content string) {
	if p.plain {
		fmt.Fprintf(p.w, "%s: %s\n", title, content)
		return
	}
	fmt.Fprintln(p.w, Styles.Box.Width(72).Render(Styles.Title.Render(title)+"\n"+content))
}

// Summary prints batch counts.
func (p *Printer) Summary(clean, flagged, failed int) {
	if p.plain {
		fmt.Fprintf(p.w, "SUMMARY: clean=%d flagged=%d failed=%d total=%d\n",
			clean, flagged, failed, clean+flagged+failed)
		return
	}
	fmt.Fprintf(p.w, "\n%s %s  %s %s  %s %s  %s %s\n",
		Styles.Success.Render(fmt.Sprintf("%d", clean)), Styles.Muted.Render("clean"),
		Styles.Warning.Render(fmt.Sprintf("%d", flagged)), Styles.Muted.Render("flagged"),
		Styles.Error.Render(fmt.Sprintf("%d", failed)), Styles.Muted.Render("failed"),
		Styles.Bold.Render(fmt.Sprintf("%d", clean+flagged+failed)), Styles.Muted.Render("total"),
	)
}

// ScoreBar renders score in [0, 1] as a bar of width cells.
func (p *Printer) ScoreBar(score float64, width int) string {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	if p.plain {
		return fmt.Sprintf("%.3f", score)
	}
	filled := int(score * float64(width))
	bar := Styles.Alert.Render(strings.Repeat("█", filled)) +
		Styles.Muted.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %.3f", bar, score)
}
