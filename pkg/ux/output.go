// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders human-facing terminal output for honeypotctl.
//
// All output goes through a Printer bound to an io.Writer, so commands can be
// exercised against a bytes.Buffer in tests. Styling is applied only when
// the Printer is in ModeStyled; Line always writes text verbatim so fixed
// strings (such as the banner's address line) survive any mode.
//
//	p := ux.NewPrinter(os.Stdout)
//	p.Step(3, 9, "Checking model llama3")
//	p.Success("Model already present")
//	p.Line("API will be available at: http://localhost:8000")
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// -----------------------------------------------------------------------------
// Palette
// -----------------------------------------------------------------------------

var (
	ColorHoney   = lipgloss.Color("#F2B134") // primary, titles
	ColorAmber   = lipgloss.Color("#D98E04") // borders
	ColorComb    = lipgloss.Color("#8C5E03") // secondary text
	ColorSuccess = lipgloss.Color("#3FB950")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorMuted   = lipgloss.Color("#6E7681")
)

// Styles holds every lipgloss style the CLI uses.
var Styles = struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Box      lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorHoney),
	Subtitle: lipgloss.NewStyle().Foreground(ColorComb),
	Bold:     lipgloss.NewStyle().Bold(true),
	Muted:    lipgloss.NewStyle().Foreground(ColorMuted),
	Success:  lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:  lipgloss.NewStyle().Foreground(ColorWarning),
	Error:    lipgloss.NewStyle().Foreground(ColorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAmber).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon is a single-glyph status marker.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
)

func (i Icon) render(mode Mode) string {
	if mode != ModeStyled {
		return string(i)
	}
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// -----------------------------------------------------------------------------
// Printer
// -----------------------------------------------------------------------------

// Printer writes styled lines to a writer. Write errors are ignored; a
// broken terminal must not abort the bootstrap.
type Printer struct {
	w    io.Writer
	mode Mode
}

// NewPrinter binds a Printer to w with a detected mode.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, mode: DetectMode(w)}
}

// NewPrinterWithMode binds a Printer to w with an explicit mode.
func NewPrinterWithMode(w io.Writer, mode Mode) *Printer {
	return &Printer{w: w, mode: mode}
}

// Mode returns the active mode.
func (p *Printer) Mode() Mode { return p.mode }

// Writer returns the destination writer.
func (p *Printer) Writer() io.Writer { return p.w }

// Line writes text followed by a newline, never styled.
func (p *Printer) Line(text string) {
	fmt.Fprintln(p.w, text)
}

// Blank writes an empty line (omitted in machine mode).
func (p *Printer) Blank() {
	if p.mode == ModeMachine {
		return
	}
	fmt.Fprintln(p.w)
}

// Title writes a heading.
func (p *Printer) Title(text string) {
	switch p.mode {
	case ModeMachine:
		return
	case ModeStyled:
		fmt.Fprintln(p.w, Styles.Title.Render(text))
	default:
		fmt.Fprintln(p.w, text)
	}
}

// Step writes "[n/total] text".
func (p *Printer) Step(n, total int, text string) {
	prefix := fmt.Sprintf("[%d/%d]", n, total)
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.w, "STEP %d/%d: %s\n", n, total, text)
	case ModeStyled:
		fmt.Fprintf(p.w, "%s %s\n", Styles.Muted.Render(prefix), text)
	default:
		fmt.Fprintf(p.w, "%s %s\n", prefix, text)
	}
}

// Success writes a success line.
func (p *Printer) Success(text string) {
	p.status(IconSuccess, "OK", Styles.Success, text)
}

// Warning writes a warning line.
func (p *Printer) Warning(text string) {
	p.status(IconWarning, "WARN", Styles.Warning, text)
}

// Error writes an error line.
func (p *Printer) Error(text string) {
	p.status(IconError, "ERROR", Styles.Error, text)
}

// Info writes an indented informational line.
func (p *Printer) Info(text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintln(p.w, text)
	case ModeStyled:
		fmt.Fprintf(p.w, "%s %s\n", Styles.Muted.Render("│"), text)
	default:
		fmt.Fprintf(p.w, "  %s\n", text)
	}
}

func (p *Printer) status(icon Icon, tag string, style lipgloss.Style, text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.w, "%s: %s\n", tag, text)
	case ModeStyled:
		fmt.Fprintf(p.w, "%s %s\n", icon.render(p.mode), style.Render(text))
	default:
		fmt.Fprintf(p.w, "%s %s\n", icon.render(p.mode), text)
	}
}

// Check writes a diagnostics row: "  Label:   ✓ detail".
func (p *Printer) Check(label string, ok bool, detail string) {
	icon := IconSuccess
	if !ok {
		icon = IconError
	}
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "%s\t%t\t%s\n", label, ok, detail)
		return
	}
	fmt.Fprintf(p.w, "  %-16s %s %s\n", label+":", icon.render(p.mode), detail)
}

// Box writes content inside a bordered box. In plain and machine modes the
// lines are written as-is under the title.
func (p *Printer) Box(title string, lines ...string) {
	p.box(Styles.Box, Styles.Title, title, lines)
}

// ErrorBox is Box with error coloring.
func (p *Printer) ErrorBox(title string, lines ...string) {
	p.box(Styles.ErrorBox, Styles.Error.Bold(true), title, lines)
}

func (p *Printer) box(frame, heading lipgloss.Style, title string, lines []string) {
	switch p.mode {
	case ModeStyled:
		body := heading.Render(title)
		if len(lines) > 0 {
			body += "\n" + strings.Join(lines, "\n")
		}
		fmt.Fprintln(p.w, frame.Render(body))
	default:
		if title != "" {
			fmt.Fprintln(p.w, title)
		}
		for _, l := range lines {
			fmt.Fprintln(p.w, l)
		}
	}
}
