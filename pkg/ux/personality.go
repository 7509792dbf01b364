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
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// EnvOutputMode forces an output mode regardless of terminal detection.
const EnvOutputMode = "HONEYPOT_OUTPUT"

// Mode controls how much styling a Printer applies.
type Mode string

const (
	// ModeStyled uses colors, icons and boxes.
	ModeStyled Mode = "styled"

	// ModePlain uses icons but no ANSI styling.
	ModePlain Mode = "plain"

	// ModeMachine emits prefix-tagged lines suitable for log scraping.
	ModeMachine Mode = "machine"
)

// ParseMode maps a user string to a Mode. Unknown values map to ModePlain.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "styled", "full", "color", "colour":
		return ModeStyled
	case "machine", "quiet", "ci":
		return ModeMachine
	default:
		return ModePlain
	}
}

// DetectMode picks a Mode for w.
//
// # Description
//
// HONEYPOT_OUTPUT wins when set. Otherwise a terminal gets ModeStyled and
// anything else (pipes, files, buffers in tests) gets ModePlain. NO_COLOR
// downgrades styled output to plain.
//
// # Inputs
//
//   - w: Destination writer
//
// # Outputs
//
//   - Mode: The mode to render with
func DetectMode(w io.Writer) Mode {
	if env := os.Getenv(EnvOutputMode); env != "" {
		return ParseMode(env)
	}
	if !IsTerminal(w) {
		return ModePlain
	}
	if _, noColor := os.LookupEnv("NO_COLOR"); noColor {
		return ModePlain
	}
	return ModeStyled
}

// IsTerminal reports whether w is an *os.File attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
