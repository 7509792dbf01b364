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
	"errors"
	"fmt"

	"github.com/AleutianAI/honeypot/cmd/honeypotctl/internal/util"
)

// -----------------------------------------------------------------------------
// Error Types
// -----------------------------------------------------------------------------

// BootstrapErrorType classifies why a bootstrap run stopped.
//
// All types are fatal and none is retried; the type only selects the
// diagnostic the user sees.
type BootstrapErrorType int

const (
	// ErrMissingTool means a required executable is not on PATH.
	ErrMissingTool BootstrapErrorType = iota

	// ErrMissingModelArtifact means the model was absent and the fetch failed.
	ErrMissingModelArtifact

	// ErrInstallationFailure covers isolation dir creation, dependency
	// installation and settings seeding.
	ErrInstallationFailure

	// ErrLaunchFailure means the server process could not be started.
	ErrLaunchFailure
)

// String returns the diagnostic tag.
func (t BootstrapErrorType) String() string {
	switch t {
	case ErrMissingTool:
		return "MISSING_TOOL"
	case ErrMissingModelArtifact:
		return "MISSING_MODEL_ARTIFACT"
	case ErrInstallationFailure:
		return "INSTALLATION_FAILURE"
	case ErrLaunchFailure:
		return "LAUNCH_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// ExitCodeFailure is the process exit status for any bootstrap failure.
const ExitCodeFailure = 1

// BootstrapError is a fatal bootstrap failure with user guidance.
//
// # Description
//
// Error() returns the one-line Message. FullError() adds the detail, the
// failing command's stderr and remediation steps, and is what honeypotctl
// prints before exiting.
//
// # Example
//
//	err := &BootstrapError{
//	    Type:        ErrMissingTool,
//	    Step:        "interpreter",
//	    Message:     "python3 is not installed",
//	    Remediation: "Install Python 3.9+ and re-run honeypotctl",
//	}
//	fmt.Println(err.FullError())
type BootstrapError struct {
	Type BootstrapErrorType

	// Step is the short name of the step that failed.
	Step string

	Message string

	Detail string

	Remediation string

	// Err is the underlying cause (often a *util.CommandError).
	Err error
}

func (e *BootstrapError) Error() string {
	return e.Message
}

func (e *BootstrapError) Unwrap() error {
	return e.Err
}

// ExitCode is always ExitCodeFailure.
func (e *BootstrapError) ExitCode() int {
	return ExitCodeFailure
}

// FullError renders the complete diagnostic.
func (e *BootstrapError) FullError() string {
	var buf bytes.Buffer
	buf.WriteString(e.Message)
	if e.Detail != "" {
		buf.WriteString("\n\nDetails: ")
		buf.WriteString(e.Detail)
	}
	if stderr := util.ExtractStderr(e.Err); stderr != "" && stderr != e.Detail {
		buf.WriteString("\n\nOutput:\n")
		buf.WriteString(stderr)
	} else if e.Err != nil && e.Detail == "" {
		buf.WriteString("\n\nCause: ")
		buf.WriteString(e.Err.Error())
	}
	if e.Remediation != "" {
		buf.WriteString("\n\nTo fix:\n")
		buf.WriteString(e.Remediation)
	}
	return buf.String()
}

var _ error = (*BootstrapError)(nil)

// IsBootstrapError reports whether err carries a BootstrapError of type t.
func IsBootstrapError(err error, t BootstrapErrorType) bool {
	var be *BootstrapError
	return errors.As(err, &be) && be.Type == t
}

// newInstallError is the common constructor for the installation steps.
func newInstallError(step, message string, cause error, remediation string) *BootstrapError {
	return &BootstrapError{
		Type:        ErrInstallationFailure,
		Step:        step,
		Message:     message,
		Remediation: remediation,
		Err:         cause,
	}
}

// missingToolError builds the MissingTool diagnostic.
func missingToolError(step, tool, requirement, remediation string) *BootstrapError {
	return &BootstrapError{
		Type:        ErrMissingTool,
		Step:        step,
		Message:     fmt.Sprintf("%s is not installed or not on PATH", tool),
		Detail:      requirement,
		Remediation: remediation,
	}
}
