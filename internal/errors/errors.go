// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

// package errors provides structured errors for Deckhand. Every failure a
// run can abort on carries one of the codes below, a short message and,
// where useful, a suggestion for the operator.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing failures. These are the kinds the CLI prints
// and the orchestrator keys its failed-stage decisions on.
const (
	ErrCredential     = "CREDENTIAL" // secret store could not produce the key
	ErrUntrustedHost  = "HOST"       // host key unknown or mismatched
	ErrManifest       = "MANIFEST"   // local or remote tree not enumerable
	ErrPolicy         = "POLICY"     // restriction policy failed validation
	ErrDuplicateLabel = "LABEL"      // active label already registered
	ErrTimeout        = "TIMEOUT"    // remote operation exceeded its deadline
	ErrTransfer       = "TRANSFER"   // file sync failed mid-plan
	ErrExec           = "EXEC"       // remote command could not be executed
	ErrConfig         = "CONFIG"     // configuration problem
)

// Error is a structured error with code, message, suggestion, and optional cause.
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a specific code, message, and suggestion.
func Wrap(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface. The layout is: what failed, why it
// failed, how to fix it.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %s", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Code returns the code of err if it is (or wraps) a structured Error,
// otherwise the empty string.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code string) bool {
	return Code(err) == code
}
