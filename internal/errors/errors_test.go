// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	err := Wrap(fmt.Errorf("dial tcp: refused"), ErrTransfer,
		"failed to upload app.js",
		"check the destination path")

	got := err.Error()
	if !strings.HasPrefix(got, "[TRANSFER] failed to upload app.js: dial tcp: refused") {
		t.Errorf("Error() = %q, missing code/message/cause", got)
	}
	if !strings.Contains(got, "check the destination path") {
		t.Errorf("Error() = %q, missing suggestion", got)
	}
}

func TestErrorFormatWithoutCause(t *testing.T) {
	err := New(ErrTimeout, "sync timed out", "")
	if got, want := err.Error(), "[TIMEOUT] sync timed out"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestCode(t *testing.T) {
	err := New(ErrDuplicateLabel, "label exists", "")
	if got := Code(err); got != ErrDuplicateLabel {
		t.Errorf("Code() = %q, want %q", got, ErrDuplicateLabel)
	}

	// The code must survive fmt.Errorf wrapping.
	wrapped := fmt.Errorf("register: %w", err)
	if !HasCode(wrapped, ErrDuplicateLabel) {
		t.Error("HasCode() lost the code through a %w wrap")
	}

	if got := Code(stderrors.New("plain")); got != "" {
		t.Errorf("Code() on plain error = %q, want empty", got)
	}
	if Code(nil) != "" {
		t.Error("Code(nil) should be empty")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	err := Wrap(cause, ErrManifest, "walk failed", "")
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is() did not reach the cause")
	}
}
