// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsPartial(t *testing.T) {
	if !IsPartial(&partialError{exitCode: 3}) {
		t.Error("IsPartial() = false for partialError")
	}
	wrapped := fmt.Errorf("deploy: %w", &partialError{exitCode: 1})
	if !IsPartial(wrapped) {
		t.Error("IsPartial() lost the partial outcome through a wrap")
	}
	if IsPartial(stderrors.New("ordinary failure")) {
		t.Error("IsPartial() = true for ordinary error")
	}
	if IsPartial(nil) {
		t.Error("IsPartial(nil) = true")
	}
}

func TestParseTargetSpec(t *testing.T) {
	tests := []struct {
		spec     string
		wantUser string
		wantHost string
		wantPath string
		wantErr  bool
	}{
		{"deploy@web01:/var/www", "deploy", "web01", "/var/www", false},
		{"web01:/var/www", "", "web01", "/var/www", false},
		{"deploy@web01.example.com:htdocs", "deploy", "web01.example.com", "htdocs", false},
		{"justahost", "", "", "", true},
		{"user@host", "", "", "", true},
		{":/var/www", "", "", "", true},
	}

	for _, tt := range tests {
		got, err := parseTargetSpec(tt.spec)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTargetSpec(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if got.Username != tt.wantUser || got.Hostname != tt.wantHost || got.Path != tt.wantPath {
			t.Errorf("parseTargetSpec(%q) = %+v", tt.spec, got)
		}
	}
}

func TestPrivilegedLoginRefusal(t *testing.T) {
	for _, user := range []string{"root", "Root", "ADMIN", "administrator"} {
		// The add command lowercases before lookup; mirror that here.
		if !privilegedLogins[strings.ToLower(user)] {
			t.Errorf("login %q should be refused", user)
		}
	}
	if privilegedLogins["deploy"] {
		t.Error("unprivileged login refused")
	}
}
