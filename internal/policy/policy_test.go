// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

package policy

import (
	"strings"
	"testing"

	"github.com/toeirei/deckhand/internal/errors"
	"github.com/toeirei/deckhand/internal/model"
)

const testKey = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIGb9ih4Air/SVBCIh7ZGb62eLrBCBz/2bBJgdldRCnFI"

func TestCompileOptionOrder(t *testing.T) {
	pol := model.RestrictionPolicy{
		ForcedCommand:     "/usr/local/bin/deploy-hook",
		NoPortForwarding:  true,
		NoAgentForwarding: true,
		NoPTY:             true,
		NoX11Forwarding:   true,
	}

	got, err := Compile(pol, testKey, "ci@builder")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	want := `command="/usr/local/bin/deploy-hook",no-port-forwarding,no-agent-forwarding,no-pty,no-X11-forwarding ` +
		testKey + " ci@builder"
	if got != want {
		t.Errorf("Compile() = %q, want %q", got, want)
	}
}

func TestCompileDeterministic(t *testing.T) {
	pol := model.RestrictionPolicy{ForcedCommand: "echo ok", NoPTY: true}
	first, err := Compile(pol, testKey, "c")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		got, err := Compile(pol, testKey, "c")
		if err != nil {
			t.Fatalf("Compile() error on run %d = %v", i, err)
		}
		if got != first {
			t.Fatalf("Compile() run %d = %q, want %q", i, got, first)
		}
	}
}

func TestCompileNoOptions(t *testing.T) {
	got, err := Compile(model.RestrictionPolicy{}, testKey, "")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if got != testKey {
		t.Errorf("Compile() = %q, want bare key %q", got, testKey)
	}
	if strings.Contains(got, ",") || strings.Contains(got, `"`) {
		t.Errorf("unrestricted policy produced option text: %q", got)
	}
}

func TestCompileRejectsLineBreaks(t *testing.T) {
	tests := []struct {
		name    string
		pol     model.RestrictionPolicy
		comment string
	}{
		{"newline in forced command", model.RestrictionPolicy{ForcedCommand: "echo ok\nssh-ed25519 AAAA evil"}, ""},
		{"carriage return in forced command", model.RestrictionPolicy{ForcedCommand: "echo ok\rrm -rf /"}, ""},
		{"nul in forced command", model.RestrictionPolicy{ForcedCommand: "echo\x00ok"}, ""},
		{"newline in comment", model.RestrictionPolicy{}, "ci@builder\nssh-ed25519 AAAA evil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.pol, testKey, tt.comment)
			if err == nil {
				t.Fatal("Compile() accepted input with line break")
			}
			if !errors.HasCode(err, errors.ErrPolicy) {
				t.Errorf("Compile() error code = %q, want %q", errors.Code(err), errors.ErrPolicy)
			}
		})
	}
}

func TestCompileEscapesForcedCommand(t *testing.T) {
	pol := model.RestrictionPolicy{ForcedCommand: `say "hi" c:\tmp`}
	got, err := Compile(pol, testKey, "")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	wantPrefix := `command="say \"hi\" c:\\tmp" `
	if !strings.HasPrefix(got, wantPrefix) {
		t.Errorf("Compile() = %q, want prefix %q", got, wantPrefix)
	}
}

func TestCompileInvalidKey(t *testing.T) {
	_, err := Compile(model.RestrictionPolicy{}, "not a key at all", "")
	if err == nil {
		t.Fatal("Compile() accepted invalid key text")
	}
	if !errors.HasCode(err, errors.ErrPolicy) {
		t.Errorf("Compile() error code = %q, want %q", errors.Code(err), errors.ErrPolicy)
	}
}
