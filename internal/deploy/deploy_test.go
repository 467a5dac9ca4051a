// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"strings"
	"testing"
)

func TestContainsLine(t *testing.T) {
	content := "ssh-ed25519 AAAA1 old\n" +
		"  command=\"/bin/hook\" ssh-ed25519 AAAA2 ci  \n" +
		"\n"

	tests := []struct {
		line string
		want bool
	}{
		{"ssh-ed25519 AAAA1 old", true},
		{`command="/bin/hook" ssh-ed25519 AAAA2 ci`, true},
		{"ssh-ed25519 AAAA3 new", false},
		{"ssh-ed25519 AAAA1", false},
	}
	for _, tt := range tests {
		if got := containsLine(content, tt.line); got != tt.want {
			t.Errorf("containsLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestExcerpt(t *testing.T) {
	short := "all fine"
	if got := excerpt(short); got != short {
		t.Errorf("excerpt() changed short output: %q", got)
	}

	long := strings.Repeat("x", outputExcerptLimit+100)
	got := excerpt(long)
	if len(got) >= len(long) {
		t.Errorf("excerpt() did not truncate: %d bytes", len(got))
	}
	if !strings.HasSuffix(got, "[truncated]") {
		t.Errorf("excerpt() missing truncation marker: %q", got[len(got)-20:])
	}
}

func TestResolveAddrExplicitPort(t *testing.T) {
	if got := resolveAddr("web01.example.com:2222"); got != "web01.example.com:2222" {
		t.Errorf("resolveAddr() = %q, explicit port must win", got)
	}
}
