// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/toeirei/deckhand/internal/errors"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLocal(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html", "<html></html>")
	writeFile(t, root, "assets/app.js", "console.log(1)")
	writeFile(t, root, "assets/deep/style.css", "body{}")

	m, err := Local(root)
	if err != nil {
		t.Fatalf("Local() error = %v", err)
	}

	if len(m) != 3 {
		t.Fatalf("Local() found %d files, want 3: %v", len(m), m)
	}

	sum := sha256.Sum256([]byte("console.log(1)"))
	want := Entry{Size: int64(len("console.log(1)")), Digest: hex.EncodeToString(sum[:])}
	got, ok := m["assets/app.js"]
	if !ok {
		t.Fatalf("Local() missing slash-separated path, got keys %v", m)
	}
	if got != want {
		t.Errorf("Local()[assets/app.js] = %+v, want %+v", got, want)
	}
}

func TestLocalEmptyTree(t *testing.T) {
	m, err := Local(t.TempDir())
	if err != nil {
		t.Fatalf("Local() error = %v", err)
	}
	if len(m) != 0 {
		t.Errorf("Local() on empty dir = %v, want empty manifest", m)
	}
}

func TestLocalMissingRoot(t *testing.T) {
	_, err := Local(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("Local() on missing root succeeded")
	}
	if !errors.HasCode(err, errors.ErrManifest) {
		t.Errorf("Local() error code = %q, want %q", errors.Code(err), errors.ErrManifest)
	}
}

func TestLocalIgnoresDirectories(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "empty", "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, root, "a.txt", "x")

	m, err := Local(root)
	if err != nil {
		t.Fatalf("Local() error = %v", err)
	}
	if len(m) != 1 {
		t.Errorf("Local() = %v, want only the regular file", m)
	}
}

func TestRelativeTo(t *testing.T) {
	tests := []struct {
		root, p, want string
	}{
		{"/var/www", "/var/www/index.html", "index.html"},
		{"/var/www", "/var/www/a/b.txt", "a/b.txt"},
		{"/var/www/", "/var/www/a.txt", "a.txt"},
	}
	for _, tt := range tests {
		if got := relativeTo(tt.root, tt.p); got != tt.want {
			t.Errorf("relativeTo(%q, %q) = %q, want %q", tt.root, tt.p, got, tt.want)
		}
	}
}
