// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	defaults := map[string]any{
		"database.type": "sqlite",
		"database.dsn":  "./deckhand.db",
		"language":      "en",
	}

	// Without an explicit path, defaults apply even when no file exists.
	c, err := Load(nil, defaults, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Database.Type != "sqlite" || c.Database.DSN != "./deckhand.db" || c.Language != "en" {
		t.Errorf("Load() defaults = %+v", c)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deckhand.yaml")
	content := "database:\n  type: postgres\n  dsn: postgres://deploy@db/deckhand\nlanguage: de\ntimeout: 90s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(nil, map[string]any{"database.type": "sqlite"}, path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Database.Type != "postgres" {
		t.Errorf("Database.Type = %q, want postgres", c.Database.Type)
	}
	if c.Database.DSN != "postgres://deploy@db/deckhand" {
		t.Errorf("Database.DSN = %q", c.Database.DSN)
	}
	if c.Language != "de" {
		t.Errorf("Language = %q, want de", c.Language)
	}
	if c.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", c.Timeout)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DECKHAND_LANGUAGE", "fr")

	c, err := Load(nil, map[string]any{"language": "en"}, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Language != "fr" {
		t.Errorf("Language = %q, want env override fr", c.Language)
	}
}
