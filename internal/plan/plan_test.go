// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

package plan

import (
	"reflect"
	"testing"

	"github.com/toeirei/deckhand/internal/manifest"
)

func mf(entries map[string]string) manifest.Manifest {
	m := make(manifest.Manifest, len(entries))
	for p, digest := range entries {
		m[p] = manifest.Entry{Digest: digest}
	}
	return m
}

func TestBuildOrdering(t *testing.T) {
	local := mf(map[string]string{
		"app.js":        "v2",
		"assets/b.css":  "same",
		"zz/new.txt":    "n1",
		"aa/create.txt": "c1",
	})
	remote := mf(map[string]string{
		"app.js":       "v1",
		"assets/b.css": "same",
		"old.js":       "gone",
		"a-old.txt":    "gone",
	})

	got := Build(local, remote, nil)
	want := Plan{
		{Path: "aa/create.txt", Action: ActionCreate},
		{Path: "app.js", Action: ActionUpdate},
		{Path: "zz/new.txt", Action: ActionCreate},
		{Path: "a-old.txt", Action: ActionDelete},
		{Path: "old.js", Action: ActionDelete},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Build() = %v, want %v", got, want)
	}
}

func TestBuildIdenticalTreesIsEmpty(t *testing.T) {
	tree := map[string]string{"a.txt": "d1", "sub/b.txt": "d2"}
	pl := Build(mf(tree), mf(tree), nil)
	if !pl.Empty() {
		t.Errorf("Build() on identical trees = %v, want empty plan", pl)
	}
}

// Applying a plan to the remote manifest must converge: a second Build on
// the result is empty.
func TestBuildConverges(t *testing.T) {
	local := mf(map[string]string{"a": "1", "b": "2", "c": "3"})
	remote := mf(map[string]string{"a": "0", "d": "4"})

	applied := make(manifest.Manifest)
	for p, e := range remote {
		applied[p] = e
	}
	for _, op := range Build(local, remote, nil) {
		if op.Action == ActionDelete {
			delete(applied, op.Path)
		} else {
			applied[op.Path] = local[op.Path]
		}
	}

	if pl := Build(local, applied, nil); !pl.Empty() {
		t.Errorf("second Build() after applying plan = %v, want empty", pl)
	}
}

func TestBuildNeverDeletesExcluded(t *testing.T) {
	local := mf(map[string]string{"index.html": "d1"})
	remote := mf(map[string]string{
		"index.html":       "d1",
		".git/config":      "r1",
		".git/HEAD":        "r2",
		"uploads/user.jpg": "r3",
	})

	pl := Build(local, remote, []string{".git", "uploads/"})
	if !pl.Empty() {
		t.Errorf("Build() touched excluded paths: %v", pl)
	}
}

func TestBuildSkipsExcludedLocalFiles(t *testing.T) {
	local := mf(map[string]string{"app.js": "d1", ".env": "secret"})
	remote := mf(map[string]string{"app.js": "d1"})

	pl := Build(local, remote, []string{".env"})
	if !pl.Empty() {
		t.Errorf("Build() planned excluded local file: %v", pl)
	}
}

func TestExcluded(t *testing.T) {
	tests := []struct {
		rel        string
		exclusions []string
		want       bool
	}{
		{".git/config", []string{".git"}, true},
		{".git", []string{".git"}, true},
		{".gitignore", []string{".git"}, false},
		{"logs/app.log", []string{"logs/"}, true},
		{"debug.log", []string{"*.log"}, true},
		{"sub/debug.log", []string{"*.log"}, false},
		{"a.txt", nil, false},
		{"a.txt", []string{""}, false},
	}

	for _, tt := range tests {
		if got := Excluded(tt.rel, tt.exclusions); got != tt.want {
			t.Errorf("Excluded(%q, %v) = %v, want %v", tt.rel, tt.exclusions, got, tt.want)
		}
	}
}
