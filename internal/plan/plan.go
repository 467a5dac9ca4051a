// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

// package plan computes the ordered set of file operations that makes a
// remote tree mirror a local one. Building a plan is a pure function of two
// manifests and an exclusion set, so repeated runs against unchanged inputs
// always produce the same (possibly empty) plan.
package plan

import (
	"path"
	"sort"
	"strings"

	"github.com/toeirei/deckhand/internal/manifest"
)

// Action is the kind of file operation in a plan entry.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Op is one planned file operation.
type Op struct {
	Path   string
	Action Action
}

// Plan is an ordered list of operations: creates and updates first in
// lexicographic path order, then deletes in lexicographic path order. The
// executor applies the plan in this order so a partial failure never leaves
// the remote with old files removed before their replacements arrived.
type Plan []Op

// Empty reports whether the plan contains no operations.
func (p Plan) Empty() bool { return len(p) == 0 }

// Counts returns the number of create/update operations and delete operations.
func (p Plan) Counts() (changes, deletes int) {
	for _, op := range p {
		if op.Action == ActionDelete {
			deletes++
		} else {
			changes++
		}
	}
	return changes, deletes
}

// Build diffs the local manifest against the remote one. A path present only
// locally becomes a create; present in both with differing fingerprints, an
// update; present only remotely and not excluded, a delete. Exclusions are
// glob-style prefixes matched against the relative path and are never synced
// or deleted.
func Build(local, remote manifest.Manifest, exclusions []string) Plan {
	var changes, deletes []Op

	for p, entry := range local {
		if Excluded(p, exclusions) {
			continue
		}
		remoteEntry, ok := remote[p]
		switch {
		case !ok:
			changes = append(changes, Op{Path: p, Action: ActionCreate})
		case remoteEntry.Digest != entry.Digest:
			changes = append(changes, Op{Path: p, Action: ActionUpdate})
		}
		// Identical fingerprints are a no-op; this is what makes repeated
		// runs against unchanged trees idempotent.
	}

	for p := range remote {
		if Excluded(p, exclusions) {
			continue
		}
		if _, ok := local[p]; !ok {
			deletes = append(deletes, Op{Path: p, Action: ActionDelete})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	sort.Slice(deletes, func(i, j int) bool { return deletes[i].Path < deletes[j].Path })

	return append(changes, deletes...)
}

// Excluded reports whether rel matches any exclusion rule. A rule matches
// when it equals the path, is a leading directory of it, or matches it as a
// shell glob. Rules apply to relative paths only, so an exclusion can never
// reach outside the destination subtree.
func Excluded(rel string, exclusions []string) bool {
	for _, ex := range exclusions {
		ex = strings.TrimSuffix(strings.TrimSpace(ex), "/")
		if ex == "" {
			continue
		}
		if rel == ex || strings.HasPrefix(rel, ex+"/") {
			return true
		}
		if ok, err := path.Match(ex, rel); err == nil && ok {
			return true
		}
	}
	return false
}
