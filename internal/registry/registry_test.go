// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

package registry

import (
	"strings"
	"testing"

	"github.com/toeirei/deckhand/internal/db"
	"github.com/toeirei/deckhand/internal/errors"
	"github.com/toeirei/deckhand/internal/model"
)

const testPubKey = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIGb9ih4Air/SVBCIh7ZGb62eLrBCBz/2bBJgdldRCnFI ci@builder"

func newTestRegistry(t *testing.T) (*Registry, *model.Target) {
	t.Helper()
	store, err := db.NewStoreFromDSN("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("NewStoreFromDSN() error = %v", err)
	}
	id, err := store.AddTarget(model.Target{
		Name: "web-prod", Hostname: "web01", Username: "deploy", Path: "/srv/www",
	})
	if err != nil {
		t.Fatalf("AddTarget() error = %v", err)
	}
	target, err := store.GetTargetByName("web-prod")
	if err != nil || target == nil {
		t.Fatalf("GetTargetByName() = %v, %v", target, err)
	}
	if target.ID != id {
		t.Fatalf("target id mismatch: %d != %d", target.ID, id)
	}
	return New(store), target
}

func TestRegisterAndList(t *testing.T) {
	reg, target := newTestRegistry(t)

	entry, err := reg.Register(target, "ci-2026-q3", testPubKey, model.RestrictionPolicy{NoPTY: true})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if entry.ID == 0 || !entry.IsActive {
		t.Errorf("Register() = %+v, want persisted active entry", entry)
	}
	if entry.Algorithm != "ssh-ed25519" || entry.Comment != "ci@builder" {
		t.Errorf("parsed key fields = %q %q", entry.Algorithm, entry.Comment)
	}

	entries, err := reg.List(target)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Label != "ci-2026-q3" {
		t.Errorf("List() = %+v", entries)
	}
}

func TestRegisterDuplicateLabel(t *testing.T) {
	reg, target := newTestRegistry(t)

	if _, err := reg.Register(target, "ci", testPubKey, model.RestrictionPolicy{}); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	_, err := reg.Register(target, "ci", testPubKey, model.RestrictionPolicy{})
	if err == nil {
		t.Fatal("Register() accepted duplicate active label")
	}
	if !errors.HasCode(err, errors.ErrDuplicateLabel) {
		t.Errorf("error code = %q, want %q", errors.Code(err), errors.ErrDuplicateLabel)
	}
}

func TestRevokeFreesLabel(t *testing.T) {
	reg, target := newTestRegistry(t)

	if _, err := reg.Register(target, "ci", testPubKey, model.RestrictionPolicy{}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Revoke(target, "ci"); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	// The registry is append-only: a revoked label may be registered again.
	if _, err := reg.Register(target, "ci", testPubKey, model.RestrictionPolicy{}); err != nil {
		t.Errorf("Register() after revoke error = %v", err)
	}
}

func TestRevokeUnknownLabel(t *testing.T) {
	reg, target := newTestRegistry(t)
	if err := reg.Revoke(target, "never-registered"); err == nil {
		t.Error("Revoke() of unknown label should fail")
	}
}

func TestRegisterRejectsInvalidPolicy(t *testing.T) {
	reg, target := newTestRegistry(t)

	pol := model.RestrictionPolicy{ForcedCommand: "echo hi\nssh-rsa AAAA evil"}
	_, err := reg.Register(target, "ci", testPubKey, pol)
	if err == nil {
		t.Fatal("Register() accepted policy with line break")
	}
	if !errors.HasCode(err, errors.ErrPolicy) {
		t.Errorf("error code = %q, want %q", errors.Code(err), errors.ErrPolicy)
	}

	// Nothing may have been persisted.
	entries, _ := reg.List(target)
	if len(entries) != 0 {
		t.Errorf("invalid registration left entries: %+v", entries)
	}
}

func TestAuthorizedLine(t *testing.T) {
	reg, target := newTestRegistry(t)

	entry, err := reg.Register(target, "ci", testPubKey, model.RestrictionPolicy{
		ForcedCommand: "/usr/bin/hook", NoPortForwarding: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	line, err := reg.AuthorizedLine(*entry)
	if err != nil {
		t.Fatalf("AuthorizedLine() error = %v", err)
	}
	if !strings.HasPrefix(line, `command="/usr/bin/hook",no-port-forwarding ssh-ed25519 `) {
		t.Errorf("AuthorizedLine() = %q", line)
	}
	if !strings.HasSuffix(line, " ci@builder") {
		t.Errorf("AuthorizedLine() lost the comment: %q", line)
	}
}
