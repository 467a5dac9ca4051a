// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

// package registry is the bookkeeping layer for deploy keys: which public
// keys are authorized on which targets, under which restriction policy.
// It has no network side effects; installing keys on a remote host is the
// executor's job.
package registry

import (
	"fmt"
	"time"

	"github.com/toeirei/deckhand/internal/db"
	"github.com/toeirei/deckhand/internal/errors"
	"github.com/toeirei/deckhand/internal/model"
	"github.com/toeirei/deckhand/internal/policy"
	"github.com/toeirei/deckhand/internal/sshkey"
)

// Registry provides key registration, revocation and listing over a Store.
type Registry struct {
	store db.Store
}

// New returns a Registry backed by the given store.
func New(store db.Store) *Registry {
	return &Registry{store: store}
}

// Register appends a new active entry for (target, label). The public key
// and policy are validated up front: a key that cannot be compiled into an
// authorized_keys line is rejected before anything is persisted.
func (r *Registry) Register(target *model.Target, label, publicKey string, pol model.RestrictionPolicy) (*model.RegistryEntry, error) {
	algorithm, keyData, comment, err := sshkey.Parse(publicKey)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrPolicy,
			"public key could not be parsed",
			"expected an OpenSSH public key line")
	}

	// Compile once now so an invalid policy never reaches the registry.
	if _, err := policy.Compile(pol, algorithm+" "+keyData, comment); err != nil {
		return nil, err
	}

	existing, err := r.store.GetActiveRegistryEntry(target.ID, label)
	if err != nil {
		return nil, fmt.Errorf("failed to query registry: %w", err)
	}
	if existing != nil {
		return nil, errors.New(errors.ErrDuplicateLabel,
			fmt.Sprintf("label '%s' is already registered for target %s", label, target.Name),
			"revoke the existing entry first, or pick a new label")
	}

	entry := model.RegistryEntry{
		TargetID:  target.ID,
		Label:     label,
		Algorithm: algorithm,
		KeyData:   keyData,
		Comment:   comment,
		Policy:    pol,
		CreatedAt: time.Now().UTC(),
		IsActive:  true,
	}
	id, err := r.store.AddRegistryEntry(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to register key: %w", err)
	}
	entry.ID = id
	return &entry, nil
}

// Revoke marks the (target, label) entry inactive. The entry itself is
// retained: the registry is an append-only history.
func (r *Registry) Revoke(target *model.Target, label string) error {
	if err := r.store.DeactivateRegistryEntry(target.ID, label); err != nil {
		return fmt.Errorf("could not revoke '%s' on target %s: %w", label, target.Name, err)
	}
	return nil
}

// List returns the active entries for a target in registration order.
func (r *Registry) List(target *model.Target) ([]model.RegistryEntry, error) {
	return r.store.GetActiveRegistryEntries(target.ID)
}

// AuthorizedLine compiles an entry back into its authorized_keys wire form.
func (r *Registry) AuthorizedLine(entry model.RegistryEntry) (string, error) {
	return policy.Compile(entry.Policy, entry.Algorithm+" "+entry.KeyData, entry.Comment)
}
