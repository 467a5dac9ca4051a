// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"github.com/toeirei/deckhand/internal/model"
)

// Store defines the interface for all database operations in Deckhand.
// This allows for multiple database backends to be implemented.
type Store interface {
	// Target methods
	AddTarget(t model.Target) (int, error)
	GetTargetByName(name string) (*model.Target, error)
	GetAllTargets() ([]model.Target, error)
	RemoveTarget(name string) error

	// Key registry methods. The registry is append-only: entries are
	// deactivated on revocation, never deleted.
	AddRegistryEntry(e model.RegistryEntry) (int, error)
	GetActiveRegistryEntry(targetID int, label string) (*model.RegistryEntry, error)
	GetActiveRegistryEntries(targetID int) ([]model.RegistryEntry, error)
	DeactivateRegistryEntry(targetID int, label string) error

	// Host key methods
	GetKnownHostKey(hostname string) (string, error)
	AddKnownHostKey(hostname, key string) error

	// Audit methods
	LogAction(action, details string) error
	GetAllAuditEntries() ([]model.AuditEntry, error)
	AddDeploymentResult(r model.DeploymentResult) error
	GetDeploymentResults(limit int) ([]model.DeploymentResult, error)
}
