// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

// package model holds the core domain types shared across Deckhand:
// deployment targets, key restriction policies, registry entries and
// the immutable result record produced by a deployment run.
package model

import (
	"fmt"
	"time"
)

// Target represents a remote deployment destination: one login identity on
// one host, bound to one destination path.
type Target struct {
	ID         int
	Name       string   // unique short name used by --target
	Hostname   string   // host or host:port
	Username   string   // login identity; must not be a privileged account
	Path       string   // destination path the login identity may write to
	PostDeploy string   // optional command run after a successful sync
	Excludes   []string // relative-path prefixes protected from sync/delete
	IsActive   bool
}

// String returns the user@host:path representation.
func (t Target) String() string {
	return fmt.Sprintf("%s@%s:%s", t.Username, t.Hostname, t.Path)
}

// RestrictionPolicy is the declarative set of constraints compiled into the
// options prefix of an authorized_keys entry.
type RestrictionPolicy struct {
	ForcedCommand     string
	NoPortForwarding  bool
	NoAgentForwarding bool
	NoPTY             bool
	NoX11Forwarding   bool
}

// Restricted reports whether the policy imposes any constraint at all.
func (p RestrictionPolicy) Restricted() bool {
	return p.ForcedCommand != "" || p.NoPortForwarding || p.NoAgentForwarding ||
		p.NoPTY || p.NoX11Forwarding
}

// RegistryEntry is one record in the append-only key registry: a public key
// authorized on a target, with its restriction policy and lifecycle state.
// Entries are never deleted; revocation clears IsActive.
type RegistryEntry struct {
	ID        int
	TargetID  int
	Label     string
	Algorithm string
	KeyData   string
	Comment   string
	Policy    RestrictionPolicy
	CreatedAt time.Time
	IsActive  bool
}

// String returns the entry in "label (algorithm comment)" form for listings.
func (e RegistryEntry) String() string {
	if e.Comment == "" {
		return fmt.Sprintf("%s (%s)", e.Label, e.Algorithm)
	}
	return fmt.Sprintf("%s (%s %s)", e.Label, e.Algorithm, e.Comment)
}

// RunStatus is the overall outcome of a deployment run.
type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusPartial RunStatus = "partial"
	StatusFailed  RunStatus = "failed"
)

// CommandOutcome captures a single remote command execution.
type CommandOutcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// StepResult records one stage of a deployment run for the audit trail.
type StepResult struct {
	Name     string `json:"name"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	Error    string `json:"error,omitempty"`
}

// DeploymentResult is the immutable record of one orchestration run.
// It is created once per run and persisted for audit.
type DeploymentResult struct {
	ID         string
	Target     string
	Status     RunStatus
	Stage      string // failing stage name, empty unless Status is failed
	Steps      []StepResult
	StartedAt  time.Time
	FinishedAt time.Time
}
