// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"database/sql"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/toeirei/deckhand/internal/model"
)

// TargetModel maps the `targets` table for Bun queries.
type TargetModel struct {
	bun.BaseModel `bun:"table:targets"`
	ID            int            `bun:"id,pk,autoincrement"`
	Name          string         `bun:"name"`
	Hostname      string         `bun:"hostname"`
	Username      string         `bun:"username"`
	Path          string         `bun:"path"`
	PostDeploy    sql.NullString `bun:"post_deploy"`
	Excludes      sql.NullString `bun:"excludes"`
	IsActive      bool           `bun:"is_active"`
}

// RegistryEntryModel maps the append-only `registry_entries` table.
type RegistryEntryModel struct {
	bun.BaseModel     `bun:"table:registry_entries"`
	ID                int       `bun:"id,pk,autoincrement"`
	TargetID          int       `bun:"target_id"`
	Label             string    `bun:"label"`
	Algorithm         string    `bun:"algorithm"`
	KeyData           string    `bun:"key_data"`
	Comment           string    `bun:"comment"`
	ForcedCommand     string    `bun:"forced_command"`
	NoPortForwarding  bool      `bun:"no_port_forwarding"`
	NoAgentForwarding bool      `bun:"no_agent_forwarding"`
	NoPTY             bool      `bun:"no_pty"`
	NoX11Forwarding   bool      `bun:"no_x11_forwarding"`
	CreatedAt         time.Time `bun:"created_at"`
	IsActive          bool      `bun:"is_active"`
}

// KnownHostModel maps the `known_hosts` table.
type KnownHostModel struct {
	bun.BaseModel `bun:"table:known_hosts"`
	Hostname      string `bun:"hostname,pk"`
	HostKey       string `bun:"host_key"`
}

// AuditLogModel maps the `audit_log` table.
type AuditLogModel struct {
	bun.BaseModel `bun:"table:audit_log"`
	ID            int    `bun:"id,pk,autoincrement"`
	Timestamp     string `bun:"timestamp"`
	Action        string `bun:"action"`
	Details       string `bun:"details"`
}

// DeployLogModel maps the `deploy_log` table; one row per run.
type DeployLogModel struct {
	bun.BaseModel `bun:"table:deploy_log"`
	ID            string    `bun:"id,pk"`
	Target        string    `bun:"target"`
	Status        string    `bun:"status"`
	Stage         string    `bun:"stage"`
	Steps         string    `bun:"steps"`
	StartedAt     time.Time `bun:"started_at"`
	FinishedAt    time.Time `bun:"finished_at"`
}

func targetModelToModel(m TargetModel) model.Target {
	t := model.Target{
		ID:       m.ID,
		Name:     m.Name,
		Hostname: m.Hostname,
		Username: m.Username,
		Path:     m.Path,
		IsActive: m.IsActive,
	}
	if m.PostDeploy.Valid {
		t.PostDeploy = m.PostDeploy.String
	}
	if m.Excludes.Valid && m.Excludes.String != "" {
		t.Excludes = strings.Split(m.Excludes.String, ",")
	}
	return t
}

func targetToModel(t model.Target) TargetModel {
	m := TargetModel{
		ID:       t.ID,
		Name:     t.Name,
		Hostname: t.Hostname,
		Username: t.Username,
		Path:     t.Path,
		IsActive: t.IsActive,
	}
	if t.PostDeploy != "" {
		m.PostDeploy = sql.NullString{String: t.PostDeploy, Valid: true}
	}
	if len(t.Excludes) > 0 {
		m.Excludes = sql.NullString{String: strings.Join(t.Excludes, ","), Valid: true}
	}
	return m
}

func registryModelToModel(m RegistryEntryModel) model.RegistryEntry {
	return model.RegistryEntry{
		ID:        m.ID,
		TargetID:  m.TargetID,
		Label:     m.Label,
		Algorithm: m.Algorithm,
		KeyData:   m.KeyData,
		Comment:   m.Comment,
		Policy: model.RestrictionPolicy{
			ForcedCommand:     m.ForcedCommand,
			NoPortForwarding:  m.NoPortForwarding,
			NoAgentForwarding: m.NoAgentForwarding,
			NoPTY:             m.NoPTY,
			NoX11Forwarding:   m.NoX11Forwarding,
		},
		CreatedAt: m.CreatedAt,
		IsActive:  m.IsActive,
	}
}

func registryToModel(e model.RegistryEntry) RegistryEntryModel {
	return RegistryEntryModel{
		ID:                e.ID,
		TargetID:          e.TargetID,
		Label:             e.Label,
		Algorithm:         e.Algorithm,
		KeyData:           e.KeyData,
		Comment:           e.Comment,
		ForcedCommand:     e.Policy.ForcedCommand,
		NoPortForwarding:  e.Policy.NoPortForwarding,
		NoAgentForwarding: e.Policy.NoAgentForwarding,
		NoPTY:             e.Policy.NoPTY,
		NoX11Forwarding:   e.Policy.NoX11Forwarding,
		CreatedAt:         e.CreatedAt,
		IsActive:          e.IsActive,
	}
}
