// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/toeirei/deckhand/internal/model"
)

// bunStore is the Bun-backed implementation of the Store interface. The
// dialect is chosen at construction time, so the same implementation serves
// SQLite, PostgreSQL and MySQL.
type bunStore struct {
	bun *bun.DB
}

// AddTarget persists a new target and logs the action.
func (s *bunStore) AddTarget(t model.Target) (int, error) {
	ctx := context.Background()
	m := targetToModel(t)
	m.IsActive = true
	if _, err := s.bun.NewInsert().Model(&m).Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to insert target: %w", err)
	}
	_ = s.LogAction("ADD_TARGET", fmt.Sprintf("target: %s (%s)", t.Name, t.String()))
	return m.ID, nil
}

// GetTargetByName returns the active target with the given name, or nil.
func (s *bunStore) GetTargetByName(name string) (*model.Target, error) {
	ctx := context.Background()
	var m TargetModel
	err := s.bun.NewSelect().Model(&m).
		Where("name = ?", name).
		Where("is_active = ?", true).
		Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t := targetModelToModel(m)
	return &t, nil
}

// GetAllTargets returns all active targets in name order.
func (s *bunStore) GetAllTargets() ([]model.Target, error) {
	ctx := context.Background()
	var ms []TargetModel
	if err := s.bun.NewSelect().Model(&ms).
		Where("is_active = ?", true).
		Order("name ASC").Scan(ctx); err != nil {
		return nil, err
	}
	targets := make([]model.Target, 0, len(ms))
	for _, m := range ms {
		targets = append(targets, targetModelToModel(m))
	}
	return targets, nil
}

// RemoveTarget deactivates the named target. The row is kept for audit.
func (s *bunStore) RemoveTarget(name string) error {
	ctx := context.Background()
	res, err := s.bun.NewUpdate().Model((*TargetModel)(nil)).
		Set("is_active = ?", false).
		Where("name = ?", name).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no such target: %s", name)
	}
	_ = s.LogAction("REMOVE_TARGET", fmt.Sprintf("target: %s", name))
	return nil
}

// AddRegistryEntry appends a new registry entry and logs the action.
func (s *bunStore) AddRegistryEntry(e model.RegistryEntry) (int, error) {
	ctx := context.Background()
	m := registryToModel(e)
	m.IsActive = true
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if _, err := s.bun.NewInsert().Model(&m).Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to insert registry entry: %w", err)
	}
	_ = s.LogAction("REGISTER_KEY", fmt.Sprintf("target_id: %d, label: %s", e.TargetID, e.Label))
	return m.ID, nil
}

// GetActiveRegistryEntry returns the active entry for (target, label), or nil.
func (s *bunStore) GetActiveRegistryEntry(targetID int, label string) (*model.RegistryEntry, error) {
	ctx := context.Background()
	var m RegistryEntryModel
	err := s.bun.NewSelect().Model(&m).
		Where("target_id = ?", targetID).
		Where("label = ?", label).
		Where("is_active = ?", true).
		Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e := registryModelToModel(m)
	return &e, nil
}

// GetActiveRegistryEntries returns active entries in registration order.
func (s *bunStore) GetActiveRegistryEntries(targetID int) ([]model.RegistryEntry, error) {
	ctx := context.Background()
	var ms []RegistryEntryModel
	if err := s.bun.NewSelect().Model(&ms).
		Where("target_id = ?", targetID).
		Where("is_active = ?", true).
		Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	entries := make([]model.RegistryEntry, 0, len(ms))
	for _, m := range ms {
		entries = append(entries, registryModelToModel(m))
	}
	return entries, nil
}

// DeactivateRegistryEntry marks the (target, label) entry inactive.
func (s *bunStore) DeactivateRegistryEntry(targetID int, label string) error {
	ctx := context.Background()
	res, err := s.bun.NewUpdate().Model((*RegistryEntryModel)(nil)).
		Set("is_active = ?", false).
		Where("target_id = ?", targetID).
		Where("label = ?", label).
		Where("is_active = ?", true).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no active entry with label '%s'", label)
	}
	_ = s.LogAction("REVOKE_KEY", fmt.Sprintf("target_id: %d, label: %s", targetID, label))
	return nil
}

// GetKnownHostKey returns the pinned key for hostname, or "" when none is pinned.
func (s *bunStore) GetKnownHostKey(hostname string) (string, error) {
	ctx := context.Background()
	var m KnownHostModel
	err := s.bun.NewSelect().Model(&m).Where("hostname = ?", hostname).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return m.HostKey, nil
}

// AddKnownHostKey pins a host key, replacing any previous pin for the host.
func (s *bunStore) AddKnownHostKey(hostname, key string) error {
	ctx := context.Background()
	// Delete-then-insert keeps the statement portable across all three dialects.
	if _, err := s.bun.NewDelete().Model((*KnownHostModel)(nil)).
		Where("hostname = ?", hostname).Exec(ctx); err != nil {
		return err
	}
	m := KnownHostModel{Hostname: hostname, HostKey: key}
	if _, err := s.bun.NewInsert().Model(&m).Exec(ctx); err != nil {
		return err
	}
	_ = s.LogAction("TRUST_HOST", fmt.Sprintf("host: %s", hostname))
	return nil
}

// LogAction appends an entry to the audit log.
func (s *bunStore) LogAction(action, details string) error {
	ctx := context.Background()
	m := AuditLogModel{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Action:    action,
		Details:   details,
	}
	_, err := s.bun.NewInsert().Model(&m).Exec(ctx)
	return err
}

// GetAllAuditEntries returns the audit log in insertion order.
func (s *bunStore) GetAllAuditEntries() ([]model.AuditEntry, error) {
	ctx := context.Background()
	var ms []AuditLogModel
	if err := s.bun.NewSelect().Model(&ms).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	entries := make([]model.AuditEntry, 0, len(ms))
	for _, m := range ms {
		entries = append(entries, model.AuditEntry{
			ID:        m.ID,
			Timestamp: m.Timestamp,
			Action:    m.Action,
			Details:   m.Details,
		})
	}
	return entries, nil
}

// AddDeploymentResult persists the immutable record of one run. The step
// details are stored as JSON in a single column.
func (s *bunStore) AddDeploymentResult(r model.DeploymentResult) error {
	ctx := context.Background()
	steps, err := json.Marshal(r.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode run steps: %w", err)
	}
	m := DeployLogModel{
		ID:         r.ID,
		Target:     r.Target,
		Status:     string(r.Status),
		Stage:      r.Stage,
		Steps:      string(steps),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if _, err := s.bun.NewInsert().Model(&m).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert deployment result: %w", err)
	}
	_ = s.LogAction("DEPLOY_RUN", fmt.Sprintf("target: %s, status: %s", r.Target, r.Status))
	return nil
}

// GetDeploymentResults returns the most recent run records, newest first.
func (s *bunStore) GetDeploymentResults(limit int) ([]model.DeploymentResult, error) {
	ctx := context.Background()
	var ms []DeployLogModel
	q := s.bun.NewSelect().Model(&ms).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	results := make([]model.DeploymentResult, 0, len(ms))
	for _, m := range ms {
		r := model.DeploymentResult{
			ID:         m.ID,
			Target:     m.Target,
			Status:     model.RunStatus(m.Status),
			Stage:      m.Stage,
			StartedAt:  m.StartedAt,
			FinishedAt: m.FinishedAt,
		}
		if m.Steps != "" {
			_ = json.Unmarshal([]byte(m.Steps), &r.Steps)
		}
		results = append(results, r)
	}
	return results, nil
}
