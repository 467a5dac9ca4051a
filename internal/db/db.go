// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

// package db provides the data access layer for Deckhand. It abstracts the
// underlying database (SQLite, PostgreSQL or MySQL) behind a consistent
// interface so the rest of the application can interact with persisted
// state in a uniform way.
package db // import "github.com/toeirei/deckhand/internal/db"

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/toeirei/deckhand/internal/logging"
	"github.com/toeirei/deckhand/internal/model"

	// SQL drivers required at runtime and for integration tests.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var (
	store Store
	// sqlOpenFunc allows tests to override database opening behavior.
	sqlOpenFunc = sql.Open
)

// InitDB initializes the database connection based on the provided type and
// DSN. It sets the package-level store and runs schema migrations.
func InitDB(dbType, dsn string) error {
	s, err := NewStoreFromDSN(dbType, dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	store = s
	return nil
}

// IsInitialized reports whether the package-level store has been set.
func IsInitialized() bool {
	return store != nil
}

// NewStoreFromDSN opens a sql.DB for the given DSN, runs migrations, and
// returns a Store backed by a long-lived *bun.DB.
func NewStoreFromDSN(dbType, dsn string) (Store, error) {
	driverName := dbType
	// The pgx stdlib registers driver name "pgx"; map "postgres" to that driver.
	if dbType == "postgres" {
		driverName = "pgx"
	}
	start := time.Now()
	sqlDB, err := sqlOpenFunc(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Conservative pool defaults for small deployments.
	maxOpen, maxIdle := 25, 25
	// In-memory SQLite databases are per-connection; force a single
	// connection so schema changes stay visible. Tests rely on this.
	if dbType == "sqlite" && dsn == ":memory:" {
		maxOpen, maxIdle = 1, 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := runMigrations(sqlDB, dbType); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logging.Debugf("db: opened %s store in %s", dbType, time.Since(start))

	return &bunStore{bun: createBunDB(sqlDB, dbType)}, nil
}

// createBunDB constructs a *bun.DB for the provided *sql.DB and dbType.
// Centralizing construction makes it easier to apply consistent options.
func createBunDB(sqlDB *sql.DB, dbType string) *bun.DB {
	switch dbType {
	case "postgres":
		return bun.NewDB(sqlDB, pgdialect.New())
	case "mysql":
		return bun.NewDB(sqlDB, mysqldialect.New())
	default:
		return bun.NewDB(sqlDB, sqlitedialect.New())
	}
}

// runMigrations creates the schema if it does not exist yet. The statements
// are portable except for the auto-increment primary key spelling.
func runMigrations(sqlDB *sql.DB, dbType string) error {
	idPK := "INTEGER PRIMARY KEY AUTOINCREMENT"
	switch dbType {
	case "postgres":
		idPK = "SERIAL PRIMARY KEY"
	case "mysql":
		idPK = "INTEGER NOT NULL PRIMARY KEY AUTO_INCREMENT"
	}

	tables := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS targets (
			id %s,
			name VARCHAR(191) NOT NULL UNIQUE,
			hostname VARCHAR(255) NOT NULL,
			username VARCHAR(255) NOT NULL,
			path TEXT NOT NULL,
			post_deploy TEXT,
			excludes TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		);`, idPK),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS registry_entries (
			id %s,
			target_id INTEGER NOT NULL,
			label VARCHAR(191) NOT NULL,
			algorithm VARCHAR(64) NOT NULL,
			key_data TEXT NOT NULL,
			comment VARCHAR(255),
			forced_command TEXT,
			no_port_forwarding BOOLEAN NOT NULL DEFAULT FALSE,
			no_agent_forwarding BOOLEAN NOT NULL DEFAULT FALSE,
			no_pty BOOLEAN NOT NULL DEFAULT FALSE,
			no_x11_forwarding BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		);`, idPK),
		`CREATE TABLE IF NOT EXISTS known_hosts (
			hostname VARCHAR(191) NOT NULL PRIMARY KEY,
			host_key TEXT NOT NULL
		);`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS audit_log (
			id %s,
			timestamp VARCHAR(64) NOT NULL,
			action VARCHAR(191) NOT NULL,
			details TEXT
		);`, idPK),
		`CREATE TABLE IF NOT EXISTS deploy_log (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			target VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			stage VARCHAR(64),
			steps TEXT,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL
		);`,
	}

	for _, stmt := range tables {
		if _, err := sqlDB.Exec(stmt); err != nil {
			return fmt.Errorf("schema migration failed: %w", err)
		}
	}
	return nil
}

// The wrappers below delegate to the package-level store, mirroring how the
// CLI and the deploy layer consume the data layer.

// GetTargetByName returns the named target, or nil when unknown.
func GetTargetByName(name string) (*model.Target, error) { return store.GetTargetByName(name) }

// GetAllTargets returns all configured targets.
func GetAllTargets() ([]model.Target, error) { return store.GetAllTargets() }

// AddTarget persists a new target and returns its ID.
func AddTarget(t model.Target) (int, error) { return store.AddTarget(t) }

// RemoveTarget deactivates the named target.
func RemoveTarget(name string) error { return store.RemoveTarget(name) }

// GetKnownHostKey returns the pinned host key for hostname, or "" if none.
func GetKnownHostKey(hostname string) (string, error) { return store.GetKnownHostKey(hostname) }

// AddKnownHostKey pins (or replaces) the host key for hostname.
func AddKnownHostKey(hostname, key string) error { return store.AddKnownHostKey(hostname, key) }

// LogAction appends an entry to the audit log.
func LogAction(action, details string) error { return store.LogAction(action, details) }

// GetAllAuditEntries returns the audit log in insertion order.
func GetAllAuditEntries() ([]model.AuditEntry, error) { return store.GetAllAuditEntries() }

// AddDeploymentResult persists the immutable record of one run.
func AddDeploymentResult(r model.DeploymentResult) error { return store.AddDeploymentResult(r) }

// GetDeploymentResults returns the most recent run records, newest first.
func GetDeploymentResults(limit int) ([]model.DeploymentResult, error) {
	return store.GetDeploymentResults(limit)
}

// Active returns the package-level store for callers that hold a Store
// dependency explicitly (the orchestrator and the registry).
func Active() Store { return store }
