package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// schemaStatements create the tables when they do not exist. Types are kept
// portable across SQLite and Postgres.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS requirements (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		job_id TEXT NOT NULL,
		req_key TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		priority TEXT NOT NULL,
		source TEXT NOT NULL,
		acceptance_criteria TEXT NOT NULL,
		compliance TEXT NOT NULL,
		user_story TEXT NOT NULL DEFAULT '',
		test_scenarios TEXT NOT NULL,
		dependencies TEXT NOT NULL,
		risks TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_requirements_project ON requirements (project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_requirements_job ON requirements (job_id)`,
	`CREATE TABLE IF NOT EXISTS test_cases (
		id TEXT PRIMARY KEY,
		requirement_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_test_cases_requirement ON test_cases (requirement_id)`,
}

// Open connects to the configured database and verifies the connection.
// Driver is "sqlite" or "postgres".
func Open(driver, dsn string) (*sql.DB, error) {
	var driverName string
	switch driver {
	case "sqlite":
		driverName = "sqlite3"
	case "postgres":
		driverName = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
