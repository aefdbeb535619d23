package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all flowc tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS workflows (
		id            TEXT PRIMARY KEY,
		project       TEXT NOT NULL,
		domain        TEXT NOT NULL,
		name          TEXT NOT NULL,
		version       TEXT NOT NULL,
		spec          TEXT NOT NULL,
		node_count    INTEGER NOT NULL DEFAULT 0,
		sub_workflows INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id         TEXT PRIMARY KEY,
		project    TEXT NOT NULL,
		domain     TEXT NOT NULL,
		name       TEXT NOT NULL,
		version    TEXT NOT NULL,
		task_type  TEXT NOT NULL DEFAULT '',
		template   TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_workflows_project_domain ON workflows(project, domain)`,
	`CREATE INDEX IF NOT EXISTS idx_workflows_created_at ON workflows(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_project_domain ON tasks(project, domain)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
